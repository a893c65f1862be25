package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Shiftline/shiftline-notify/config"
	"github.com/Shiftline/shiftline-notify/db"
	"github.com/Shiftline/shiftline-notify/handlers"
	"github.com/Shiftline/shiftline-notify/internal/feedsource"
	badgerstore "github.com/Shiftline/shiftline-notify/internal/store/badger"
	memorystore "github.com/Shiftline/shiftline-notify/internal/store/memory"
	postgresstore "github.com/Shiftline/shiftline-notify/internal/store/postgres"
	redisstore "github.com/Shiftline/shiftline-notify/internal/store/redis"
	"github.com/Shiftline/shiftline-notify/logger"
	"github.com/Shiftline/shiftline-notify/models/feed"
	"github.com/Shiftline/shiftline-notify/router"
	"github.com/Shiftline/shiftline-notify/services"
	"github.com/Shiftline/shiftline-notify/store"
	"github.com/Shiftline/shiftline-notify/types"
)

func main() {
	logger.InitLogger()
	log := logger.GetLogger()
	defer func() { _ = logger.Close() }()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis serves double duty: the redis read-state backend and the
	// cross-instance counter fan-out both use it.
	var redisClient *redis.Client
	if cfg.ReadState.Backend == config.BackendRedis {
		redisClient = redis.NewClient(config.ConfigureRedisOptions(&cfg.Redis))
		if err := config.TestRedisConnection(redisClient); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer func() { _ = redisClient.Close() }()
	}

	readStore, cleanup, err := buildReadStateStore(ctx, cfg, redisClient)
	if err != nil {
		log.Fatalf("Failed to initialize read-state store: %v", err)
	}
	defer cleanup()
	log.Infow("Read-state store initialized", "backend", cfg.ReadState.Backend)

	// Counter event delivery: in-process broadcaster, wrapped by the Redis
	// fan-out when a Redis connection is available.
	broadcaster := services.NewCounterBroadcaster(cfg.EventService.EventBufferSize)
	defer broadcaster.Shutdown()

	var publisher types.CounterPublisher = broadcaster
	if redisClient != nil {
		fanout := services.NewRedisCounterFanout(redisClient, broadcaster,
			time.Duration(cfg.EventService.PublishTimeoutSeconds)*time.Second)
		if err := fanout.Start(ctx); err != nil {
			log.Fatalf("Failed to start counter fan-out: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = fanout.Shutdown(shutdownCtx)
		}()
		publisher = fanout
	}

	feedClient := feedsource.NewClient(
		cfg.FeedSource.BaseURL,
		cfg.FeedSource.APIKey,
		feedsource.WithTimeout(time.Duration(cfg.FeedSource.TimeoutSeconds)*time.Second),
	)

	manager := feed.NewManager(feedClient, readStore, publisher)

	// Background refresh for users with live counter subscriptions.
	workerPool := services.NewWorkerPool(cfg.WorkerPool)
	workerPool.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.WorkerPool.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		if err := workerPool.Shutdown(shutdownCtx); err != nil {
			log.Warnw("Worker pool shutdown incomplete", "error", err)
		}
	}()

	if cfg.Refresh.Enabled {
		refresher := services.NewRefreshService(manager, broadcaster, workerPool, cfg.Refresh)
		refresher.Start()
		defer refresher.Stop()
	}

	healthService := services.NewHealthService(readStore, feedClient, redisClient, cfg.Server.Version)

	r := router.SetupRouter(router.Dependencies{
		Config:              cfg,
		NotificationHandler: handlers.NewNotificationHandler(manager),
		StreamHandler:       handlers.NewStreamHandler(broadcaster),
		WSHandler:           handlers.NewWSHandler(broadcaster, &cfg.Server),
		HealthHandler:       handlers.NewHealthHandler(healthService),
		Logger:              log,
	})
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		log.Fatalf("Failed to set trusted proxies: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown signal received, draining connections...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("Server shutdown incomplete", "error", err)
	}
	log.Info("Server stopped")
}

// buildReadStateStore selects the read-state backend from config. The
// returned cleanup releases whatever resources the backend holds.
func buildReadStateStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (store.ReadStateStore, func(), error) {
	noop := func() {}

	switch cfg.ReadState.Backend {
	case config.BackendMemory:
		return memorystore.New(), noop, nil

	case config.BackendRedis:
		if redisClient == nil {
			return nil, noop, fmt.Errorf("redis backend selected but no Redis client configured")
		}
		return redisstore.New(redisClient), noop, nil

	case config.BackendPostgres:
		if err := db.RunMigrations(cfg.Database.URL()); err != nil {
			return nil, noop, fmt.Errorf("failed to run migrations: %w", err)
		}
		poolConfig, err := config.ConfigurePostgresPool(&cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("failed to ping database: %w", err)
		}
		return postgresstore.New(pool), pool.Close, nil

	case config.BackendBadger:
		st, err := badgerstore.Open(cfg.ReadState.BadgerDir)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open badger store: %w", err)
		}
		return st, func() { _ = st.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown read-state backend %q", cfg.ReadState.Backend)
	}
}
