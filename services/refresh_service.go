package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Shiftline/shiftline-notify/config"
	"github.com/Shiftline/shiftline-notify/logger"
	"github.com/Shiftline/shiftline-notify/models/feed"
	"github.com/Shiftline/shiftline-notify/types"
)

// RefreshService periodically re-fetches the feeds of users with active
// counter subscriptions. A re-fetch republishes the merged snapshot, so
// badge subscribers pick up notifications created upstream without the
// client polling. Fetch jobs run on the shared worker pool to bound
// concurrency against the upstream feed service.
type RefreshService struct {
	manager    *feed.Manager
	subscriber types.CounterSubscriber
	pool       *WorkerPool
	interval   time.Duration
	log        *zap.SugaredLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRefreshService creates the background refresher. Call Start to begin
// the refresh loop.
func NewRefreshService(manager *feed.Manager, subscriber types.CounterSubscriber, pool *WorkerPool, cfg config.RefreshConfig) *RefreshService {
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &RefreshService{
		manager:    manager,
		subscriber: subscriber,
		pool:       pool,
		interval:   interval,
		log:        logger.GetLogger().Named("RefreshService"),
	}
}

// Start launches the refresh ticker. Idempotent.
func (s *RefreshService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)

	s.log.Infow("Refresh service started", "interval", s.interval)
}

func (s *RefreshService) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshActiveUsers()
		}
	}
}

// refreshActiveUsers submits one fetch job per user with a live counter
// subscription. Users without subscribers are skipped entirely; their
// engines refresh on their next interactive fetch.
func (s *RefreshService) refreshActiveUsers() {
	users := s.subscriber.ActiveUsers()
	if len(users) == 0 {
		return
	}
	s.log.Debugw("Refreshing feeds for active users", "count", len(users))

	for _, userID := range users {
		uid := userID
		submitted := s.pool.Submit(Job{
			Name: fmt.Sprintf("refresh-feed-%s", uid),
			Execute: func(ctx context.Context) error {
				eng := s.manager.Engine(uid)
				if _, err := eng.Fetch(ctx, ""); err != nil {
					return fmt.Errorf("background refresh for user %s: %w", uid, err)
				}
				return nil
			},
		})
		if !submitted {
			s.log.Warnw("Refresh job dropped, worker pool queue full", "userID", uid)
		}
	}
}

// Stop halts the refresh loop and waits for it to exit. In-flight fetch
// jobs continue on the worker pool until its own shutdown.
func (s *RefreshService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.log.Info("Refresh service stopped")
}
