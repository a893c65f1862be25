package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Shiftline/shiftline-notify/logger"
	"github.com/Shiftline/shiftline-notify/store"
	"github.com/Shiftline/shiftline-notify/types"
)

// FeedSourcePinger is the slice of the upstream client the health service
// needs.
type FeedSourcePinger interface {
	Ping(ctx context.Context) error
}

// HealthService aggregates the health of the read-state store, the upstream
// feed service, and Redis (when configured) into a single report.
type HealthService struct {
	readStore   store.ReadStateStore
	feedSource  FeedSourcePinger
	redisClient *redis.Client // nil when Redis is not configured
	version     string
	startTime   time.Time
	log         *zap.SugaredLogger
}

func NewHealthService(readStore store.ReadStateStore, feedSource FeedSourcePinger, redisClient *redis.Client, version string) *HealthService {
	return &HealthService{
		readStore:   readStore,
		feedSource:  feedSource,
		redisClient: redisClient,
		version:     version,
		startTime:   time.Now().UTC(),
		log:         logger.GetLogger(),
	}
}

// CheckHealth probes every component. The read-state store is load-bearing:
// if it is down the service cannot persist mutations, so the overall status
// is DOWN. An unreachable feed source degrades the service (cached snapshots
// still serve) rather than taking it down.
func (h *HealthService) CheckHealth(ctx context.Context) types.HealthCheck {
	components := make(map[string]types.HealthComponent)
	overallStatus := types.HealthStatusUp

	storeStatus := h.checkReadStore(ctx)
	components[types.ComponentReadState] = storeStatus
	if storeStatus.Status == types.HealthStatusDown {
		overallStatus = types.HealthStatusDown
	}

	sourceStatus := h.checkFeedSource(ctx)
	components[types.ComponentFeedSource] = sourceStatus
	if sourceStatus.Status == types.HealthStatusDown && overallStatus != types.HealthStatusDown {
		overallStatus = types.HealthStatusDegraded
	}

	if h.redisClient != nil {
		redisStatus := h.checkRedis(ctx)
		components[types.ComponentRedis] = redisStatus
		if redisStatus.Status == types.HealthStatusDown && overallStatus != types.HealthStatusDown {
			overallStatus = types.HealthStatusDegraded
		}
	}

	return types.HealthCheck{
		Status:     overallStatus,
		Components: components,
		Version:    h.version,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
	}
}

// IsReady reports whether the service can accept traffic. Readiness only
// requires the read-state store; feed-source outages surface per request.
func (h *HealthService) IsReady(ctx context.Context) bool {
	return h.checkReadStore(ctx).Status != types.HealthStatusDown
}

func (h *HealthService) checkReadStore(ctx context.Context) types.HealthComponent {
	if err := h.readStore.Ping(ctx); err != nil {
		h.log.Errorw("Read-state store health check failed", "error", err)
		return types.HealthComponent{
			Status:  types.HealthStatusDown,
			Details: "Read-state store connection failed",
		}
	}
	return types.HealthComponent{
		Status: types.HealthStatusUp,
	}
}

func (h *HealthService) checkFeedSource(ctx context.Context) types.HealthComponent {
	if h.feedSource == nil {
		return types.HealthComponent{
			Status:  types.HealthStatusDegraded,
			Details: "Feed source not configured",
		}
	}
	if err := h.feedSource.Ping(ctx); err != nil {
		h.log.Errorw("Feed source health check failed", "error", err)
		return types.HealthComponent{
			Status:  types.HealthStatusDown,
			Details: "Upstream feed service unreachable",
		}
	}
	return types.HealthComponent{
		Status: types.HealthStatusUp,
	}
}

func (h *HealthService) checkRedis(ctx context.Context) types.HealthComponent {
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		h.log.Errorw("Redis health check failed", "error", err)
		return types.HealthComponent{
			Status:  types.HealthStatusDown,
			Details: "Redis connection failed",
		}
	}
	return types.HealthComponent{
		Status: types.HealthStatusUp,
	}
}
