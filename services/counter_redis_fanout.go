package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Shiftline/shiftline-notify/logger"
	"github.com/Shiftline/shiftline-notify/types"
)

const counterChannelPrefix = "unread_counter:"

// RedisCounterFanout shares counter events across service instances through
// Redis Pub/Sub. Each instance publishes its engines' events and pumps the
// subscribed stream into its local broadcaster, so a badge subscriber sees
// updates no matter which instance handled the mutation. The broadcaster's
// stale-sequence drop deduplicates an instance's own events when they echo
// back.
type RedisCounterFanout struct {
	client         *redis.Client
	local          *CounterBroadcaster
	log            *zap.SugaredLogger
	metrics        *fanoutMetrics
	publishTimeout time.Duration

	mu     sync.Mutex
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

var _ types.CounterPublisher = (*RedisCounterFanout)(nil)

type fanoutMetrics struct {
	publishLatency prometheus.Histogram
	errorCount     prometheus.Counter
	eventCount     *prometheus.CounterVec
}

// Singleton pattern for metrics (avoid double registration in tests).
var (
	fanoutMetricsInstance *fanoutMetrics
	fanoutMetricsOnce     sync.Once
	fanoutMetricsRegistry = prometheus.DefaultRegisterer
)

func newFanoutMetrics() *fanoutMetrics {
	fanoutMetricsOnce.Do(func() {
		fanoutMetricsInstance = &fanoutMetrics{
			publishLatency: promauto.With(fanoutMetricsRegistry).NewHistogram(prometheus.HistogramOpts{
				Name:    "counter_fanout_publish_duration_seconds",
				Help:    "Time taken to publish counter events to Redis",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			}),
			errorCount: promauto.With(fanoutMetricsRegistry).NewCounter(prometheus.CounterOpts{
				Name: "counter_fanout_errors_total",
				Help: "Total number of counter fan-out errors",
			}),
			eventCount: promauto.With(fanoutMetricsRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "counter_fanout_events_total",
				Help: "Total number of counter events by direction",
			}, []string{"direction"}),
		}
	})
	return fanoutMetricsInstance
}

// resetFanoutMetricsForTesting resets the metrics singleton for test isolation.
// This should only be called from tests.
func resetFanoutMetricsForTesting() {
	reg := prometheus.NewRegistry()
	fanoutMetricsRegistry = reg
	fanoutMetricsInstance = nil
	fanoutMetricsOnce = sync.Once{}
}

// NewRedisCounterFanout wraps the local broadcaster with Redis pub/sub.
// Call Start to begin pumping remote events.
func NewRedisCounterFanout(client *redis.Client, local *CounterBroadcaster, publishTimeout time.Duration) *RedisCounterFanout {
	if publishTimeout <= 0 {
		publishTimeout = 5 * time.Second
	}
	return &RedisCounterFanout{
		client:         client,
		local:          local,
		log:            logger.GetLogger().Named("RedisCounterFanout"),
		metrics:        newFanoutMetrics(),
		publishTimeout: publishTimeout,
	}
}

// Publish delivers the event locally, then mirrors it to Redis. The Redis
// write happens on a separate goroutine: Publish is called under the
// engine's state lock and must never block on the network.
func (f *RedisCounterFanout) Publish(event types.CounterEvent) {
	f.local.Publish(event)

	go func() {
		start := time.Now()
		defer func() {
			f.metrics.publishLatency.Observe(time.Since(start).Seconds())
		}()

		data, err := json.Marshal(event)
		if err != nil {
			f.metrics.errorCount.Inc()
			f.log.Errorw("Failed to marshal counter event", "error", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), f.publishTimeout)
		defer cancel()

		channel := counterChannelPrefix + event.UserID
		if err := f.client.Publish(ctx, channel, data).Err(); err != nil {
			f.metrics.errorCount.Inc()
			f.log.Warnw("Failed to publish counter event to Redis",
				"channel", channel,
				"error", err)
			return
		}
		f.metrics.eventCount.WithLabelValues("out").Inc()
	}()
}

// Start subscribes to every instance's counter channels and pumps remote
// events into the local broadcaster. Idempotent.
func (f *RedisCounterFanout) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pubsub != nil {
		return nil
	}

	pubsub := f.client.PSubscribe(ctx, counterChannelPrefix+"*")
	// Force the subscription to be established before we report success.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to counter channels: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	f.pubsub = pubsub
	f.cancel = cancel
	go f.pump(pumpCtx, pubsub)

	f.log.Info("Redis counter fan-out started")
	return nil
}

func (f *RedisCounterFanout) pump(ctx context.Context, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				f.log.Info("Redis counter pub/sub channel closed")
				return
			}
			var event types.CounterEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				f.metrics.errorCount.Inc()
				f.log.Errorw("Failed to unmarshal counter event",
					"error", err,
					"payload", msg.Payload)
				continue
			}
			f.metrics.eventCount.WithLabelValues("in").Inc()
			f.local.Publish(event)
		}
	}
}

// Shutdown stops the pump and closes the Redis subscription.
func (f *RedisCounterFanout) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pubsub == nil {
		return nil
	}
	f.cancel()
	err := f.pubsub.Close()
	f.pubsub = nil
	f.cancel = nil
	if err != nil {
		return fmt.Errorf("failed to close counter subscription: %w", err)
	}
	return nil
}

// HealthCheck reports whether the Redis connection is usable.
func (f *RedisCounterFanout) HealthCheck(ctx context.Context) error {
	if err := f.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("counter fan-out unhealthy: %w", err)
	}
	return nil
}
