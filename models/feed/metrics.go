package feed

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// engineMetrics holds Prometheus metrics for the feed engine.
type engineMetrics struct {
	fetchesTotal        *prometheus.CounterVec
	fetchDuration       prometheus.Histogram
	supersededFetches   prometheus.Counter
	duplicateIdentities prometheus.Counter
	markReadTotal       *prometheus.CounterVec
	rollbacksTotal      *prometheus.CounterVec
	unreadGauge         *prometheus.GaugeVec
}

// Singleton pattern for metrics (avoid double registration in tests).
var (
	engineMetricsInstance *engineMetrics
	engineMetricsOnce     sync.Once
	engineMetricsRegistry = prometheus.DefaultRegisterer
)

// newEngineMetrics initializes and registers Prometheus metrics using singleton pattern.
func newEngineMetrics() *engineMetrics {
	engineMetricsOnce.Do(func() {
		engineMetricsInstance = &engineMetrics{
			fetchesTotal: promauto.With(engineMetricsRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "feed_engine_fetches_total",
				Help: "Total number of feed fetches by outcome",
			}, []string{"outcome"}),
			fetchDuration: promauto.With(engineMetricsRegistry).NewHistogram(prometheus.HistogramOpts{
				Name:    "feed_engine_fetch_duration_seconds",
				Help:    "Time taken to fetch, merge, and overlay a feed",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			}),
			supersededFetches: promauto.With(engineMetricsRegistry).NewCounter(prometheus.CounterOpts{
				Name: "feed_engine_superseded_fetches_total",
				Help: "Total number of completed fetches discarded because a newer fetch was issued",
			}),
			duplicateIdentities: promauto.With(engineMetricsRegistry).NewCounter(prometheus.CounterOpts{
				Name: "feed_engine_duplicate_identities_total",
				Help: "Total number of duplicate identities observed within a single fetch",
			}),
			markReadTotal: promauto.With(engineMetricsRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "feed_engine_mark_read_total",
				Help: "Total number of mark-read operations by kind and outcome",
			}, []string{"kind", "outcome"}),
			rollbacksTotal: promauto.With(engineMetricsRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "feed_engine_rollbacks_total",
				Help: "Total number of optimistic mutations rolled back after a persistence failure",
			}, []string{"kind"}),
			unreadGauge: promauto.With(engineMetricsRegistry).NewGaugeVec(prometheus.GaugeOpts{
				Name: "feed_engine_unread_notifications",
				Help: "Current unread counter per user",
			}, []string{"user_id"}),
		}
	})
	return engineMetricsInstance
}

// resetEngineMetricsForTesting resets the metrics singleton for test isolation.
// This should only be called from tests.
func resetEngineMetricsForTesting() {
	reg := prometheus.NewRegistry()
	engineMetricsRegistry = reg
	engineMetricsInstance = nil
	engineMetricsOnce = sync.Once{}
}
