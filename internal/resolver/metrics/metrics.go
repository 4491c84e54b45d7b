package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the permission resolver.
type Metrics struct {
	Decisions     *prometheus.CounterVec
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	CacheFailures prometheus.Counter
	Latency       prometheus.Histogram
	StepErrors    *prometheus.CounterVec
}

// New creates and registers all resolver metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the collectors on reg. Tests pass a private registry
// so repeated construction cannot collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_decisions_total",
			Help: "Total permission decisions by action, source, and outcome",
		}, []string{"action", "source", "allowed"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "authgate_cache_hits_total",
			Help: "Total decisions served from the cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "authgate_cache_misses_total",
			Help: "Total decisions recomputed on a cache miss",
		}),
		CacheFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "authgate_cache_failures_total",
			Help: "Total cache store failures degraded to recompute",
		}),
		Latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "authgate_decision_duration_seconds",
			Help:    "Latency distribution of permission decisions",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
		}),
		StepErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authgate_pipeline_step_errors_total",
			Help: "Total pipeline step failures downgraded to exception decisions",
		}, []string{"step"}),
	}
}
