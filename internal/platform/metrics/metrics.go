package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RevocationsCreated  prometheus.Counter
	EnrichmentAttempts  prometheus.Counter
	EnrichmentResults   *prometheus.CounterVec
	EnrichmentDuration  prometheus.Histogram
	CacheHits           prometheus.Counter
	BroadcastDeliveries prometheus.Counter
	BroadcastFailures   prometheus.Counter
	SubscribersActive   prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		RevocationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentry_revocations_created_total",
			Help: "Total number of revocations durably recorded",
		}),
		EnrichmentAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentry_enrichment_attempts_total",
			Help: "Total number of external analysis call attempts",
		}),
		EnrichmentResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentry_enrichment_results_total",
			Help: "Narrative generation outcomes by source",
		}, []string{"source"}),
		EnrichmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentry_enrichment_duration_seconds",
			Help:    "Wall time from submission to completed audit entry",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentry_enrichment_cache_hits_total",
			Help: "Narrative generations served from the enrichment cache",
		}),
		BroadcastDeliveries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentry_broadcast_deliveries_total",
			Help: "Event frames delivered to subscribers",
		}),
		BroadcastFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentry_broadcast_failures_total",
			Help: "Event frames dropped for slow or dead subscribers",
		}),
		SubscribersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "consentry_event_subscribers",
			Help: "Currently registered event stream subscribers",
		}),
	}
}
