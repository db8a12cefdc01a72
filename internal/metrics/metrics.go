package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the marketplace's prometheus collectors.
type Recorder struct {
	gatherer prometheus.Gatherer

	CreditsIssued      prometheus.Counter
	AuditorShortfalls  prometheus.Counter
	CacheFailures      *prometheus.CounterVec
	AuditorPoolSize    prometheus.Gauge
	AuditorAssignments prometheus.Histogram
}

// NewRecorder registers the collectors on reg.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		gatherer: reg,
		CreditsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_credits_issued_total",
			Help: "Credits persisted together with their audit request.",
		}),
		AuditorShortfalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_auditor_shortfalls_total",
			Help: "Credit creations rejected because the auditor pool was too small.",
		}),
		CacheFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_cache_failures_total",
			Help: "Cache operations that failed and were ignored.",
		}, []string{"op"}),
		AuditorPoolSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "marketplace_auditor_pool_size",
			Help: "Users currently holding the auditor role.",
		}),
		AuditorAssignments: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketplace_auditors_per_credit",
			Help:    "Auditors assigned to each issued credit.",
			Buckets: prometheus.LinearBuckets(3, 2, 8),
		}),
	}
}

// NewNopRecorder returns a recorder bound to a private registry, for tests and tools.
func NewNopRecorder() *Recorder {
	return NewRecorder(prometheus.NewRegistry())
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
