// Package metrics exposes Prometheus instrumentation for registry lookups.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazz-dev/cratecheck/internal/checker"
)

// Recorder counts lookups by availability and tracks their latency.
type Recorder struct {
	registry *prometheus.Registry
	lookups  *prometheus.CounterVec
	duration prometheus.Histogram
}

// New returns a Recorder backed by its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cratecheck_lookups_total",
				Help: "Total registry lookups by availability",
			},
			[]string{"availability"},
		),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cratecheck_lookup_duration_seconds",
			Help:    "Registry lookup round-trip time",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Observe records a lookup result.
func (r *Recorder) Observe(result checker.Result) {
	r.lookups.WithLabelValues(result.Availability.String()).Inc()
	r.duration.Observe(result.ResponseTime.Seconds())
}

// Lookups returns the counter for an availability, for inspection.
func (r *Recorder) Lookups(a checker.Availability) prometheus.Counter {
	return r.lookups.WithLabelValues(a.String())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
