// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Conversions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convert_jobs_total",
		Help: "Conversion jobs by format and outcome.",
	}, []string{"format", "outcome"})

	ConversionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "convert_job_duration_seconds",
		Help:    "Wall-clock duration of conversion jobs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	Sweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artifact_sweeps_total",
		Help: "Expiry sweeper runs.",
	})

	SweptArtifacts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artifact_swept_total",
		Help: "Artifacts reclaimed by the sweeper, by outcome.",
	}, []string{"outcome"})

	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artifact_downloads_total",
		Help: "Download gate hits and misses.",
	}, []string{"outcome"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
