// Package metrics exposes probe counters and latency histograms to Prometheus
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/commjoen/siteprobe/pkg/models"
)

// Recorder tracks probe outcomes. A nil *Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry

	probesTotal      *prometheus.CounterVec
	responseTimeMs   prometheus.Histogram
	subcheckFailures *prometheus.CounterVec
}

// NewRecorder creates a recorder backed by its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
	}

	r.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteprobe_probes_total",
			Help: "Total number of probes performed by resulting status",
		},
		[]string{"status"},
	)

	r.responseTimeMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siteprobe_response_time_ms",
			Help:    "Histogram of target response times in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)

	r.subcheckFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteprobe_subcheck_failures_total",
			Help: "Total number of failed sub-checks by check name",
		},
		[]string{"check"},
	)

	r.registry.MustRegister(
		r.probesTotal,
		r.responseTimeMs,
		r.subcheckFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// ObserveProbe records the outcome of one completed probe
func (r *Recorder) ObserveProbe(result *models.ProbeResponse) {
	if r == nil || result == nil {
		return
	}

	r.probesTotal.WithLabelValues(string(result.Website.Status)).Inc()
	if result.Website.ResponseTime != nil {
		r.responseTimeMs.Observe(float64(*result.Website.ResponseTime))
	}
}

// SubcheckFailed records a failed sub-check such as "fetch" or "dns"
func (r *Recorder) SubcheckFailed(check string) {
	if r == nil {
		return
	}
	r.subcheckFailures.WithLabelValues(check).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
