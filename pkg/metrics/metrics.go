// Package metrics exposes Prometheus counters and histograms for channel calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "native_share"

// Recorder implements dispatcher.Recorder on its own registry.
type Recorder struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
	saved    *prometheus.CounterVec
}

// NewRecorder creates a Recorder with Go runtime and process collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Channel calls by method and outcome.",
		}, []string{"method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Time from call receipt to reply.",
			Buckets:   []float64{.005, .025, .1, .5, 1, 5, 30, 120},
		}, []string{"method"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_in_flight",
			Help:      "Calls received but not yet replied to.",
		}),
		saved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_saved_total",
			Help:      "Images written to the gallery by format.",
		}, []string{"format"}),
	}
	r.registry.MustRegister(
		r.calls, r.duration, r.inflight, r.saved,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// CallStarted marks a call as in flight.
func (r *Recorder) CallStarted(string) {
	r.inflight.Inc()
}

// ObserveCall records the terminal outcome of one call.
func (r *Recorder) ObserveCall(method, outcome string, elapsed time.Duration) {
	r.inflight.Dec()
	r.calls.WithLabelValues(method, outcome).Inc()
	r.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// AssetSaved counts a gallery write.
func (r *Recorder) AssetSaved(format string) {
	r.saved.WithLabelValues(format).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
