// Package metrics exposes Prometheus collectors for HTTP traffic, render passes and
// exports.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "biodata"

var (
	registerOnce sync.Once

	renderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "pass_duration_seconds",
			Help:      "Render pass duration from start to settle, in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"layout", "outcome"},
	)

	renderTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "passes_total",
			Help:      "Render passes by layout and outcome (settled, superseded, failed).",
		},
		[]string{"layout", "outcome"},
	)

	taintedCanvases = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "tainted_canvases",
			Help:      "Canvases whose last settled pass drew a non CORS-clean image.",
		},
	)

	exportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "duration_seconds",
			Help:      "Export encoding duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"format", "outcome"},
	)

	exportTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "total",
			Help:      "Exports by format and outcome (ok, blocked, failed).",
		},
		[]string{"format", "outcome"},
	)
)

func register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			requestDuration, requestTotal, requestsInFlight,
			renderDuration, renderTotal, taintedCanvases,
			exportDuration, exportTotal,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	register()
	return promhttp.Handler()
}

// Recorder feeds render and export events into the package collectors. The zero value
// is ready to use.
type Recorder struct{}

// NewRecorder registers the collectors and returns a recorder.
func NewRecorder() Recorder {
	register()
	return Recorder{}
}

// ObserveRender records one finished render pass.
func (Recorder) ObserveRender(layout, outcome string, d time.Duration) {
	renderDuration.WithLabelValues(layout, outcome).Observe(d.Seconds())
	renderTotal.WithLabelValues(layout, outcome).Inc()
}

// TaintChanged adjusts the tainted canvas gauge when a canvas flips state.
func (Recorder) TaintChanged(tainted bool) {
	if tainted {
		taintedCanvases.Inc()
	} else {
		taintedCanvases.Dec()
	}
}

// ObserveExport records one export attempt.
func (Recorder) ObserveExport(format, outcome string, d time.Duration) {
	exportDuration.WithLabelValues(format, outcome).Observe(d.Seconds())
	exportTotal.WithLabelValues(format, outcome).Inc()
}
