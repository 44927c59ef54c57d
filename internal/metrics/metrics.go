// Package metrics exposes repository activity as Prometheus metrics.
package metrics

import (
	"encoding/json"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/prevalence/internal/observe"
)

// Metrics implements observe.Observer.
type Metrics struct {
	// Live commands executed successfully, by command name
	Commands *prometheus.CounterVec

	// Failures surfaced to callers, by operation (init, execute, query)
	Errors *prometheus.CounterVec

	// Records applied by the initial replay
	Replayed prometheus.Gauge

	// Duration of the initial replay
	ReplayDuration prometheus.Histogram
}

var _ observe.Observer = (*Metrics)(nil)

// New registers the repository metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prevalence_commands_total",
			Help: "Total live commands executed by name",
		}, []string{"command"}),

		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "prevalence_errors_total",
			Help: "Total repository errors by operation",
		}, []string{"op"}),

		Replayed: f.NewGauge(prometheus.GaugeOpts{
			Name: "prevalence_replayed_records",
			Help: "Number of journal records applied during initialization",
		}),

		ReplayDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "prevalence_replay_duration_seconds",
			Help:    "Duration of the initial journal replay",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}
}

func (m *Metrics) Initialized(replayed int, took time.Duration) {
	if m != nil {
		m.Replayed.Set(float64(replayed))
		m.ReplayDuration.Observe(took.Seconds())
	}
}

func (m *Metrics) Executed(name string, _ json.RawMessage, _ any) {
	if m != nil {
		m.Commands.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) Error(op string, _ error) {
	if m != nil {
		m.Errors.WithLabelValues(op).Inc()
	}
}
