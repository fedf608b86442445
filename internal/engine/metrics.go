package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors dialogs report to.
// A nil *Metrics disables reporting.
type Metrics struct {
	passes   *prometheus.CounterVec
	computes *prometheus.CounterVec
	skips    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rdialog_passes_total",
				Help: "Total number of evaluation passes",
			},
			[]string{"dialog", "trigger", "status"},
		),
		computes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rdialog_provider_computes_total",
				Help: "Total number of provider compute-phase invocations",
			},
			[]string{"dialog"},
		),
		skips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rdialog_provider_skips_total",
				Help: "Total number of providers skipped by declared failures",
			},
			[]string{"dialog"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rdialog_pass_duration_seconds",
				Help:    "Duration of evaluation passes",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"dialog", "trigger"},
		),
	}

	for _, c := range []prometheus.Collector{m.passes, m.computes, m.skips, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(dialog, trigger, status string, computes, skips int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(dialog, trigger, status).Inc()
	m.computes.WithLabelValues(dialog).Add(float64(computes))
	m.skips.WithLabelValues(dialog).Add(float64(skips))
	m.duration.WithLabelValues(dialog, trigger).Observe(elapsed.Seconds())
}
