package window

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentreplay/agentreplay-sub002/errors"
	"github.com/agentreplay/agentreplay-sub002/metric"
)

// windowMetrics holds optional Prometheus metrics for a Window
type windowMetrics struct {
	inserts     prometheus.Counter
	replaces    prometheus.Counter
	evicts      prometheus.Counter
	size        prometheus.Gauge
	utilization prometheus.Gauge
}

// WithMetrics exposes window statistics as Prometheus metrics under the
// given component name.
func WithMetrics[T any](registry *metric.Registry, componentName string) Option[T] {
	return func(w *Window[T]) error {
		if registry == nil {
			return nil
		}

		m := &windowMetrics{
			inserts: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace:   "agentreplay",
				Subsystem:   "window",
				Name:        "inserts_total",
				Help:        "Total new records inserted into the window",
				ConstLabels: prometheus.Labels{"component": componentName},
			}),
			replaces: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace:   "agentreplay",
				Subsystem:   "window",
				Name:        "replaces_total",
				Help:        "Total in-place replacements of existing records",
				ConstLabels: prometheus.Labels{"component": componentName},
			}),
			evicts: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace:   "agentreplay",
				Subsystem:   "window",
				Name:        "evictions_total",
				Help:        "Total records evicted due to capacity",
				ConstLabels: prometheus.Labels{"component": componentName},
			}),
			size: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace:   "agentreplay",
				Subsystem:   "window",
				Name:        "size",
				Help:        "Current number of records in the window",
				ConstLabels: prometheus.Labels{"component": componentName},
			}),
			utilization: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace:   "agentreplay",
				Subsystem:   "window",
				Name:        "utilization",
				Help:        "Window utilization (0.0-1.0)",
				ConstLabels: prometheus.Labels{"component": componentName},
			}),
		}

		counters := map[string]prometheus.Counter{
			"inserts":   m.inserts,
			"replaces":  m.replaces,
			"evictions": m.evicts,
		}
		for name, c := range counters {
			if err := registry.RegisterCounter(componentName, "window_"+name, c); err != nil {
				return errors.WrapTransient(err, "window", "WithMetrics", "metrics registration")
			}
		}
		gauges := map[string]prometheus.Gauge{
			"size":        m.size,
			"utilization": m.utilization,
		}
		for name, g := range gauges {
			if err := registry.RegisterGauge(componentName, "window_"+name, g); err != nil {
				return errors.WrapTransient(err, "window", "WithMetrics", "metrics registration")
			}
		}

		w.metrics = m
		return nil
	}
}

func (m *windowMetrics) recordInsert(size, capacity int) {
	m.inserts.Inc()
	m.updateSize(size, capacity)
}

func (m *windowMetrics) recordReplace() {
	m.replaces.Inc()
}

func (m *windowMetrics) recordEvict() {
	m.evicts.Inc()
}

func (m *windowMetrics) updateSize(size, capacity int) {
	m.size.Set(float64(size))
	if capacity > 0 {
		m.utilization.Set(float64(size) / float64(capacity))
	}
}
