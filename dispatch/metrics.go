package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentreplay/agentreplay-sub002/metric"
)

// Metrics holds Prometheus metrics for the Dispatcher
type Metrics struct {
	invocations *prometheus.CounterVec
	dedupHits   *prometheus.CounterVec
	failures    *prometheus.CounterVec
	inflight    prometheus.Gauge
}

// NewMetrics creates and registers dispatcher metrics. Returns nil if
// the registry is nil, which disables metric recording.
func NewMetrics(registry *metric.Registry, componentName string) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentreplay",
			Subsystem: "dispatch",
			Name:      "invocations_total",
			Help:      "Total command invocations that issued a transport call",
		}, []string{"command", "kind"}),

		dedupHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentreplay",
			Subsystem: "dispatch",
			Name:      "dedup_hits_total",
			Help:      "Invocations that joined an in-flight identical request",
		}, []string{"command"}),

		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentreplay",
			Subsystem: "dispatch",
			Name:      "failures_total",
			Help:      "Transport calls that settled with an error",
		}, []string{"command"}),

		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentreplay",
			Subsystem: "dispatch",
			Name:      "inflight_requests",
			Help:      "Deduplicable requests currently in flight",
		}),
	}

	if err := registry.RegisterCounterVec(componentName, "invocations", m.invocations); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "dedup_hits", m.dedupHits); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(componentName, "failures", m.failures); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(componentName, "inflight_requests", m.inflight); err != nil {
		return nil, err
	}

	return m, nil
}
