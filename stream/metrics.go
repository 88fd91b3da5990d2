package stream

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentreplay/agentreplay-sub002/metric"
)

// Metrics holds Prometheus metrics for the stream Client
type Metrics struct {
	records           prometheus.Counter
	parseErrors       prometheus.Counter
	lagNotices        prometheus.Counter
	lagSkipped        prometheus.Counter
	connects          prometheus.Counter
	reconnectAttempts prometheus.Counter
	state             prometheus.Gauge
}

// NewMetrics creates and registers stream metrics. Returns nil if the
// registry is nil, which disables metric recording.
func NewMetrics(registry *metric.Registry, componentName string) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentreplay",
			Subsystem: "stream",
			Name:      "records_received_total",
			Help:      "Total trace records received from the push stream",
		}),

		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentreplay",
			Subsystem: "stream",
			Name:      "parse_errors_total",
			Help:      "Payloads dropped because they could not be decoded",
		}),

		lagNotices: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentreplay",
			Subsystem: "stream",
			Name:      "lag_notices_total",
			Help:      "Lag notices received from the server",
		}),

		lagSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentreplay",
			Subsystem: "stream",
			Name:      "lag_skipped_records_total",
			Help:      "Records the server reported as skipped due to lag",
		}),

		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentreplay",
			Subsystem: "stream",
			Name:      "connects_total",
			Help:      "Successful stream connections",
		}),

		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agentreplay",
			Subsystem: "stream",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts scheduled after a disconnect",
		}),

		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentreplay",
			Subsystem: "stream",
			Name:      "state",
			Help:      "Current connection state (0 idle, 1 connecting, 2 connected, 3 disconnected, 4 stopped)",
		}),
	}

	counters := map[string]prometheus.Counter{
		"records_received":    m.records,
		"parse_errors":        m.parseErrors,
		"lag_notices":         m.lagNotices,
		"lag_skipped_records": m.lagSkipped,
		"connects":            m.connects,
		"reconnect_attempts":  m.reconnectAttempts,
	}
	for name, c := range counters {
		if err := registry.RegisterCounter(componentName, name, c); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterGauge(componentName, "state", m.state); err != nil {
		return nil, err
	}

	return m, nil
}
