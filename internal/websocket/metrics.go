package websocket

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the push channel. A nil
// *Metrics records nothing.
type Metrics struct {
	connections      prometheus.Counter
	activeClients    prometheus.Gauge
	connectionLength prometheus.Histogram
	messagesSent     *prometheus.CounterVec
	dropped          prometheus.Counter
	commands         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg
// is not nil
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wqdash",
			Subsystem: "websocket",
			Name:      "connections_total",
			Help:      "Total number of accepted WebSocket connections.",
		}),
		activeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wqdash",
			Subsystem: "websocket",
			Name:      "active_clients",
			Help:      "Number of currently connected WebSocket clients.",
		}),
		connectionLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wqdash",
			Subsystem: "websocket",
			Name:      "connection_duration_seconds",
			Help:      "Lifetime of WebSocket connections.",
			Buckets:   []float64{1, 10, 60, 300, 900, 3600, 14400},
		}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wqdash",
			Subsystem: "websocket",
			Name:      "messages_sent_total",
			Help:      "Messages queued to clients by message type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wqdash",
			Subsystem: "websocket",
			Name:      "dropped_clients_total",
			Help:      "Clients disconnected because their send buffer was full.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wqdash",
			Subsystem: "websocket",
			Name:      "commands_total",
			Help:      "Client commands received by type and result.",
		}, []string{"type", "result"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.connections, m.activeClients, m.connectionLength,
			m.messagesSent, m.dropped, m.commands,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) recordConnection(active int) {
	if m == nil {
		return
	}
	m.connections.Inc()
	m.activeClients.Set(float64(active))
}

func (m *Metrics) recordDisconnection(active int, lifetime time.Duration) {
	if m == nil {
		return
	}
	m.activeClients.Set(float64(active))
	m.connectionLength.Observe(lifetime.Seconds())
}

func (m *Metrics) recordSent(msgType string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.messagesSent.WithLabelValues(msgType).Add(float64(n))
}

func (m *Metrics) recordDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) recordCommand(cmdType, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(cmdType, result).Inc()
}
