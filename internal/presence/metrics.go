package presence

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts client activity. A nil *Metrics records nothing.
type Metrics struct {
	snapshots     *prometheus.CounterVec
	reconnects    prometheus.Counter
	heartbeats    prometheus.Counter
	droppedFrames prometheus.Counter
	state         prometheus.Gauge
}

// NewMetrics creates the client metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "presence",
			Name:      "snapshots_total",
			Help:      "Presence snapshots delivered, by source.",
		}, []string{"source"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "presence",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled after a lost gateway connection.",
		}),
		heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "presence",
			Name:      "heartbeats_sent_total",
			Help:      "Keepalive frames written to the gateway.",
		}),
		droppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "presence",
			Name:      "dropped_frames_total",
			Help:      "Gateway frames ignored as malformed or unrecognized.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "presence",
			Name:      "connection_state",
			Help:      "Current connection state (0 disconnected, 1 connecting, 2 awaiting hello, 3 subscribed).",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.snapshots, m.reconnects, m.heartbeats, m.droppedFrames, m.state)
	}

	return m
}

func (m *Metrics) snapshot(source Source) {
	if m != nil {
		m.snapshots.WithLabelValues(string(source)).Inc()
	}
}

func (m *Metrics) reconnect() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) heartbeat() {
	if m != nil {
		m.heartbeats.Inc()
	}
}

func (m *Metrics) dropped() {
	if m != nil {
		m.droppedFrames.Inc()
	}
}

func (m *Metrics) setState(s State) {
	if m != nil {
		m.state.Set(float64(s))
	}
}
