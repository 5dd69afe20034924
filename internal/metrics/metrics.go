// Package metrics exposes client-side protocol counters to Prometheus.
//
// All methods are safe on a nil *Metrics, which disables collection.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "werewolf_client"

type Metrics struct {
	received       *prometheus.CounterVec
	sent           *prometheus.CounterVec
	decodeErrors   prometheus.Counter
	unknownActions *prometheus.CounterVec
	anomalies      prometheus.Counter
	droppedPrompts prometheus.Counter
	connected      prometheus.Gauge
	connectionLost prometheus.Counter
}

// New registers the client collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		received: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_received_total",
			Help:      "Server records decoded, by action.",
		}, []string{"action"}),

		sent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_sent_total",
			Help:      "Client records queued for sending, by action.",
		}, []string{"action"}),

		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Records discarded because they could not be decoded.",
		}),

		unknownActions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_actions_total",
			Help:      "Records ignored because their action is not recognized.",
		}, []string{"action"}),

		anomalies: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_anomalies_total",
			Help:      "Recognized records with missing or malformed fields.",
		}),

		droppedPrompts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_prompts_dropped_total",
			Help:      "Vote prompts ignored because the player is dead.",
		}),

		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while a server connection is open.",
		}),

		connectionLost: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_lost_total",
			Help:      "Connections that failed to open or were lost.",
		}),
	}
}

func (m *Metrics) Received(action string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(action).Inc()
}

func (m *Metrics) Sent(action string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(action).Inc()
}

func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// UnknownAction counts an unrecognized tag. Tags come from the server, so the
// label is capped to keep cardinality bounded.
func (m *Metrics) UnknownAction(action string) {
	if m == nil {
		return
	}
	if len(action) > 32 {
		action = action[:32]
	}
	m.unknownActions.WithLabelValues(action).Inc()
}

func (m *Metrics) Anomaly() {
	if m == nil {
		return
	}
	m.anomalies.Inc()
}

func (m *Metrics) PromptDropped() {
	if m == nil {
		return
	}
	m.droppedPrompts.Inc()
}

func (m *Metrics) Connected() {
	if m == nil {
		return
	}
	m.connected.Set(1)
}

func (m *Metrics) Disconnected(lost bool) {
	if m == nil {
		return
	}
	m.connected.Set(0)
	if lost {
		m.connectionLost.Inc()
	}
}
