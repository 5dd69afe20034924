package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Received("chat")
	m.Received("chat")
	m.Received("players")
	m.Sent("join")
	m.DecodeError()
	m.UnknownAction(strings.Repeat("x", 40))
	m.PromptDropped()
	m.Connected()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.received.WithLabelValues("chat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.received.WithLabelValues("players")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sent.WithLabelValues("join")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unknownActions.WithLabelValues(strings.Repeat("x", 32))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.droppedPrompts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connected))

	m.Disconnected(true)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionLost))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Received("chat")
	m.Sent("chat")
	m.DecodeError()
	m.UnknownAction("x")
	m.Anomaly()
	m.PromptDropped()
	m.Connected()
	m.Disconnected(true)
}
