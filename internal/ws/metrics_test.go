package ws

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCountEnvelopesAndDeliveries(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	h := newHarness(t, m)
	h.d = NewDispatcher(h.store, h.registry, WithDispatchObserver(m))
	alice, bob := h.user("alice"), h.user("bob")
	h.connect(alice)

	h.send(alice, `{"type":"message","to":%d,"content":"hi"}`, bob.ID)
	h.send(alice, `{"type":"typing","to":%d}`, bob.ID)
	h.send(alice, `{"type":"edit_message","message_id":404,"content":"x"}`)
	h.send(alice, `{"type":"warp","to":1}`)
	h.send(alice, `[]`)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.envelopes.WithLabelValues(TypeMessage)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.envelopes.WithLabelValues(TypeTyping)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.envelopes.WithLabelValues("unknown")), "unknown tags share one label")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues(TypeEditMessage, DropUnknownMessage)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("unknown", DropUnrecognized)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("unknown", DropMalformed)))

	// The message reached alice but not offline bob; typing reached nobody.
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("delivered")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues(ReasonOffline)))
}

func TestMetricsConnectionGauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r := NewRegistry(m)

	r.Bind(1, newFakeTransport())
	r.Bind(2, newFakeTransport())
	r.Bind(1, newFakeTransport())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.connections), "a replacement keeps the count")

	r.Unbind(2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections))

	failing := newFakeTransport()
	failing.failSend = true
	r.Bind(3, failing)
	r.Deliver(3, Typing{To: 3})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues(ReasonSendFailed)))

	r.CloseAll()
	assert.Zero(t, testutil.ToFloat64(m.connections))
}
