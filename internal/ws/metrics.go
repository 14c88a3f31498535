package ws

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts envelopes, drops and deliveries. It observes both the
// registry and the dispatcher and never alters what is sent.
type Metrics struct {
	envelopes   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	failures    *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	connections prometheus.Gauge
}

var (
	_ Observer         = (*Metrics)(nil)
	_ DispatchObserver = (*Metrics)(nil)
)

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		envelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatvideo_ws_envelopes_total",
			Help: "Inbound envelopes by type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatvideo_ws_envelopes_dropped_total",
			Help: "Inbound envelopes dropped without effect, by type and reason.",
		}, []string{"type", "reason"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatvideo_ws_handler_errors_total",
			Help: "Inbound envelopes whose handler failed, by type.",
		}, []string{"type"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatvideo_ws_deliveries_total",
			Help: "Outbound delivery attempts by result.",
		}, []string{"result"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatvideo_ws_connections",
			Help: "Users with a bound connection.",
		}),
	}
	reg.MustRegister(m.envelopes, m.dropped, m.failures, m.deliveries, m.connections)
	return m
}

// knownKind keeps the type label bounded to the handled set.
func knownKind(kind string) string {
	if _, ok := events[kind]; ok {
		return kind
	}
	return "unknown"
}

func (m *Metrics) Received(kind string) {
	m.envelopes.WithLabelValues(knownKind(kind)).Inc()
}

func (m *Metrics) Dropped(kind, reason string) {
	m.dropped.WithLabelValues(knownKind(kind), reason).Inc()
}

func (m *Metrics) Failed(kind string) {
	m.failures.WithLabelValues(knownKind(kind)).Inc()
}

func (m *Metrics) Bound(int64, string, bool) {
	m.connections.Inc()
}

func (m *Metrics) Unbound(int64, string) {
	m.connections.Dec()
}

func (m *Metrics) Delivered(int64) {
	m.deliveries.WithLabelValues("delivered").Inc()
}

func (m *Metrics) Undelivered(_ int64, reason string) {
	m.deliveries.WithLabelValues(reason).Inc()
}
