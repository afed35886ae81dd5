package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics holds Prometheus metrics for WebSocket connections.
type WebSocketMetrics struct {
	ActiveConnections   *prometheus.GaugeVec
	HandshakeRejections *prometheus.CounterVec
}

// NewWebSocketMetrics creates and registers WebSocket metrics on the given registry.
func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of active WebSocket connections, by role.",
		}, []string{"role"}),
		HandshakeRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "handshake_rejections_total",
			Help:      "Connection attempts rejected before upgrade, by role and reason.",
		}, []string{"role", "reason"}),
	}

	reg.MustRegister(m.ActiveConnections, m.HandshakeRejections)
	return m
}

// Connected records a new connection for role and returns a func that
// records its end.
func (m *WebSocketMetrics) Connected(role string) func() {
	if m == nil {
		return func() {}
	}
	gauge := m.ActiveConnections.WithLabelValues(role)
	gauge.Inc()
	return gauge.Dec
}

// Rejected records a handshake rejection.
func (m *WebSocketMetrics) Rejected(role, reason string) {
	if m == nil {
		return
	}
	m.HandshakeRejections.WithLabelValues(role, reason).Inc()
}
