package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics counts traffic through lobbies. A nil *RelayMetrics is a
// valid no-op recorder.
type RelayMetrics struct {
	MessagesRelayed *prometheus.CounterVec
	MessagesDropped *prometheus.CounterVec
	AuthAttempts    *prometheus.CounterVec
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		MessagesRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_relayed_total",
			Help:      "Messages relayed, by direction.",
		}, []string{"direction"}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Messages discarded without delivery, by reason.",
		}, []string{"reason"}),
		AuthAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Viewer authentication attempts, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.MessagesRelayed, m.MessagesDropped, m.AuthAttempts)
	return m
}

func (m *RelayMetrics) Relayed(direction string) {
	if m == nil {
		return
	}
	m.MessagesRelayed.WithLabelValues(direction).Inc()
}

func (m *RelayMetrics) Dropped(reason string, n uint64) {
	if m == nil {
		return
	}
	m.MessagesDropped.WithLabelValues(reason).Add(float64(n))
}

func (m *RelayMetrics) Auth(result string) {
	if m == nil {
		return
	}
	m.AuthAttempts.WithLabelValues(result).Inc()
}

// LobbyStats reports the registry's current size.
type LobbyStats func() (lobbies, paired int)

// RegisterLobbyGauges exposes registry size as gauges sampled at scrape time.
func RegisterLobbyGauges(reg prometheus.Registerer, stats LobbyStats) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lobbies_active",
			Help:      "Lobbies currently registered.",
		}, func() float64 {
			lobbies, _ := stats()
			return float64(lobbies)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lobbies_paired",
			Help:      "Lobbies with a streamer attached.",
		}, func() float64 {
			_, paired := stats()
			return float64(paired)
		}),
	)
}
