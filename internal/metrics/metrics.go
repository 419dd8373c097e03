package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsOpen tracks live websocket connections.
	ConnectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dmrelay_connections_open",
		Help: "Number of currently open websocket connections.",
	})

	// UsersOnline tracks distinct online users.
	UsersOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dmrelay_users_online",
		Help: "Number of distinct users with at least one open connection.",
	})

	// MessagesRelayed counts chat messages fanned out.
	MessagesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dmrelay_messages_relayed_total",
		Help: "Chat messages accepted and fanned out.",
	})

	// TypingSignals counts typing events forwarded.
	TypingSignals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dmrelay_typing_signals_total",
		Help: "Typing signals forwarded to recipients.",
	})

	// EphemeralToggles counts ephemeral-mode toggles applied.
	EphemeralToggles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dmrelay_ephemeral_toggles_total",
		Help: "Ephemeral-mode toggles applied.",
	})

	// AuthFailures counts refused handshakes.
	AuthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dmrelay_auth_failures_total",
		Help: "Websocket handshakes refused for missing or invalid tokens.",
	})

	// MalformedEvents counts inbound events dropped as malformed.
	MalformedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dmrelay_malformed_events_total",
		Help: "Inbound events dropped because they were malformed or unknown.",
	})

	// DroppedSends counts payloads dropped on full or closed connections.
	DroppedSends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dmrelay_dropped_sends_total",
		Help: "Outbound payloads dropped because the connection buffer was full.",
	})
)
