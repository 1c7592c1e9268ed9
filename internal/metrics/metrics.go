// Package metrics provides Prometheus instrumentation for the chat server:
// gauges for connections and presence, counters for logins, messages and
// dropped deliveries, and a histogram for store latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive tracks the current number of registered connections.
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomchat_connections_active",
		Help: "Current number of registered websocket connections",
	})

	// PresenceMembers tracks the number of distinct nicknames in the room.
	PresenceMembers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomchat_presence_members",
		Help: "Current number of distinct nicknames present in the room",
	})

	// LoginsTotal counts login attempts by result.
	LoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roomchat_logins_total",
		Help: "Login attempts by result",
	}, []string{"result"}) // result = "ok", "invalid", "rejected", "error"

	// MessagesTotal counts send-message commands by result.
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roomchat_messages_total",
		Help: "Chat messages by result",
	}, []string{"result"}) // result = "posted", "rejected", "limited", "failed"

	// DeliveryDropped counts events dropped because a connection's queue was full.
	DeliveryDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomchat_delivery_dropped_total",
		Help: "Events dropped for slow or vanished connections",
	})

	// StoreLatency records message store call latency in seconds.
	StoreLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roomchat_store_latency_seconds",
		Help:    "Message store latency in seconds",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"op"}) // op = "append", "recent", "before"
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		PresenceMembers,
		LoginsTotal,
		MessagesTotal,
		DeliveryDropped,
		StoreLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
