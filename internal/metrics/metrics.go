// Package metrics provides Prometheus instrumentation for the session
// engine: frame throughput, parse failures, store activity, and gauges for
// the presence and typing sets.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FramesTotal counts WebSocket frames, labeled by direction
	// ("inbound" or "outbound").
	FramesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ngobrol_frames_total",
		Help: "Total number of WebSocket frames processed",
	}, []string{"direction"})

	// ParseErrorsTotal counts inbound frames discarded as malformed.
	ParseErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ngobrol_parse_errors_total",
		Help: "Total number of inbound frames discarded as malformed",
	})

	// MessagesTotal counts messages entering the conversation store,
	// labeled by kind ("received", "notification", "sent").
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ngobrol_messages_total",
		Help: "Total number of messages added to the conversation store",
	}, []string{"kind"})

	// OnlineUsers tracks the current size of the presence set.
	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ngobrol_online_users",
		Help: "Current number of users seen online",
	})

	// TypingUsers tracks the current size of the typing set.
	TypingUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ngobrol_typing_users",
		Help: "Current number of users signalling typing activity",
	})

	// UnreadNotifications tracks the derived unread badge count.
	UnreadNotifications = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ngobrol_unread_notifications",
		Help: "Current number of unread notifications",
	})

	// ConnectsTotal counts connection attempts, labeled by outcome
	// ("opened", "failed").
	ConnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ngobrol_connects_total",
		Help: "Total number of connection attempts",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		FramesTotal,
		ParseErrorsTotal,
		MessagesTotal,
		OnlineUsers,
		TypingUsers,
		UnreadNotifications,
		ConnectsTotal,
	)
}

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
