package bus

import "time"

// Event kinds published by the session engine. Subscribers filter by
// namespace prefix, e.g. "chat." receives every chat event.
const (
	KindMessage      = "chat.message"
	KindNotification = "chat.notification"
	KindRead         = "chat.read"
	KindHistory      = "chat.history"
	KindNotifHistory = "chat.notif_history"
	KindOnline       = "presence.online"
	KindOffline      = "presence.offline"
	KindTyping       = "typing.started"
	KindTypingGone   = "typing.expired"
	KindStatus       = "transport.status_changed"
	KindSent         = "chat.sent"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
