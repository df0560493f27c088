// Package dispatch routes decoded server envelopes to the state-mutation
// handlers. It is the single entry point for inbound frames: parse, route,
// publish domain events. Handling is synchronous, so one frame's effects
// are fully applied before the next frame is looked at.
package dispatch

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/saifulwebid/ngobrol/internal/bus"
	"github.com/saifulwebid/ngobrol/internal/metrics"
	"github.com/saifulwebid/ngobrol/internal/protocol"
	"github.com/saifulwebid/ngobrol/internal/state"
)

// Dispatcher applies inbound server events to the session state.
type Dispatcher struct {
	store    *state.Store
	presence *state.Presence
	typing   *state.Typing
	bus      *bus.Bus
	logger   *zap.Logger
}

// New creates a dispatcher over the given state objects.
func New(store *state.Store, presence *state.Presence, typing *state.Typing, b *bus.Bus, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		presence: presence,
		typing:   typing,
		bus:      b,
		logger:   logger,
	}
}

// HandleFrame parses a raw inbound frame and dispatches it. Malformed
// frames are counted and discarded without affecting the connection;
// unknown tags are dropped silently.
func (d *Dispatcher) HandleFrame(data []byte) {
	tag, payload, err := protocol.Parse(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownEvent) {
			d.logger.Debug("dropping unknown event", zap.String("event", tag))
			return
		}
		metrics.ParseErrorsTotal.Inc()
		d.logger.Debug("discarding malformed frame", zap.Error(err))
		return
	}
	d.Dispatch(tag, payload)
}

// Dispatch routes a decoded event to its handler.
func (d *Dispatcher) Dispatch(tag string, payload any) {
	switch tag {
	case protocol.EventChat:
		d.handleChat(payload.(protocol.Message))
	case protocol.EventRead:
		d.handleRead(payload.(protocol.ReadPayload))
	case protocol.EventTyping:
		d.handleTyping(payload.(protocol.TypingPayload))
	case protocol.EventGetChats:
		d.handleHistory(payload.([]protocol.Message))
	case protocol.EventGetNotif:
		d.handleNotifHistory(payload.([]protocol.Message))
	case protocol.EventOnline:
		d.handleOnline(payload.(protocol.PresencePayload))
	case protocol.EventOffline:
		d.handleOffline(payload.(protocol.PresencePayload))
	}
}

func (d *Dispatcher) handleChat(m protocol.Message) {
	if d.store.AddMessage(m) {
		metrics.MessagesTotal.WithLabelValues("received").Inc()
		d.publish(bus.KindMessage, m)
	}
	if m.To == d.store.Owner() {
		if d.store.AddNotification(m) {
			metrics.MessagesTotal.WithLabelValues("notification").Inc()
			metrics.UnreadNotifications.Set(float64(d.store.UnreadCount()))
			d.publish(bus.KindNotification, m)
		}
	}
}

func (d *Dispatcher) handleRead(p protocol.ReadPayload) {
	d.store.MarkRead(p.From)
	metrics.UnreadNotifications.Set(float64(d.store.UnreadCount()))
	d.publish(bus.KindRead, p)
}

func (d *Dispatcher) handleTyping(p protocol.TypingPayload) {
	// Self-typing is never shown; the server should not echo it, but a
	// misbehaving one must not pollute the set.
	if p.From == d.store.Owner() {
		return
	}
	d.typing.Add(p.From)
	metrics.TypingUsers.Set(float64(d.typing.Active()))
}

func (d *Dispatcher) handleHistory(msgs []protocol.Message) {
	d.store.ReplaceMessages(msgs)
	d.publish(bus.KindHistory, msgs)
}

func (d *Dispatcher) handleNotifHistory(msgs []protocol.Message) {
	d.store.ReplaceNotifications(msgs)
	metrics.UnreadNotifications.Set(float64(d.store.UnreadCount()))
	d.publish(bus.KindNotifHistory, msgs)
}

func (d *Dispatcher) handleOnline(p protocol.PresencePayload) {
	if d.presence.Add(p.UserID) {
		metrics.OnlineUsers.Set(float64(len(d.presence.List())))
		d.publish(bus.KindOnline, p.UserID)
	}
}

func (d *Dispatcher) handleOffline(p protocol.PresencePayload) {
	if d.presence.Remove(p.UserID) {
		metrics.OnlineUsers.Set(float64(len(d.presence.List())))
		d.publish(bus.KindOffline, p.UserID)
	}
}

func (d *Dispatcher) publish(kind string, payload any) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
