// Package controller exposes the user-facing session operations: log in,
// pick a conversation, send, signal typing, log out. It validates input,
// drives the transport, and applies optimistic local effects so the
// caller sees sends immediately.
package controller

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/saifulwebid/ngobrol/internal/bus"
	"github.com/saifulwebid/ngobrol/internal/metrics"
	"github.com/saifulwebid/ngobrol/internal/protocol"
	"github.com/saifulwebid/ngobrol/internal/state"
	"github.com/saifulwebid/ngobrol/internal/status"
)

var (
	// ErrEmptyUser is returned when a user identifier is blank.
	ErrEmptyUser = errors.New("controller: user id must not be empty")
	// ErrEmptyBody is returned when a message body is blank.
	ErrEmptyBody = errors.New("controller: message body must not be empty")
	// ErrNoActivePeer is returned when sending without a selected conversation.
	ErrNoActivePeer = errors.New("controller: no conversation selected")
	// ErrNotConnected is returned for operations that need a live session.
	ErrNotConnected = errors.New("controller: not connected")
)

// Transport is the connection surface the controller drives.
type Transport interface {
	Connect(ctx context.Context, userID string) error
	Disconnect()
	Send(event string, payload any) error
	State() status.State
}

// HistoryFetcher hydrates history over HTTP before the socket settles.
type HistoryFetcher interface {
	FetchChats(ctx context.Context, user1, user2 string) ([]protocol.Message, error)
	FetchNotifs(ctx context.Context, userID string) ([]protocol.Message, error)
}

// Controller coordinates a single user's chat session.
type Controller struct {
	transport Transport
	store     *state.Store
	typing    *state.Typing
	history   HistoryFetcher
	bus       *bus.Bus
	logger    *zap.Logger

	peer string
}

// New creates a controller. history may be nil when no HTTP bootstrap
// endpoint is configured.
func New(transport Transport, store *state.Store, typing *state.Typing, history HistoryFetcher, b *bus.Bus, logger *zap.Logger) *Controller {
	return &Controller{
		transport: transport,
		store:     store,
		typing:    typing,
		history:   history,
		bus:       b,
		logger:    logger,
	}
}

// Login establishes the session for userID. The notification tray is
// hydrated over HTTP on a best-effort basis; the socket's getNotif reply
// will replace it anyway.
func (c *Controller) Login(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUser
	}
	if err := c.transport.Connect(ctx, userID); err != nil {
		return err
	}
	c.store.SetOwner(userID)

	if c.history != nil {
		notifs, err := c.history.FetchNotifs(ctx, userID)
		if err != nil {
			c.logger.Warn("notification bootstrap failed", zap.Error(err))
		} else {
			c.store.ReplaceNotifications(notifs)
		}
	}
	return nil
}

// SelectConversation makes peer the active conversation: requests the
// transcript, tells the server the peer's messages are read, and applies
// the read flip locally without waiting for the echo.
func (c *Controller) SelectConversation(peer string) error {
	if peer == "" {
		return ErrEmptyUser
	}
	if c.transport.State() != status.Connected {
		return ErrNotConnected
	}
	owner := c.store.Owner()
	c.peer = peer

	if err := c.transport.Send(protocol.EventGetChats, protocol.HistoryRequest{User1: owner, User2: peer}); err != nil {
		return err
	}
	if err := c.transport.Send(protocol.EventRead, protocol.ReadPayload{From: peer, To: owner}); err != nil {
		return err
	}
	c.store.MarkRead(peer)
	metrics.UnreadNotifications.Set(float64(c.store.UnreadCount()))
	return nil
}

// ActivePeer returns the currently selected conversation partner, or "".
func (c *Controller) ActivePeer() string { return c.peer }

// SendMessage sends body to the active peer and records it locally right
// away under a provisional id. When the server's history replaces the
// transcript, the provisional record goes with it.
func (c *Controller) SendMessage(body string) (protocol.Message, error) {
	if body == "" {
		return protocol.Message{}, ErrEmptyBody
	}
	if c.peer == "" {
		return protocol.Message{}, ErrNoActivePeer
	}
	if c.transport.State() != status.Connected {
		return protocol.Message{}, ErrNotConnected
	}
	owner := c.store.Owner()

	if err := c.transport.Send(protocol.EventChat, protocol.ChatSend{From: owner, To: c.peer, Body: body}); err != nil {
		return protocol.Message{}, err
	}

	msg := protocol.Message{
		ID:        time.Now().UnixMilli(),
		From:      owner,
		To:        c.peer,
		Body:      body,
		Read:      false,
		Timestamp: time.Now(),
	}
	c.store.AddMessage(msg)
	metrics.MessagesTotal.WithLabelValues("sent").Inc()
	if c.bus != nil {
		c.bus.Publish(bus.Event{Kind: bus.KindSent, Timestamp: time.Now(), Payload: msg})
	}
	return msg, nil
}

// SignalTyping tells the active peer the owner is composing. Callers are
// expected to invoke it per keystroke; the server fans it out.
func (c *Controller) SignalTyping() error {
	if c.peer == "" {
		return ErrNoActivePeer
	}
	if c.transport.State() != status.Connected {
		return ErrNotConnected
	}
	return c.transport.Send(protocol.EventTyping, protocol.TypingPayload{From: c.store.Owner(), To: c.peer})
}

// Logout closes the connection. Local state is kept so a rendered view
// does not blank out; the next Login replaces it.
func (c *Controller) Logout() {
	c.peer = ""
	c.typing.Stop()
	c.transport.Disconnect()
}
