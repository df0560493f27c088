// Package protocol defines the tagged envelope exchanged with the chat
// server over the persistent WebSocket connection. Every frame is JSON of
// the form {"event": <tag>, "data": <payload>}; the payload shape depends
// on the tag. Parsing rejects frames that are not well-formed envelopes or
// whose payload does not match the tag's schema.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Envelope event tags.
const (
	EventChat     = "chat"
	EventRead     = "read"
	EventTyping   = "typing"
	EventGetChats = "getChats"
	EventGetNotif = "getNotif"
	EventOnline   = "online"
	EventOffline  = "offline"
)

// ErrUnknownEvent is returned by Parse for tags this client does not know.
// Unknown tags are dropped by the dispatcher, not treated as parse failures.
var ErrUnknownEvent = errors.New("protocol: unknown event tag")

// ParseError indicates a frame that is not a well-formed envelope or whose
// payload does not match its tag's schema. The frame is discarded; the
// connection is unaffected.
type ParseError struct {
	Event string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Event == "" {
		return fmt.Sprintf("protocol: malformed envelope: %v", e.Err)
	}
	return fmt.Sprintf("protocol: bad %q payload: %v", e.Event, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Message is the wire and domain representation of a chat message. Identity
// is ID; everything except Read is immutable once created.
type Message struct {
	ID        int64     `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Body      string    `json:"message"`
	Read      bool      `json:"read"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSend is the client->server chat payload. ID, read state and timestamp
// are assigned by the server.
type ChatSend struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"message"`
}

// ReadPayload marks every message from From to To as read.
type ReadPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TypingPayload signals composing activity. The server strips To before
// relaying, so inbound frames may carry only From.
type TypingPayload struct {
	From string `json:"from"`
	To   string `json:"to,omitempty"`
}

// HistoryRequest asks the server for the transcript of a conversation pair.
type HistoryRequest struct {
	User1 string `json:"user1"`
	User2 string `json:"user2"`
}

// PresencePayload announces a user going online or offline.
type PresencePayload struct {
	UserID string `json:"userId"`
}

// envelope is the raw wire frame.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope builds the outgoing wire bytes for a command.
func NewEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %q payload: %w", event, err)
	}
	return json.Marshal(envelope{Event: event, Data: data})
}

// Parse decodes an inbound frame into its tag and a concrete payload value.
// It returns ErrUnknownEvent for tags this client does not handle and a
// *ParseError for malformed envelopes or payloads.
func Parse(data []byte) (string, any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, &ParseError{Err: err}
	}
	if env.Event == "" {
		return "", nil, &ParseError{Err: errors.New("missing or empty \"event\" field")}
	}
	if len(env.Data) == 0 {
		return env.Event, nil, &ParseError{Event: env.Event, Err: errors.New("missing \"data\" field")}
	}

	switch env.Event {
	case EventChat:
		var m Message
		if err := json.Unmarshal(env.Data, &m); err != nil {
			return env.Event, nil, &ParseError{Event: env.Event, Err: err}
		}
		if m.From == "" || m.To == "" {
			return env.Event, nil, &ParseError{Event: env.Event, Err: errors.New("chat requires from and to")}
		}
		return env.Event, m, nil

	case EventRead:
		var p ReadPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return env.Event, nil, &ParseError{Event: env.Event, Err: err}
		}
		if p.From == "" {
			return env.Event, nil, &ParseError{Event: env.Event, Err: errors.New("read requires from")}
		}
		return env.Event, p, nil

	case EventTyping:
		var p TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return env.Event, nil, &ParseError{Event: env.Event, Err: err}
		}
		if p.From == "" {
			return env.Event, nil, &ParseError{Event: env.Event, Err: errors.New("typing requires from")}
		}
		return env.Event, p, nil

	case EventGetChats, EventGetNotif:
		// The server answers with the full ordered list; null means empty.
		var msgs []Message
		if !bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
			if err := json.Unmarshal(env.Data, &msgs); err != nil {
				return env.Event, nil, &ParseError{Event: env.Event, Err: err}
			}
		}
		if msgs == nil {
			msgs = []Message{}
		}
		return env.Event, msgs, nil

	case EventOnline, EventOffline:
		var p PresencePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return env.Event, nil, &ParseError{Event: env.Event, Err: err}
		}
		if p.UserID == "" {
			return env.Event, nil, &ParseError{Event: env.Event, Err: errors.New("presence requires userId")}
		}
		return env.Event, p, nil

	default:
		return env.Event, nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}
