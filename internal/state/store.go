// Package state holds the client's canonical view of the chat session: the
// conversation store, the presence set and the typing tracker. Each type is
// an explicit state-owning object with query and mutation operations; one
// instance of each exists per session and is threaded through the
// dispatcher and controller.
package state

import (
	"sync"

	"github.com/saifulwebid/ngobrol/internal/protocol"
)

// Store is the canonical collection of message and notification records.
// Messages are kept in arrival order, which is chronological since the
// server and the optimistic send path both append. Notifications are the
// subset of traffic addressed to the session owner, kept separately so the
// unread badge and the transcript can diverge transiently.
type Store struct {
	mu       sync.RWMutex
	owner    string
	messages []protocol.Message
	msgIDs   map[int64]struct{}
	notifs   []protocol.Message
	notifIDs map[int64]struct{}
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{
		msgIDs:   make(map[int64]struct{}),
		notifIDs: make(map[int64]struct{}),
	}
}

// SetOwner records the logged-in user. MarkRead scopes message updates to
// traffic addressed to the owner.
func (s *Store) SetOwner(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = user
}

// Owner returns the logged-in user id, or empty before login.
func (s *Store) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// AddMessage appends a message unless one with the same id already exists.
// Returns true if the message was inserted. Idempotent under redelivery.
func (s *Store) AddMessage(m protocol.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.msgIDs[m.ID]; dup {
		return false
	}
	s.msgIDs[m.ID] = struct{}{}
	s.messages = append(s.messages, m)
	return true
}

// AddNotification appends a notification with the same dedup rule as
// AddMessage. Returns true if inserted.
func (s *Store) AddNotification(n protocol.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.notifIDs[n.ID]; dup {
		return false
	}
	s.notifIDs[n.ID] = struct{}{}
	s.notifs = append(s.notifs, n)
	return true
}

// ReplaceMessages swaps the transcript wholesale, used to hydrate history
// on conversation selection or login.
func (s *Store) ReplaceMessages(msgs []protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make([]protocol.Message, len(msgs))
	copy(s.messages, msgs)
	s.msgIDs = make(map[int64]struct{}, len(msgs))
	for _, m := range msgs {
		s.msgIDs[m.ID] = struct{}{}
	}
}

// ReplaceNotifications swaps the notification list wholesale.
func (s *Store) ReplaceNotifications(notifs []protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifs = make([]protocol.Message, len(notifs))
	copy(s.notifs, notifs)
	s.notifIDs = make(map[int64]struct{}, len(notifs))
	for _, n := range notifs {
		s.notifIDs[n.ID] = struct{}{}
	}
}

// MarkRead flips the read flag on every message from the given user to the
// owner, and on every notification from that user. Messages from other
// senders are untouched. Returns the number of notifications newly read.
func (s *Store) MarkRead(from string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].From == from && s.messages[i].To == s.owner {
			s.messages[i].Read = true
		}
	}
	newlyRead := 0
	for i := range s.notifs {
		if s.notifs[i].From == from && !s.notifs[i].Read {
			s.notifs[i].Read = true
			newlyRead++
		}
	}
	return newlyRead
}

// UnreadCount is derived: the number of notifications not yet read. It is
// never stored or mutated independently.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notifs {
		if !n.Read {
			count++
		}
	}
	return count
}

// UnreadFrom returns the unread notification count for a single sender,
// used for per-conversation badges.
func (s *Store) UnreadFrom(from string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notifs {
		if n.From == from && !n.Read {
			count++
		}
	}
	return count
}

// Conversation returns the messages whose unordered {from, to} pair equals
// {a, b}, in insertion order.
func (s *Store) Conversation(a, b string) []protocol.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []protocol.Message
	for _, m := range s.messages {
		if (m.From == a && m.To == b) || (m.From == b && m.To == a) {
			out = append(out, m)
		}
	}
	return out
}

// Messages returns a snapshot of the full transcript.
func (s *Store) Messages() []protocol.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Notifications returns a snapshot of the notification list.
func (s *Store) Notifications() []protocol.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.Message, len(s.notifs))
	copy(out, s.notifs)
	return out
}

// Clear empties messages and notifications. Only ever called on explicit
// user action; disconnecting keeps history.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.notifs = nil
	s.msgIDs = make(map[int64]struct{})
	s.notifIDs = make(map[int64]struct{})
}
