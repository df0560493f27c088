package state

import (
	"sync"
	"time"

	"github.com/saifulwebid/ngobrol/internal/bus"
	"github.com/saifulwebid/ngobrol/internal/metrics"
)

// Typing tracks users currently signalling composing activity. A single
// shared timer covers the whole set: every Add restarts it, and when it
// fires the entire set is cleared at once. This grouped expiry mirrors the
// server-relayed indicator's behavior; it is not a per-user debounce.
type Typing struct {
	mu     sync.Mutex
	window time.Duration
	set    map[string]struct{}
	timer  *time.Timer
	bus    *bus.Bus
}

// NewTyping creates a typing tracker with the given expiry window.
func NewTyping(window time.Duration, b *bus.Bus) *Typing {
	return &Typing{
		window: window,
		set:    make(map[string]struct{}),
		bus:    b,
	}
}

// Add inserts a user into the typing set and restarts the shared expiry
// timer. Duplicate adds still restart the timer, so continuous typing keeps
// the indicator alive.
func (t *Typing) Add(user string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.set[user] = struct{}{}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.window, t.expire)
	if t.bus != nil {
		t.bus.Publish(bus.Event{Kind: bus.KindTyping, Timestamp: time.Now(), Payload: user})
	}
}

// Remove deletes a single user immediately, independent of the timer.
func (t *Typing) Remove(user string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.set, user)
}

// IsTyping reports whether the user is currently in the typing set.
func (t *Typing) IsTyping(user string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.set[user]
	return ok
}

// Active returns the number of users currently typing.
func (t *Typing) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.set)
}

// Stop cancels the shared timer and clears the set; called on session
// teardown.
func (t *Typing) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.set = make(map[string]struct{})
	metrics.TypingUsers.Set(0)
}

// expire clears every user in the set, not just the most recent one.
func (t *Typing) expire() {
	t.mu.Lock()
	cleared := len(t.set)
	t.set = make(map[string]struct{})
	t.timer = nil
	t.mu.Unlock()

	metrics.TypingUsers.Set(0)
	if cleared > 0 && t.bus != nil {
		t.bus.Publish(bus.Event{Kind: bus.KindTypingGone, Timestamp: time.Now(), Payload: cleared})
	}
}
