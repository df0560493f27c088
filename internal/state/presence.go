package state

import "sync"

// Presence is the set of user ids currently connected to the server, as
// seen by this client. Adds and removes are idempotent; order is insertion
// order and carries no meaning beyond stable display.
type Presence struct {
	mu    sync.RWMutex
	order []string
	set   map[string]struct{}
}

// NewPresence creates an empty presence set.
func NewPresence() *Presence {
	return &Presence{set: make(map[string]struct{})}
}

// Add inserts a user. Returns true if the user was not already present.
func (p *Presence) Add(user string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.set[user]; ok {
		return false
	}
	p.set[user] = struct{}{}
	p.order = append(p.order, user)
	return true
}

// Remove deletes a user. Removing an absent user is a no-op; returns true
// if the user was present.
func (p *Presence) Remove(user string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.set[user]; !ok {
		return false
	}
	delete(p.set, user)
	for i, u := range p.order {
		if u == user {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

// Online reports whether the user is currently in the set.
func (p *Presence) Online(user string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.set[user]
	return ok
}

// List returns a snapshot of online users in insertion order.
func (p *Presence) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}
