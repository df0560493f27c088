package state

import (
	"slices"
	"testing"
)

func TestPresenceAddRemove(t *testing.T) {
	p := NewPresence()

	if !p.Add("alice") {
		t.Error("first Add should report true")
	}
	if p.Add("alice") {
		t.Error("duplicate Add should report false")
	}
	if !p.Online("alice") {
		t.Error("alice should be online")
	}

	if !p.Remove("alice") {
		t.Error("Remove of present user should report true")
	}
	if p.Remove("alice") {
		t.Error("Remove of absent user should report false")
	}
	if p.Online("alice") {
		t.Error("alice should be offline")
	}
}

func TestPresenceIdempotenceLeavesSetUnchanged(t *testing.T) {
	p := NewPresence()
	p.Add("alice")
	p.Add("bob")

	before := p.List()
	p.Add("alice")
	p.Remove("ghost")
	after := p.List()

	if !slices.Equal(before, after) {
		t.Errorf("set changed: %v -> %v", before, after)
	}
}

func TestPresenceInsertionOrder(t *testing.T) {
	p := NewPresence()
	p.Add("carol")
	p.Add("alice")
	p.Add("bob")
	p.Remove("alice")
	p.Add("dave")

	want := []string{"carol", "bob", "dave"}
	if got := p.List(); !slices.Equal(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}
