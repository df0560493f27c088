package state

import (
	"testing"
	"time"

	"github.com/saifulwebid/ngobrol/internal/bus"
)

func TestTypingExpiry(t *testing.T) {
	tr := NewTyping(50*time.Millisecond, nil)
	defer tr.Stop()

	tr.Add("bob")
	if !tr.IsTyping("bob") {
		t.Fatal("bob should be typing immediately after Add")
	}

	time.Sleep(120 * time.Millisecond)
	if tr.IsTyping("bob") {
		t.Error("bob should have expired")
	}
}

func TestTypingGroupedExpiry(t *testing.T) {
	tr := NewTyping(80*time.Millisecond, nil)
	defer tr.Stop()

	tr.Add("bob")
	time.Sleep(50 * time.Millisecond)
	// Second add restarts the shared timer: bob outlives his own window.
	tr.Add("carol")

	time.Sleep(50 * time.Millisecond)
	if !tr.IsTyping("bob") || !tr.IsTyping("carol") {
		t.Fatal("both users should still be typing after the timer reset")
	}

	time.Sleep(80 * time.Millisecond)
	if tr.IsTyping("bob") || tr.IsTyping("carol") {
		t.Error("both users should expire together")
	}
	if tr.Active() != 0 {
		t.Errorf("active = %d, want 0", tr.Active())
	}
}

func TestTypingRemoveIsImmediate(t *testing.T) {
	tr := NewTyping(time.Minute, nil)
	defer tr.Stop()

	tr.Add("bob")
	tr.Add("carol")
	tr.Remove("bob")

	if tr.IsTyping("bob") {
		t.Error("bob should be removed immediately")
	}
	if !tr.IsTyping("carol") {
		t.Error("carol should be unaffected by bob's removal")
	}
}

func TestTypingStopClearsSet(t *testing.T) {
	tr := NewTyping(time.Minute, nil)
	tr.Add("bob")
	tr.Stop()

	if tr.IsTyping("bob") {
		t.Error("Stop should clear the set")
	}
}

func TestTypingExpiryPublishesEvent(t *testing.T) {
	b := bus.New()
	tr := NewTyping(30*time.Millisecond, b)
	defer tr.Stop()

	ch, unsub := b.Subscribe("typing.", 10)
	defer unsub()

	tr.Add("bob")

	// First the started event, then the expiry.
	select {
	case evt := <-ch:
		if evt.Kind != bus.KindTyping {
			t.Errorf("kind = %q, want %q", evt.Kind, bus.KindTyping)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for typing.started")
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindTypingGone {
			t.Errorf("kind = %q, want %q", evt.Kind, bus.KindTypingGone)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for typing.expired")
	}
}
