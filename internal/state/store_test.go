package state

import (
	"testing"
	"time"

	"github.com/saifulwebid/ngobrol/internal/protocol"
)

func msg(id int64, from, to, body string) protocol.Message {
	return protocol.Message{ID: id, From: from, To: to, Body: body, Timestamp: time.Now()}
}

func TestAddMessageIdempotent(t *testing.T) {
	s := NewStore()

	if !s.AddMessage(msg(1, "alice", "bob", "hi")) {
		t.Fatal("first insert should report true")
	}
	if s.AddMessage(msg(1, "alice", "bob", "hi")) {
		t.Error("duplicate id insert should report false")
	}
	if got := len(s.Messages()); got != 1 {
		t.Errorf("got %d messages, want 1", got)
	}
}

func TestDuplicateIDKeepsFirstRecord(t *testing.T) {
	s := NewStore()
	s.AddMessage(msg(5, "alice", "bob", "original"))
	s.AddMessage(msg(5, "eve", "bob", "impostor"))

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Body != "original" {
		t.Errorf("messages = %+v, want single original record", msgs)
	}
}

func TestUnreadCountIsDerived(t *testing.T) {
	s := NewStore()
	s.SetOwner("alice")

	s.AddNotification(msg(1, "bob", "alice", "one"))
	s.AddNotification(msg(2, "bob", "alice", "two"))
	s.AddNotification(msg(3, "carol", "alice", "three"))
	if got := s.UnreadCount(); got != 3 {
		t.Fatalf("unread = %d, want 3", got)
	}

	s.MarkRead("bob")
	if got := s.UnreadCount(); got != 1 {
		t.Errorf("unread after MarkRead(bob) = %d, want 1", got)
	}

	// Replacing recomputes from the replacement list.
	read := msg(4, "dave", "alice", "seen")
	read.Read = true
	s.ReplaceNotifications([]protocol.Message{read, msg(5, "dave", "alice", "unseen")})
	if got := s.UnreadCount(); got != 1 {
		t.Errorf("unread after replace = %d, want 1", got)
	}

	// Invariant: count always equals the number of read=false records.
	unread := 0
	for _, n := range s.Notifications() {
		if !n.Read {
			unread++
		}
	}
	if got := s.UnreadCount(); got != unread {
		t.Errorf("UnreadCount() = %d, recount = %d", got, unread)
	}
}

func TestMarkReadScopesToSenderAndOwner(t *testing.T) {
	s := NewStore()
	s.SetOwner("alice")

	s.AddMessage(msg(1, "bob", "alice", "to owner"))
	s.AddMessage(msg(2, "bob", "carol", "to third party"))
	s.AddMessage(msg(3, "carol", "alice", "other sender"))
	s.AddNotification(msg(1, "bob", "alice", "to owner"))
	s.AddNotification(msg(3, "carol", "alice", "other sender"))

	newly := s.MarkRead("bob")
	if newly != 1 {
		t.Errorf("newly read = %d, want 1", newly)
	}

	msgs := s.Messages()
	if !msgs[0].Read {
		t.Error("bob->alice message should be read")
	}
	if msgs[1].Read {
		t.Error("bob->carol message must not be touched")
	}
	if msgs[2].Read {
		t.Error("carol->alice message must not be touched")
	}

	// Second MarkRead finds nothing new.
	if newly := s.MarkRead("bob"); newly != 0 {
		t.Errorf("second MarkRead newly read = %d, want 0", newly)
	}
}

func TestConversationFilter(t *testing.T) {
	s := NewStore()
	s.AddMessage(msg(1, "alice", "bob", "a->b"))
	s.AddMessage(msg(2, "bob", "alice", "b->a"))
	s.AddMessage(msg(3, "alice", "carol", "a->c"))
	s.AddMessage(msg(4, "carol", "bob", "c->b"))

	conv := s.Conversation("alice", "bob")
	if len(conv) != 2 {
		t.Fatalf("got %d messages, want 2", len(conv))
	}
	if conv[0].ID != 1 || conv[1].ID != 2 {
		t.Errorf("conversation order = %v, %v, want 1, 2", conv[0].ID, conv[1].ID)
	}

	// Pair order does not matter.
	rev := s.Conversation("bob", "alice")
	if len(rev) != 2 || rev[0].ID != 1 {
		t.Errorf("reversed pair lookup = %+v", rev)
	}
}

func TestReplaceMessagesResetsDedup(t *testing.T) {
	s := NewStore()
	s.AddMessage(msg(1, "a", "b", "old"))

	s.ReplaceMessages([]protocol.Message{msg(10, "a", "b", "fresh")})
	if got := len(s.Messages()); got != 1 {
		t.Fatalf("got %d messages, want 1", got)
	}

	// Old id is insertable again, replaced id is not.
	if !s.AddMessage(msg(1, "a", "b", "old again")) {
		t.Error("id 1 should be insertable after replace")
	}
	if s.AddMessage(msg(10, "a", "b", "dup")) {
		t.Error("id 10 should be deduped after replace")
	}
}

func TestUnreadFrom(t *testing.T) {
	s := NewStore()
	s.SetOwner("alice")
	s.AddNotification(msg(1, "bob", "alice", "x"))
	s.AddNotification(msg(2, "bob", "alice", "y"))
	s.AddNotification(msg(3, "carol", "alice", "z"))

	if got := s.UnreadFrom("bob"); got != 2 {
		t.Errorf("UnreadFrom(bob) = %d, want 2", got)
	}
	s.MarkRead("bob")
	if got := s.UnreadFrom("bob"); got != 0 {
		t.Errorf("UnreadFrom(bob) after read = %d, want 0", got)
	}
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.AddMessage(msg(1, "a", "b", "x"))
	s.AddNotification(msg(1, "a", "b", "x"))

	s.Clear()

	if len(s.Messages()) != 0 || len(s.Notifications()) != 0 {
		t.Error("store should be empty after Clear")
	}
	if s.UnreadCount() != 0 {
		t.Error("unread should be 0 after Clear")
	}
	if !s.AddMessage(msg(1, "a", "b", "x")) {
		t.Error("ids should be reusable after Clear")
	}
}
