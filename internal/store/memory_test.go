package store

import (
	"context"
	"testing"
	"time"
)

func seed(t *testing.T, s *MemoryStore, texts ...string) {
	t.Helper()
	for _, text := range texts {
		if _, err := s.SaveMessage(context.Background(), text, "alice", "general", time.Now()); err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMemoryStore_SaveAssignsID(t *testing.T) {
	s := NewMemoryStore()

	msg, err := s.SaveMessage(context.Background(), "hi", "alice", "general", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID == "" {
		t.Error("SaveMessage() assigned no id")
	}
	if msg.Timestamp == 0 {
		t.Error("SaveMessage() assigned no timestamp")
	}
}

func TestMemoryStore_RecentOldestFirst(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "one", "two", "three", "four")

	msgs, err := s.RecentMessages(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Text != "two" || msgs[2].Text != "four" {
		t.Errorf("recent window = [%s %s %s], want [two three four]", msgs[0].Text, msgs[1].Text, msgs[2].Text)
	}
}

func TestMemoryStore_ListNewestFirstWithPagination(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "one", "two", "three")

	msgs, total, err := s.ListMessages(context.Background(), 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(msgs) != 2 || msgs[0].Text != "three" || msgs[1].Text != "two" {
		t.Errorf("first page = %v, want [three two]", msgs)
	}

	msgs, _, err = s.ListMessages(context.Background(), 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Text != "one" {
		t.Errorf("second page = %v, want [one]", msgs)
	}
}

func TestMemoryStore_DeleteMessage(t *testing.T) {
	s := NewMemoryStore()
	msg, _ := s.SaveMessage(context.Background(), "hi", "alice", "general", time.Now())

	deleted, err := s.DeleteMessage(context.Background(), msg.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteMessage() = %v, %v; want true, nil", deleted, err)
	}

	deleted, err = s.DeleteMessage(context.Background(), msg.ID)
	if err != nil || deleted {
		t.Fatalf("second DeleteMessage() = %v, %v; want false, nil", deleted, err)
	}
}

func TestMemoryStore_DeleteAllReturnsCount(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "one", "two")

	n, err := s.DeleteAllMessages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("DeleteAllMessages() = %d, want 2", n)
	}
	if count, _ := s.CountMessages(context.Background()); count != 0 {
		t.Errorf("CountMessages() after clear = %d, want 0", count)
	}
}

func TestMemoryStore_Presence(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.UpsertPresence(ctx, "alice", true, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertPresence(ctx, "alice", false, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertPresence(ctx, "bob", true, time.Now()); err != nil {
		t.Fatal(err)
	}

	// Upserts are keyed by username.
	if n, _ := s.CountUsers(ctx); n != 2 {
		t.Errorf("CountUsers() = %d, want 2", n)
	}
}

func TestMemoryStore_LastMessageAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ts, err := s.LastMessageAt(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ts != nil {
		t.Errorf("LastMessageAt() on empty store = %v, want nil", ts)
	}

	seed(t, s, "hi")
	ts, err = s.LastMessageAt(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ts == nil {
		t.Fatal("LastMessageAt() = nil after a save")
	}
}
