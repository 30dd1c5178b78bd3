package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/models"
)

func TestRegistry_Join(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Seed history the joiner should receive.
	if _, err := f.store.SaveMessage(ctx, "earlier", "bob", "general", time.Now()); err != nil {
		t.Fatal(err)
	}

	f.registry.Join(ctx, "conn-1", "alice")

	if connID, ok := f.registry.Resolve("alice"); !ok || connID != "conn-1" {
		t.Errorf("Resolve(alice) = %q, %v; want conn-1, true", connID, ok)
	}

	users := f.hub.broadcastsOf(EventUsers)
	if len(users) != 1 {
		t.Fatalf("got %d users broadcasts, want 1", len(users))
	}
	got := users[0].Data.(UsersPayload).Users
	if len(got) != 1 || got[0] != "alice" {
		t.Errorf("online set = %v, want [alice]", got)
	}

	// History is delivered asynchronously, only to the joiner.
	waitFor(t, func() bool { return len(f.hub.sentTo("conn-1", EventMessageHistory)) == 1 })
	history := f.hub.sentTo("conn-1", EventMessageHistory)[0].Data.([]models.ChatMessage)
	if len(history) != 1 || history[0].Text != "earlier" {
		t.Errorf("history = %v, want the seeded message", history)
	}

	// The join announcement entered the pipeline.
	if f.transport.Pending() != 1 {
		t.Errorf("join announcement not queued, pending = %d", f.transport.Pending())
	}
}

func TestRegistry_JoinEmptyUsername(t *testing.T) {
	f := newFixture(t)

	f.registry.Join(context.Background(), "conn-1", "   ")

	if len(f.hub.broadcastsOf(EventUsers)) != 0 {
		t.Error("empty-username join produced a broadcast")
	}
	if _, ok := f.registry.UsernameOf("conn-1"); ok {
		t.Error("empty-username join registered a mapping")
	}
}

func TestRegistry_HistoryOldestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, text := range []string{"one", "two", "three"} {
		if _, err := f.store.SaveMessage(ctx, text, "bob", "general", time.Now()); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond) // distinct timestamps
	}

	f.registry.Join(ctx, "conn-1", "alice")

	waitFor(t, func() bool { return len(f.hub.sentTo("conn-1", EventMessageHistory)) == 1 })
	history := f.hub.sentTo("conn-1", EventMessageHistory)[0].Data.([]models.ChatMessage)
	if len(history) != 3 {
		t.Fatalf("history has %d messages, want 3", len(history))
	}
	if history[0].Text != "one" || history[2].Text != "three" {
		t.Errorf("history order = [%s %s %s], want oldest first", history[0].Text, history[1].Text, history[2].Text)
	}
}

func TestRegistry_DisconnectIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.registry.Join(ctx, "conn-1", "alice")
	joinBroadcasts := len(f.hub.broadcastsOf(EventUsers))
	joinQueued := f.transport.Pending()

	f.registry.Disconnect(ctx, "conn-1")
	f.registry.Disconnect(ctx, "conn-1")

	// Teardown side effects happened exactly once.
	if got := len(f.hub.broadcastsOf(EventUsers)) - joinBroadcasts; got != 1 {
		t.Errorf("got %d users broadcasts from disconnect, want 1", got)
	}
	if got := f.transport.Pending() - joinQueued; got != 1 {
		t.Errorf("got %d queued leave announcements, want 1", got)
	}
	if _, ok := f.registry.Resolve("alice"); ok {
		t.Error("alice still resolvable after disconnect")
	}
}

func TestRegistry_DisconnectNeverJoined(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.registry.Disconnect(ctx, "conn-ghost")

	if len(f.hub.broadcastsOf(EventUsers)) != 0 {
		t.Error("disconnect of unjoined connection produced a broadcast")
	}
	if f.transport.Pending() != 0 {
		t.Error("disconnect of unjoined connection queued an announcement")
	}
}

func TestRegistry_RejoinReplacesMapping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.registry.Join(ctx, "conn-1", "alice")
	f.registry.Join(ctx, "conn-2", "alice")

	if connID, _ := f.registry.Resolve("alice"); connID != "conn-2" {
		t.Errorf("Resolve(alice) = %q, want conn-2", connID)
	}

	// The stale connection's disconnect must not knock the newer
	// mapping offline.
	f.registry.Disconnect(ctx, "conn-1")
	if connID, ok := f.registry.Resolve("alice"); !ok || connID != "conn-2" {
		t.Errorf("Resolve(alice) after stale disconnect = %q, %v; want conn-2, true", connID, ok)
	}
}

func TestRegistry_OnlineSorted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.registry.Join(ctx, "conn-2", "zoe")
	f.registry.Join(ctx, "conn-1", "alice")

	got := f.registry.Online()
	if len(got) != 2 || got[0] != "alice" || got[1] != "zoe" {
		t.Errorf("Online() = %v, want [alice zoe]", got)
	}
}
