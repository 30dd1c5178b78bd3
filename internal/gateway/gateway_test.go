package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/models"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/queue"
	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/store"
)

// recorderHub captures fan-out without sockets.
type recorderHub struct {
	mu         sync.Mutex
	broadcasts []Event
	sent       map[string][]Event
}

func newRecorderHub() *recorderHub {
	return &recorderHub{sent: make(map[string][]Event)}
}

func (h *recorderHub) Broadcast(ev Event) {
	h.mu.Lock()
	h.broadcasts = append(h.broadcasts, ev)
	h.mu.Unlock()
}

func (h *recorderHub) BroadcastExcept(connID string, ev Event) {
	h.Broadcast(ev)
}

func (h *recorderHub) SendTo(connID string, ev Event) bool {
	h.mu.Lock()
	h.sent[connID] = append(h.sent[connID], ev)
	h.mu.Unlock()
	return true
}

func (h *recorderHub) broadcastsOf(event string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Event
	for _, ev := range h.broadcasts {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

func (h *recorderHub) sentTo(connID, event string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Event
	for _, ev := range h.sent[connID] {
		if ev.Event == event {
			out = append(out, ev)
		}
	}
	return out
}

// flakyStore fails SaveMessage a configured number of times before
// delegating to the in-memory store.
type flakyStore struct {
	*store.MemoryStore
	mu        sync.Mutex
	failures  int
	saveCalls int
}

func (s *flakyStore) SaveMessage(ctx context.Context, text, author, room string, ts time.Time) (*models.ChatMessage, error) {
	s.mu.Lock()
	s.saveCalls++
	fail := s.saveCalls <= s.failures
	s.mu.Unlock()

	if fail {
		return nil, errors.New("store unavailable")
	}
	return s.MemoryStore.SaveMessage(ctx, text, author, room, ts)
}

// fixture wires a core with recorder hub, memory store and memory
// transport.
type fixture struct {
	hub       *recorderHub
	store     *flakyStore
	transport *queue.MemoryTransport
	pipeline  *Pipeline
	registry  *Registry
	calls     *CallRelay
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hub := newRecorderHub()
	st := &flakyStore{MemoryStore: store.NewMemoryStore()}
	transport := queue.NewMemoryTransport()
	logger := zerolog.Nop()

	pipeline := NewPipeline(st, nil, transport, hub, "general", 3, logger)
	registry := NewRegistry(st, nil, hub, 50, logger)
	calls := NewCallRelay(hub, logger)
	registry.pipeline = pipeline
	registry.calls = calls
	calls.registry = registry

	return &fixture{
		hub:       hub,
		store:     st,
		transport: transport,
		pipeline:  pipeline,
		registry:  registry,
		calls:     calls,
	}
}

// startConsumer runs the pipeline worker until the test ends.
func (f *fixture) startConsumer(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = f.pipeline.Run(ctx)
	}()
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
