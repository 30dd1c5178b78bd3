package store

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/models"
)

// MemoryStore is an in-memory MessageStore. It backs broker-less
// development runs and the test suite.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []models.ChatMessage
	presence map[string]models.PresenceEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		presence: make(map[string]models.PresenceEntry),
	}
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// SaveMessage appends a message and returns it with its assigned id.
func (s *MemoryStore) SaveMessage(ctx context.Context, text, author, room string, ts time.Time) (*models.ChatMessage, error) {
	msg := models.ChatMessage{
		ID:        ulid.Make().String(),
		Text:      text,
		Author:    author,
		Room:      room,
		Timestamp: ts.UnixMilli(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	return &msg, nil
}

// RecentMessages returns the most recent messages, oldest first.
func (s *MemoryStore) RecentMessages(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.messages) - limit
	if start < 0 {
		start = 0
	}
	out := make([]models.ChatMessage, len(s.messages)-start)
	copy(out, s.messages[start:])
	return out, nil
}

// ListMessages returns messages newest-first with offset pagination and
// the total count.
func (s *MemoryStore) ListMessages(ctx context.Context, limit, offset int) ([]models.ChatMessage, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.messages)
	var out []models.ChatMessage
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.messages[i])
	}
	return out, total, nil
}

// DeleteMessage removes a single message, reporting whether it existed.
func (s *MemoryStore) DeleteMessage(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// DeleteAllMessages removes every message and returns the deleted count.
func (s *MemoryStore) DeleteAllMessages(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.messages))
	s.messages = nil
	return n, nil
}

// CountMessages returns the total number of stored messages.
func (s *MemoryStore) CountMessages(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.messages)), nil
}

// LastMessageAt returns the timestamp of the newest message, or nil when
// the store is empty.
func (s *MemoryStore) LastMessageAt(ctx context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.messages) == 0 {
		return nil, nil
	}
	t := time.UnixMilli(s.messages[len(s.messages)-1].Timestamp)
	return &t, nil
}

// UpsertPresence records a username's online state.
func (s *MemoryStore) UpsertPresence(ctx context.Context, username string, online bool, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.presence[username] = models.PresenceEntry{
		Username: username,
		Online:   online,
		LastSeen: ts,
	}
	return nil
}

// CountUsers returns the number of usernames ever seen.
func (s *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.presence)), nil
}
