package store

import (
	"context"
	"time"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/models"
)

// MessageStore defines the interface for persistent storage of chat
// messages and presence. PostgresStore, SQLiteStore and MemoryStore all
// implement this interface.
type MessageStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Message operations
	SaveMessage(ctx context.Context, text, author, room string, ts time.Time) (*models.ChatMessage, error)
	RecentMessages(ctx context.Context, limit int) ([]models.ChatMessage, error)
	ListMessages(ctx context.Context, limit, offset int) ([]models.ChatMessage, int, error)
	DeleteMessage(ctx context.Context, id string) (bool, error)
	DeleteAllMessages(ctx context.Context) (int64, error)
	CountMessages(ctx context.Context) (int64, error)
	LastMessageAt(ctx context.Context) (*time.Time, error)

	// Presence operations
	UpsertPresence(ctx context.Context, username string, online bool, ts time.Time) error
	CountUsers(ctx context.Context) (int64, error)
}
