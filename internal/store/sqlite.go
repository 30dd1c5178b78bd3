package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/models"
)

// SQLiteStore handles SQLite database operations for single-node setups.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chat.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		author TEXT NOT NULL,
		room TEXT NOT NULL DEFAULT 'general',
		ts INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts);

	CREATE TABLE IF NOT EXISTS presence (
		username TEXT PRIMARY KEY,
		online INTEGER NOT NULL DEFAULT 0,
		last_seen DATETIME NOT NULL
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveMessage inserts a message and returns it with its assigned id.
func (s *SQLiteStore) SaveMessage(ctx context.Context, text, author, room string, ts time.Time) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		ID:        ulid.Make().String(),
		Text:      text,
		Author:    author,
		Room:      room,
		Timestamp: ts.UnixMilli(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, body, author, room, ts)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, msg.Text, msg.Author, msg.Room, msg.Timestamp)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// RecentMessages returns the most recent messages, oldest first.
func (s *SQLiteStore) RecentMessages(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, body, author, room, ts FROM (
			SELECT id, body, author, room, ts
			FROM messages
			ORDER BY ts DESC, id DESC
			LIMIT ?
		)
		ORDER BY ts ASC, id ASC
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSQLMessages(rows)
}

// ListMessages returns messages newest-first with offset pagination and
// the total count.
func (s *SQLiteStore) ListMessages(ctx context.Context, limit, offset int) ([]models.ChatMessage, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, body, author, room, ts
		FROM messages
		ORDER BY ts DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	msgs, err := scanSQLMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// DeleteMessage removes a single message, reporting whether it existed.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAllMessages removes every message and returns the deleted count.
func (s *SQLiteStore) DeleteAllMessages(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountMessages returns the total number of stored messages.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// LastMessageAt returns the timestamp of the newest message, or nil when
// the store is empty.
func (s *SQLiteStore) LastMessageAt(ctx context.Context) (*time.Time, error) {
	var ts int64
	err := s.db.QueryRowContext(ctx, `SELECT ts FROM messages ORDER BY ts DESC LIMIT 1`).Scan(&ts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t := time.UnixMilli(ts)
	return &t, nil
}

// UpsertPresence records a username's online state.
func (s *SQLiteStore) UpsertPresence(ctx context.Context, username string, online bool, ts time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO presence (username, online, last_seen)
		VALUES (?, ?, ?)
		ON CONFLICT (username)
		DO UPDATE SET online = excluded.online, last_seen = excluded.last_seen
	`, username, online, ts)
	return err
}

// CountUsers returns the number of usernames ever seen.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM presence`).Scan(&count)
	return count, err
}

func scanSQLMessages(rows *sql.Rows) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.Text, &m.Author, &m.Room, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
