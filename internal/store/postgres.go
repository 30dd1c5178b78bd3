package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			body TEXT NOT NULL,
			author TEXT NOT NULL,
			room TEXT NOT NULL DEFAULT 'general',
			ts BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts);

		CREATE TABLE IF NOT EXISTS presence (
			username TEXT PRIMARY KEY,
			online BOOLEAN NOT NULL DEFAULT FALSE,
			last_seen TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveMessage inserts a message and returns it with its assigned id.
func (s *PostgresStore) SaveMessage(ctx context.Context, text, author, room string, ts time.Time) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		ID:        ulid.Make().String(),
		Text:      text,
		Author:    author,
		Room:      room,
		Timestamp: ts.UnixMilli(),
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, body, author, room, ts)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, msg.Text, msg.Author, msg.Room, msg.Timestamp)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// RecentMessages returns the most recent messages, oldest first.
func (s *PostgresStore) RecentMessages(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, body, author, room, ts FROM (
			SELECT id, body, author, room, ts
			FROM messages
			ORDER BY ts DESC, id DESC
			LIMIT $1
		) latest
		ORDER BY ts ASC, id ASC
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListMessages returns messages newest-first with offset pagination and
// the total count.
func (s *PostgresStore) ListMessages(ctx context.Context, limit, offset int) ([]models.ChatMessage, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, body, author, room, ts
		FROM messages
		ORDER BY ts DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// DeleteMessage removes a single message, reporting whether it existed.
func (s *PostgresStore) DeleteMessage(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteAllMessages removes every message and returns the deleted count.
func (s *PostgresStore) DeleteAllMessages(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountMessages returns the total number of stored messages.
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// LastMessageAt returns the timestamp of the newest message, or nil when
// the store is empty.
func (s *PostgresStore) LastMessageAt(ctx context.Context) (*time.Time, error) {
	var ts int64
	err := s.pool.QueryRow(ctx, `SELECT ts FROM messages ORDER BY ts DESC LIMIT 1`).Scan(&ts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t := time.UnixMilli(ts)
	return &t, nil
}

// UpsertPresence records a username's online state.
func (s *PostgresStore) UpsertPresence(ctx context.Context, username string, online bool, ts time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO presence (username, online, last_seen)
		VALUES ($1, $2, $3)
		ON CONFLICT (username)
		DO UPDATE SET online = EXCLUDED.online, last_seen = EXCLUDED.last_seen
	`, username, online, ts)
	return err
}

// CountUsers returns the number of usernames ever seen.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM presence`).Scan(&count)
	return count, err
}

func scanMessages(rows pgx.Rows) ([]models.ChatMessage, error) {
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
