package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BBZ-BL-IT/lb2-projektarbeit-joshsethsimon-sub000/internal/models"
)

const (
	// recentCacheSize bounds the per-room recent-message cache.
	recentCacheSize = 200
	recentTTL       = 24 * time.Hour
)

// RedisStore caches recent messages per room and backs the HTTP rate
// limiter. It is a read-through cache in front of the MessageStore, never
// the source of truth.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for the rate limiter middleware.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// recentKey returns the key for a room's recent-message sorted set.
func recentKey(room string) string {
	return fmt.Sprintf("room:%s:recent", room)
}

// AddRecent appends a persisted message to the room's recent cache.
func (s *RedisStore) AddRecent(ctx context.Context, msg *models.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := recentKey(msg.Room)

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(msg.Timestamp),
		Member: string(data),
	})
	// Trim to the newest recentCacheSize entries
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-recentCacheSize-1))
	pipe.Expire(ctx, key, recentTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to limit cached messages for a room, oldest first.
func (s *RedisStore) Recent(ctx context.Context, room string, limit int) ([]models.ChatMessage, error) {
	raw, err := s.client.ZRange(ctx, recentKey(room), int64(-limit), -1).Result()
	if err != nil {
		return nil, err
	}

	msgs := make([]models.ChatMessage, 0, len(raw))
	for _, entry := range raw {
		var m models.ChatMessage
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			continue // skip corrupt entries
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// RemoveRecent drops a single message from the room's recent cache.
func (s *RedisStore) RemoveRecent(ctx context.Context, room, id string) error {
	raw, err := s.client.ZRange(ctx, recentKey(room), 0, -1).Result()
	if err != nil {
		return err
	}
	for _, entry := range raw {
		var m models.ChatMessage
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			continue
		}
		if m.ID == id {
			return s.client.ZRem(ctx, recentKey(room), entry).Err()
		}
	}
	return nil
}

// ClearRecent drops the whole recent cache for a room.
func (s *RedisStore) ClearRecent(ctx context.Context, room string) error {
	return s.client.Del(ctx, recentKey(room)).Err()
}
