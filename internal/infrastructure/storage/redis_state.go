package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"CVEWatch/internal/domain"
	"CVEWatch/internal/ports"
)

const (
	fieldAdvisoryID = "advisory_id"
	fieldUpdatedAt  = "updated_at"
)

// RedisStateStore keeps the last-seen advisory in one Redis hash.
type RedisStateStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

var _ ports.StateStore = (*RedisStateStore)(nil)

// NewRedisStateStore wraps an existing go-redis client.
func NewRedisStateStore(client *redis.Client, key string) *RedisStateStore {
	return &RedisStateStore{client: client, key: key, now: time.Now}
}

// Get returns nil, nil when the hash is absent or carries no id.
func (s *RedisStateStore) Get(ctx context.Context) (*domain.LastSeenRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read last seen: %w", err)
	}

	id := fields[fieldAdvisoryID]
	if id == "" {
		return nil, nil
	}

	record := &domain.LastSeenRecord{ID: id}
	if ts, err := time.Parse(time.RFC3339Nano, fields[fieldUpdatedAt]); err == nil {
		record.UpdatedAt = ts
	}
	return record, nil
}

// Set overwrites both hash fields in one command.
func (s *RedisStateStore) Set(ctx context.Context, id string) error {
	err := s.client.HSet(ctx, s.key,
		fieldAdvisoryID, id,
		fieldUpdatedAt, s.now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("write last seen: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *RedisStateStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close releases the client.
func (s *RedisStateStore) Close() error {
	return s.client.Close()
}
