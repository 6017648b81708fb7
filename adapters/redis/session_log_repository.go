// Package redis stores session logs in a Redis list.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/domain/repositories"
)

// SessionLogRepository appends each entry with RPUSH, which is atomic, so
// concurrent writers from any number of processes never lose entries.
type SessionLogRepository struct {
	client *redis.Client
	key    string
}

var _ repositories.SessionLogRepository = (*SessionLogRepository)(nil)

// NewSessionLogRepository creates a Redis-backed repository on the list key
func NewSessionLogRepository(client *redis.Client, key string) *SessionLogRepository {
	return &SessionLogRepository{
		client: client,
		key:    key,
	}
}

// Append implements repositories.SessionLogRepository
func (r *SessionLogRepository) Append(ctx context.Context, entry *entities.SessionLogEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal session log: %w", err)
	}

	if err := r.client.RPush(ctx, r.key, data).Err(); err != nil {
		return fmt.Errorf("redis rpush failed: %w", err)
	}
	return nil
}

// List implements repositories.SessionLogRepository
func (r *SessionLogRepository) List(ctx context.Context) ([]entities.SessionLogEntry, error) {
	values, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange failed: %w", err)
	}

	entries := make([]entities.SessionLogEntry, 0, len(values))
	for i, v := range values {
		var entry entities.SessionLogEntry
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session log %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
