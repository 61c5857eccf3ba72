package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SelectionStore persists the selected building id of a principal so a new
// session restores it.
type SelectionStore interface {
	Load(ctx context.Context, principalID string) (string, bool, error)
	Save(ctx context.Context, principalID, buildingID string) error
	Clear(ctx context.Context, principalID string) error
}

// RedisSelectionStore keeps one string key per principal with a TTL.
type RedisSelectionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSelectionStore creates a store. ttl <= 0 keeps keys forever.
func NewRedisSelectionStore(client *redis.Client, ttl time.Duration) *RedisSelectionStore {
	return &RedisSelectionStore{client: client, ttl: ttl}
}

func selectionKey(principalID string) string {
	return fmt.Sprintf("selection:%s", principalID)
}

func (s *RedisSelectionStore) Load(ctx context.Context, principalID string) (string, bool, error) {
	id, err := s.client.Get(ctx, selectionKey(principalID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get selection: %w", err)
	}
	return id, true, nil
}

func (s *RedisSelectionStore) Save(ctx context.Context, principalID, buildingID string) error {
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, selectionKey(principalID), buildingID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set selection: %w", err)
	}
	return nil
}

func (s *RedisSelectionStore) Clear(ctx context.Context, principalID string) error {
	if err := s.client.Del(ctx, selectionKey(principalID)).Err(); err != nil {
		return fmt.Errorf("redis del selection: %w", err)
	}
	return nil
}
