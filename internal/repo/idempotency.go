package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyKeyPrefix = "bmai:idem:"

// DefaultIdempotencyTTL is how long a stored response can be replayed.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore keeps the responses of idempotent writes in Redis, scoped
// to the principal that issued them.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates a new IdempotencyStore
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// CachedResponse represents a cached response from an idempotent request
type CachedResponse struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Status  int               `json:"status"`
	Body    []byte            `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// HashKey generates SHA256 hash of idempotency key
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func idempotencyRedisKey(principalID, keyHash string) string {
	return idempotencyKeyPrefix + principalID + ":" + keyHash
}

// CheckKey returns the cached response for keyHash, or nil when none is stored.
func (s *IdempotencyStore) CheckKey(ctx context.Context, principalID, keyHash string) (*CachedResponse, error) {
	raw, err := s.client.Get(ctx, idempotencyRedisKey(principalID, keyHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}

	var cached CachedResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("failed to decode idempotency entry: %w", err)
	}
	return &cached, nil
}

// StoreResult stores the response of an idempotent request. The first stored
// result for a key wins.
func (s *IdempotencyStore) StoreResult(ctx context.Context, principalID, keyHash string, resp *CachedResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode idempotency entry: %w", err)
	}

	if err := s.client.SetNX(ctx, idempotencyRedisKey(principalID, keyHash), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store idempotency result: %w", err)
	}
	return nil
}
