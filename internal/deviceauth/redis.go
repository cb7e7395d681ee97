package deviceauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const attemptPrefix = "deviceauth:"

// terminalGrace keeps an attempt readable after its own expiry so a caller
// that polled late still sees the terminal status instead of "not found".
const terminalGrace = 30 * time.Minute

// RedisStore implements the Store interface using Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed attempt store.
func NewRedisStore(client *redis.Client) Store {
	return &RedisStore{client: client}
}

// Save stores or replaces an attempt.
func (s *RedisStore) Save(ctx context.Context, attempt *Attempt) error {
	if attempt.ID == "" {
		return errors.New("empty attempt id")
	}

	ttl := time.Until(attempt.ExpiresAt) + terminalGrace
	if ttl <= 0 {
		return errors.New("attempt has already expired")
	}

	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshaling attempt: %w", err)
	}

	if err := s.client.Set(ctx, attemptPrefix+attempt.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("saving attempt: %w", err)
	}
	return nil
}

// Get retrieves an attempt by id.
func (s *RedisStore) Get(ctx context.Context, id string) (*Attempt, error) {
	data, err := s.client.Get(ctx, attemptPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting attempt: %w", err)
	}

	var attempt Attempt
	if err := json.Unmarshal(data, &attempt); err != nil {
		return nil, fmt.Errorf("unmarshaling attempt: %w", err)
	}
	return &attempt, nil
}

// CheckHealth verifies Redis connectivity.
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
