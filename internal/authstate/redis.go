package authstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const statePrefix = "authstate:"

// RedisStore implements the Store interface using Redis. Entry lifetime is
// enforced twice: by the key TTL and by the ExpiresAt field, so a clock skew
// between the service and Redis cannot revive a stale entry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed pending authorization store.
func NewRedisStore(client *redis.Client) Store {
	return &RedisStore{client: client}
}

// Save inserts a pending authorization, failing on state collision.
func (s *RedisStore) Save(ctx context.Context, pending *PendingAuthorization) error {
	if pending.State == "" {
		return errors.New("empty state")
	}

	ttl := time.Until(pending.ExpiresAt)
	if ttl <= 0 {
		return errors.New("pending authorization already expired")
	}

	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshaling pending authorization: %w", err)
	}

	ok, err := s.client.SetNX(ctx, statePrefix+pending.State, data, ttl).Result()
	if err != nil {
		return fmt.Errorf("storing pending authorization: %w", err)
	}
	if !ok {
		return ErrStateExists
	}

	return nil
}

// Consume atomically retrieves and deletes the entry for a state token.
func (s *RedisStore) Consume(ctx context.Context, state string) (*PendingAuthorization, error) {
	if state == "" {
		return nil, nil
	}

	data, err := s.client.GetDel(ctx, statePrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("consuming pending authorization: %w", err)
	}

	var pending PendingAuthorization
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("unmarshaling pending authorization: %w", err)
	}

	if pending.Expired(time.Now()) {
		return nil, nil
	}

	return &pending, nil
}

// Has reports whether a fresh entry exists without consuming it.
func (s *RedisStore) Has(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}

	data, err := s.client.Get(ctx, statePrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("checking pending authorization: %w", err)
	}

	var pending PendingAuthorization
	if err := json.Unmarshal(data, &pending); err != nil {
		return false, fmt.Errorf("unmarshaling pending authorization: %w", err)
	}

	return !pending.Expired(time.Now()), nil
}

// CheckHealth verifies Redis connectivity.
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
