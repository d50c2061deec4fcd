package revocation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	generationKeyPrefix = "auth:gen:"
	cutoffKeyPrefix     = "auth:revoked:"
)

// DefaultCutoffTTL outlives the longest provider ID token lifetime
const DefaultCutoffTTL = 24 * time.Hour

// RedisStore keeps revocation state in Redis so every API instance sees it
type RedisStore struct {
	client    *redis.Client
	cutoffTTL time.Duration
}

// NewRedisClient creates a Redis client and verifies connectivity
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("revocation: ping redis: %w", err)
	}

	return client, nil
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client *redis.Client, cutoffTTL time.Duration) *RedisStore {
	if cutoffTTL <= 0 {
		cutoffTTL = DefaultCutoffTTL
	}
	return &RedisStore{client: client, cutoffTTL: cutoffTTL}
}

// Current returns the subject's generation
func (s *RedisStore) Current(ctx context.Context, subject string) (int64, error) {
	v, err := s.client.Get(ctx, generationKeyPrefix+subject).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("revocation: get generation: %w", err)
	}
	return v, nil
}

// Advance increments the subject's generation
func (s *RedisStore) Advance(ctx context.Context, subject string) (int64, error) {
	v, err := s.client.Incr(ctx, generationKeyPrefix+subject).Result()
	if err != nil {
		return 0, fmt.Errorf("revocation: advance generation: %w", err)
	}
	return v, nil
}

// Revoke records a cutoff for the subject's external tokens
func (s *RedisStore) Revoke(ctx context.Context, subject string, at time.Time) error {
	err := s.client.Set(ctx, cutoffKeyPrefix+subject, strconv.FormatInt(at.Unix(), 10), s.cutoffTTL).Err()
	if err != nil {
		return fmt.Errorf("revocation: set cutoff: %w", err)
	}
	return nil
}

// RevokedAt returns the subject's cutoff
func (s *RedisStore) RevokedAt(ctx context.Context, subject string) (time.Time, bool, error) {
	v, err := s.client.Get(ctx, cutoffKeyPrefix+subject).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("revocation: get cutoff: %w", err)
	}
	return time.Unix(v, 0).UTC(), true, nil
}

// Ping checks Redis connectivity
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
