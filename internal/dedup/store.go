// Package dedup implements the Redis-backed idempotency ledger keyed by
// tenant and external message id.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultTTL is how long a delivered message id is remembered.
const DefaultTTL = 24 * time.Hour

const sentinel = "1"

// Client is the subset of the go-redis client used by the store.
type Client interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Store records successfully delivered messages. Reads fail open: when Redis
// is unavailable a message is treated as new.
type Store struct {
	client Client
	ttl    time.Duration
	logger zerolog.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		if !reflect.ValueOf(logger).IsZero() {
			s.logger = logger
		}
	}
}

// NewStore constructs a Store over a Redis client.
func NewStore(client Client, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, errors.New("dedup: redis client is required")
	}
	s := &Store{client: client, ttl: DefaultTTL, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "dedup").Logger()
	return s, nil
}

// Key returns the ledger key for a tenant and external message id.
func Key(tenantID, externalID string) string {
	return fmt.Sprintf("dedupe:%s:%s", tenantID, externalID)
}

// Seen reports whether the message was already delivered. Redis errors are
// logged and reported as not seen.
func (s *Store) Seen(ctx context.Context, tenantID, externalID string) bool {
	key := Key(tenantID, externalID)
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("dedup: lookup failed, treating message as new")
		return false
	}
	return n > 0
}

// Mark records a delivered message. It reports false when the key already
// existed, which happens when a concurrent consumer delivered the same message.
func (s *Store) Mark(ctx context.Context, tenantID, externalID string) (bool, error) {
	key := Key(tenantID, externalID)
	created, err := s.client.SetNX(ctx, key, sentinel, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup: mark %s: %w", key, err)
	}
	return created, nil
}
