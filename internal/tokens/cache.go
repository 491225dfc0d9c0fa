// Package tokens caches per-tenant access tokens in Redis with expiry-aware
// refresh and explicit invalidation.
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	// SafetyBuffer is subtracted from a token's lifetime so it is refreshed
	// before the provider rejects it.
	SafetyBuffer = 300 * time.Second
	// MinLifetime is the shortest cache lifetime given to a fresh token.
	MinLifetime = 60 * time.Second
)

// Grant is a freshly issued token with its declared lifetime.
type Grant struct {
	AccessToken string
	Lifetime    time.Duration
}

// Fetcher obtains a fresh token for a tenant from its identity provider.
type Fetcher interface {
	Fetch(ctx context.Context, tenantID string) (Grant, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, tenantID string) (Grant, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, tenantID string) (Grant, error) {
	return f(ctx, tenantID)
}

// Client is the subset of the go-redis client used by the cache.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type entry struct {
	AccessToken string `json:"accessToken"`
	ExpiryEpoch int64  `json:"expiryEpoch"`
}

// Option customises a Cache.
type Option func(*Cache)

// WithPrefix sets the key prefix. Keys are "<prefix>:<tenant>".
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithClock overrides the clock used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the cache logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) {
		if !reflect.ValueOf(logger).IsZero() {
			c.logger = logger
		}
	}
}

// Cache resolves tenant tokens through Redis. Redis failures are logged and
// treated as cache misses.
type Cache struct {
	client  Client
	fetcher Fetcher
	prefix  string
	now     func() time.Time
	logger  zerolog.Logger
	group   singleflight.Group
}

// NewCache constructs a Cache.
func NewCache(client Client, fetcher Fetcher, opts ...Option) (*Cache, error) {
	if client == nil {
		return nil, errors.New("tokens: redis client is required")
	}
	if fetcher == nil {
		return nil, errors.New("tokens: fetcher is required")
	}
	c := &Cache{client: client, fetcher: fetcher, prefix: "token", now: time.Now, logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.logger = c.logger.With().Str("component", "tokens").Str("prefix", c.prefix).Logger()
	return c, nil
}

// Key returns the cache key for a tenant.
func (c *Cache) Key(tenantID string) string {
	return c.prefix + ":" + tenantID
}

// Token returns a valid access token for the tenant, fetching and caching a
// new one when the cached token is missing or inside the safety buffer.
func (c *Cache) Token(ctx context.Context, tenantID string) (string, error) {
	if token, ok := c.cached(ctx, tenantID); ok {
		return token, nil
	}

	v, err, _ := c.group.Do(tenantID, func() (interface{}, error) {
		if token, ok := c.cached(ctx, tenantID); ok {
			return token, nil
		}
		return c.refresh(ctx, tenantID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the tenant's cached token so the next Token call fetches
// a fresh one.
func (c *Cache) Invalidate(ctx context.Context, tenantID string) {
	key := c.Key(tenantID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("tokens: invalidate failed")
		return
	}
	c.logger.Info().Str("tenant_id", tenantID).Msg("tokens: invalidated")
}

func (c *Cache) cached(ctx context.Context, tenantID string) (string, bool) {
	raw, err := c.client.Get(ctx, c.Key(tenantID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("tokens: cache read failed, fetching live")
		}
		return "", false
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil || e.AccessToken == "" {
		c.logger.Warn().Str("tenant_id", tenantID).Msg("tokens: discarding malformed cache entry")
		return "", false
	}
	if time.Unix(e.ExpiryEpoch, 0).After(c.now().Add(SafetyBuffer)) {
		return e.AccessToken, true
	}
	return "", false
}

func (c *Cache) refresh(ctx context.Context, tenantID string) (string, error) {
	grant, err := c.fetcher.Fetch(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("tokens: fetch for tenant %s: %w", tenantID, err)
	}
	if grant.AccessToken == "" {
		return "", fmt.Errorf("tokens: fetch for tenant %s returned an empty token", tenantID)
	}

	ttl := grant.Lifetime - SafetyBuffer
	if ttl < MinLifetime {
		ttl = MinLifetime
	}
	e := entry{AccessToken: grant.AccessToken, ExpiryEpoch: c.now().Add(ttl).Unix()}
	buf, _ := json.Marshal(e)
	if err := c.client.Set(ctx, c.Key(tenantID), buf, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("tokens: cache write failed")
	}
	c.logger.Debug().Str("tenant_id", tenantID).Dur("ttl", ttl).Msg("tokens: refreshed")
	return grant.AccessToken, nil
}
