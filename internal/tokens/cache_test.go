package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type countingFetcher struct {
	calls    atomic.Int32
	token    string
	lifetime time.Duration
	err      error
}

func (f *countingFetcher) Fetch(ctx context.Context, tenantID string) (Grant, error) {
	n := f.calls.Add(1)
	if f.err != nil {
		return Grant{}, f.err
	}
	tok := f.token
	if tok == "" {
		tok = "tok-" + string(rune('0'+n))
	}
	return Grant{AccessToken: tok, Lifetime: f.lifetime}, nil
}

type fixture struct {
	cache *Cache
	mr    *miniredis.Miniredis
	now   time.Time
	mu    sync.Mutex
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newFixture(t *testing.T, fetcher Fetcher) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{mr: mr, now: time.Unix(1_700_000_000, 0)}
	cache, err := NewCache(client, fetcher, WithClock(func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.now
	}))
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	f.cache = cache
	return f
}

func TestTokenCachesUntilSafetyBuffer(t *testing.T) {
	fetcher := &countingFetcher{lifetime: time.Hour}
	f := newFixture(t, fetcher)
	ctx := context.Background()

	first, err := f.cache.Token(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := f.cache.Token(ctx, "tenant-a")
	if first != second || fetcher.calls.Load() != 1 {
		t.Fatalf("expected cache hit, got %q/%q after %d fetches", first, second, fetcher.calls.Load())
	}

	raw, err := f.mr.Get("token:tenant-a")
	if err != nil {
		t.Fatalf("expected cache entry: %v", err)
	}
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if want := f.now.Add(time.Hour - SafetyBuffer).Unix(); e.ExpiryEpoch != want {
		t.Fatalf("expected expiry %d, got %d", want, e.ExpiryEpoch)
	}

	// 3300s stored lifetime; inside the last 300s the entry is stale.
	f.advance(3000*time.Second + time.Second)
	third, _ := f.cache.Token(ctx, "tenant-a")
	if third == first || fetcher.calls.Load() != 2 {
		t.Fatalf("expected refresh inside safety buffer, got %q after %d fetches", third, fetcher.calls.Load())
	}
}

func TestTokenMinimumLifetime(t *testing.T) {
	fetcher := &countingFetcher{lifetime: 2 * time.Minute}
	f := newFixture(t, fetcher)

	if _, err := f.cache.Token(context.Background(), "tenant-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ttl := f.mr.TTL("token:tenant-a"); ttl != MinLifetime {
		t.Fatalf("expected ttl %s, got %s", MinLifetime, ttl)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	fetcher := &countingFetcher{lifetime: time.Hour}
	f := newFixture(t, fetcher)
	ctx := context.Background()

	if _, err := f.cache.Token(ctx, "tenant-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.cache.Invalidate(ctx, "tenant-a")
	if f.mr.Exists("token:tenant-a") {
		t.Fatalf("expected key to be deleted")
	}
	if _, err := f.cache.Token(ctx, "tenant-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls.Load() != 2 {
		t.Fatalf("expected a fresh fetch after invalidate, got %d fetches", fetcher.calls.Load())
	}
}

func TestTokenFailsOpenOnRedisOutage(t *testing.T) {
	fetcher := &countingFetcher{token: "live", lifetime: time.Hour}
	f := newFixture(t, fetcher)
	f.mr.Close()

	tok, err := f.cache.Token(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("redis outage must not fail token resolution: %v", err)
	}
	if tok != "live" {
		t.Fatalf("expected live token, got %q", tok)
	}
	f.cache.Invalidate(context.Background(), "tenant-a")
}

func TestTokenFetchError(t *testing.T) {
	boom := errors.New("identity provider down")
	f := newFixture(t, &countingFetcher{err: boom})

	_, err := f.cache.Token(context.Background(), "tenant-a")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
}

func TestTokenCollapsesConcurrentRefresh(t *testing.T) {
	fetcher := &countingFetcher{lifetime: time.Hour}
	f := newFixture(t, fetcher)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.cache.Token(context.Background(), "tenant-a"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := fetcher.calls.Load(); got != 1 {
		t.Fatalf("expected one fetch for concurrent callers, got %d", got)
	}
}

func TestKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache, _ := NewCache(client, &countingFetcher{lifetime: time.Hour}, WithPrefix("watoken"))
	if got := cache.Key("tenant-a"); got != "watoken:tenant-a" {
		t.Fatalf("unexpected key %q", got)
	}
}
