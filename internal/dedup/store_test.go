package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store, err := NewStore(client, opts...)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, mr
}

func TestStoreMarkThenSeen(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	if store.Seen(ctx, "tenant-a", "wamid.1") {
		t.Fatalf("fresh message must not be seen")
	}
	created, err := store.Mark(ctx, "tenant-a", "wamid.1")
	if err != nil || !created {
		t.Fatalf("expected key to be created, got created=%v err=%v", created, err)
	}
	if !store.Seen(ctx, "tenant-a", "wamid.1") {
		t.Fatalf("marked message must be seen")
	}
	if store.Seen(ctx, "tenant-b", "wamid.1") {
		t.Fatalf("ledger must be scoped per tenant")
	}

	got, err := mr.Get("dedupe:tenant-a:wamid.1")
	if err != nil || got != "1" {
		t.Fatalf("unexpected ledger value %q err=%v", got, err)
	}
	if ttl := mr.TTL("dedupe:tenant-a:wamid.1"); ttl != DefaultTTL {
		t.Fatalf("expected ttl %s, got %s", DefaultTTL, ttl)
	}
}

func TestStoreMarkIsSetOnce(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	if created, _ := store.Mark(ctx, "t", "m"); !created {
		t.Fatalf("first mark should create the key")
	}
	created, err := store.Mark(ctx, "t", "m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatalf("second mark must not overwrite the key")
	}
}

func TestStoreTTLExpiry(t *testing.T) {
	store, mr := newStore(t, WithTTL(time.Hour))
	ctx := context.Background()

	if _, err := store.Mark(ctx, "t", "m"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	mr.FastForward(61 * time.Minute)
	if store.Seen(ctx, "t", "m") {
		t.Fatalf("entry should expire after its ttl")
	}
}

func TestStoreFailsOpen(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	mr.Close()
	if store.Seen(ctx, "t", "m") {
		t.Fatalf("redis outage must be treated as not seen")
	}
	if _, err := store.Mark(ctx, "t", "m"); err == nil {
		t.Fatalf("expected mark to surface the redis error")
	}
}

func TestNewStoreRequiresClient(t *testing.T) {
	if _, err := NewStore(nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
