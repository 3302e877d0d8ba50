package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("miniredis unavailable: %v", err)
	}
	t.Cleanup(srv.Close)
	cl := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { cl.Close() })
	return NewCache("cfy:files", cl), srv
}

func TestStoreAndLookup(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	if err := c.StoreStorageKey(ctx, "123-abc", "converted/123-abc.docx", time.Minute); err != nil {
		t.Fatalf("store: %v", err)
	}
	key, err := c.StorageKey(ctx, "123-abc")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if key != "converted/123-abc.docx" {
		t.Fatalf("unexpected key: %s", key)
	}
}

func TestMiss(t *testing.T) {
	c, _ := testCache(t)
	_, err := c.StorageKey(context.Background(), "nope")
	if !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestRemoveInvalidates(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	if err := c.StoreStorageKey(ctx, "id1", "converted/a.pdf", time.Minute); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := c.Remove(ctx, "id1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := c.StorageKey(ctx, "id1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after remove, got %v", err)
	}
}

func TestEntriesExpire(t *testing.T) {
	c, srv := testCache(t)
	ctx := context.Background()

	if err := c.StoreStorageKey(ctx, "id2", "converted/b.pdf", time.Second); err != nil {
		t.Fatalf("store: %v", err)
	}
	srv.FastForward(2 * time.Second)
	if _, err := c.StorageKey(ctx, "id2"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after TTL, got %v", err)
	}
}

func TestZeroTTLIsNoop(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	if err := c.StoreStorageKey(ctx, "id3", "converted/c.pdf", 0); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := c.StorageKey(ctx, "id3"); !errors.Is(err, ErrMiss) {
		t.Fatalf("zero ttl should not cache, got %v", err)
	}
}
