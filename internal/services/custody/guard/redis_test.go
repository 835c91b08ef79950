package guard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredislib "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredislib.NewClient(&goredislib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	g, err := NewRedis(client, RedisOptions{
		Prefix:     "test:",
		RetryDelay: 5 * time.Millisecond,
		Wait:       50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new redis guard: %v", err)
	}
	return g, mr
}

func TestNewRedisRequiresClient(t *testing.T) {
	if _, err := NewRedis(nil, RedisOptions{}); err == nil {
		t.Fatal("expected missing client error")
	}
}

func TestRedisAcquireAndRelease(t *testing.T) {
	g, mr := newTestRedis(t)

	release, err := g.Acquire(context.Background(), AssetKey("a"), TransactionKey("t"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !mr.Exists("test:asset:a") || !mr.Exists("test:txn:t") {
		t.Fatalf("expected both keys in redis, have %v", mr.Keys())
	}

	release()
	if len(mr.Keys()) != 0 {
		t.Fatalf("keys after release = %v", mr.Keys())
	}
}

func TestRedisContendedKeyFails(t *testing.T) {
	g, mr := newTestRedis(t)

	release, err := g.Acquire(context.Background(), AssetKey("a"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	if _, err := g.Acquire(context.Background(), AssetKey("b"), AssetKey("a")); err == nil {
		t.Fatal("expected contended acquire to fail")
	}
	if mr.Exists("test:asset:b") {
		t.Fatal("expected partially acquired key to be released")
	}
}

func TestRedisKeyExpires(t *testing.T) {
	g, mr := newTestRedis(t)

	if _, err := g.Acquire(context.Background(), AssetKey("a")); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	mr.FastForward(2 * g.opts.Expiry)

	release, err := g.Acquire(context.Background(), AssetKey("a"))
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	release()
}
