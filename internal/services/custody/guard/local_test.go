package guard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNormalizeKeys(t *testing.T) {
	got := normalizeKeys([]string{"txn:b", "", "asset:a", "txn:b"})
	want := []string{"asset:a", "txn:b"}
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys = %v, want %v", got, want)
		}
	}
}

func TestLocalRequiresKeys(t *testing.T) {
	t.Parallel()

	if _, err := NewLocal().Acquire(context.Background()); !errors.Is(err, ErrNoKeys) {
		t.Fatalf("err = %v, want ErrNoKeys", err)
	}
}

func TestLocalSerializesSameKey(t *testing.T) {
	t.Parallel()

	g := NewLocal()
	var active, peak int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := g.Acquire(context.Background(), AssetKey("asset-1"))
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer release()
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Fatalf("peak holders = %d, want 1", peak)
	}
	if g.Held() != 0 {
		t.Fatalf("held = %d, want 0 after release", g.Held())
	}
}

func TestLocalDistinctKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	g := NewLocal()
	releaseA, err := g.Acquire(context.Background(), AssetKey("a"))
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := g.Acquire(ctx, AssetKey("b"))
	if err != nil {
		t.Fatalf("acquire b: %v", err)
	}
	releaseB()
}

func TestLocalAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	g := NewLocal()
	release, err := g.Acquire(context.Background(), AssetKey("a"), TransactionKey("t"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := g.Acquire(ctx, TransactionKey("t")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	release()
	release()
	if g.Held() != 0 {
		t.Fatalf("held = %d, want 0", g.Held())
	}
}

func TestLocalPartialAcquireRollsBack(t *testing.T) {
	t.Parallel()

	g := NewLocal()
	releaseT, err := g.Acquire(context.Background(), TransactionKey("t"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// asset:a sorts first and is taken before txn:t blocks.
	if _, err := g.Acquire(ctx, TransactionKey("t"), AssetKey("a")); err == nil {
		t.Fatal("expected acquire to fail")
	}

	release, err := g.Acquire(context.Background(), AssetKey("a"))
	if err != nil {
		t.Fatalf("asset key still held after failed acquire: %v", err)
	}
	release()
	releaseT()
}
