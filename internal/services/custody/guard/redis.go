package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/louisbranch/custody/internal/platform/timeouts"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions tunes the distributed mutexes.
type RedisOptions struct {
	// Prefix namespaces every key in Redis.
	Prefix string
	// Expiry bounds how long a crashed holder keeps a key.
	Expiry time.Duration
	// RetryDelay is the pause between acquisition attempts.
	RetryDelay time.Duration
	// Wait bounds the total time spent acquiring one key.
	Wait   time.Duration
	Logger *zap.Logger
}

// DefaultRedisOptions returns the options used by the custody service.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Prefix:     "custody:lock:",
		Expiry:     timeouts.LockTTL,
		RetryDelay: 50 * time.Millisecond,
		Wait:       timeouts.LockWait,
	}
}

// Redis is a Guard backed by redsync mutexes, shared by every process that
// points at the same Redis.
type Redis struct {
	rs   *redsync.Redsync
	opts RedisOptions
}

var _ Guard = (*Redis)(nil)

// NewRedis builds a guard on an existing client.
func NewRedis(client goredislib.UniversalClient, opts RedisOptions) (*Redis, error) {
	if client == nil {
		return nil, errors.New("guard: redis client is required")
	}
	defaults := DefaultRedisOptions()
	if opts.Expiry <= 0 {
		opts.Expiry = defaults.Expiry
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaults.RetryDelay
	}
	if opts.Wait <= 0 {
		opts.Wait = defaults.Wait
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Redis{
		rs:   redsync.New(goredis.NewPool(client)),
		opts: opts,
	}, nil
}

// Acquire takes every key in sorted order and releases them in reverse.
func (r *Redis) Acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = normalizeKeys(keys)
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	tries := int(r.opts.Wait/r.opts.RetryDelay) + 1
	held := make([]*redsync.Mutex, 0, len(keys))
	for _, key := range keys {
		mutex := r.rs.NewMutex(
			r.opts.Prefix+key,
			redsync.WithExpiry(r.opts.Expiry),
			redsync.WithTries(tries),
			redsync.WithRetryDelay(r.opts.RetryDelay),
		)
		if err := mutex.LockContext(ctx); err != nil {
			r.unlockAll(ctx, held)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		held = append(held, mutex)
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.unlockAll(ctx, held) })
	}, nil
}

func (r *Redis) unlockAll(ctx context.Context, held []*redsync.Mutex) {
	ctx = context.WithoutCancel(ctx)
	for i := len(held) - 1; i >= 0; i-- {
		mutex := held[i]
		if ok, err := mutex.UnlockContext(ctx); !ok || err != nil {
			r.opts.Logger.Warn("release lock",
				zap.String("lock_key", mutex.Name()),
				zap.Bool("unlock_ok", ok),
				zap.Error(err),
			)
		}
	}
}
