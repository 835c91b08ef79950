package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/custody/internal/services/custody/engine"
	"github.com/louisbranch/custody/internal/services/custody/grant"
	"github.com/louisbranch/custody/internal/services/custody/guard"
	"github.com/louisbranch/custody/internal/services/custody/storage"
	"github.com/louisbranch/custody/internal/services/custody/storage/postgres"
	"github.com/louisbranch/custody/internal/services/custody/storage/sqlite"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// DriverSQLite stores custody state in a local SQLite file.
	DriverSQLite = "sqlite"
	// DriverPostgres stores custody state in PostgreSQL.
	DriverPostgres = "postgres"

	// LockLocal serializes operations inside this process.
	LockLocal = "local"
	// LockRedis serializes operations across processes through Redis.
	LockRedis = "redis"

	// TransportStdio serves one MCP session on stdin/stdout.
	TransportStdio = "stdio"
	// TransportHTTP serves MCP over streamable HTTP.
	TransportHTTP = "http"
)

// DefaultDBPath is the SQLite file used when no path is configured.
var DefaultDBPath = filepath.Join("data", "custody.db")

// Config selects the runtime components.
type Config struct {
	DBDriver    string
	DBPath      string
	PostgresDSN string

	LockBackend string
	RedisAddr   string

	Transport  string
	HTTPAddr   string
	HealthAddr string

	// StdioGrant is the grant that identifies the single stdio caller.
	StdioGrant string
	// Grant verifies stdio and HTTP bearer grants.
	Grant grant.VerifierConfig
}

// Runtime holds the opened engine and the resources behind it.
type Runtime struct {
	Engine *engine.Engine

	logger  *zap.Logger
	closers []func() error
}

// Open opens the store and lock backend named by cfg and builds the engine.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Runtime{logger: logger}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, store.Close)

	lock, closeLock, err := openGuard(ctx, cfg, logger)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	if closeLock != nil {
		rt.closers = append(rt.closers, closeLock)
	}

	e, err := engine.New(store, engine.WithGuard(lock), engine.WithLogger(logger))
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Engine = e
	return rt, nil
}

// Close releases the lock backend and the store, newest first.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg Config) (storage.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.DBDriver)) {
	case "", DriverSQLite:
		path := strings.TrimSpace(cfg.DBPath)
		if path == "" {
			path = DefaultDBPath
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open custody sqlite store: %w", err)
		}
		return store, nil
	case DriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open custody postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("storage driver %q is not supported", cfg.DBDriver)
	}
}

func openGuard(ctx context.Context, cfg Config, logger *zap.Logger) (guard.Guard, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.LockBackend)) {
	case "", LockLocal:
		return guard.NewLocal(), nil, nil
	case LockRedis:
		addr := strings.TrimSpace(cfg.RedisAddr)
		if addr == "" {
			return nil, nil, errors.New("redis address is required for the redis lock backend")
		}
		client := goredislib.NewClient(&goredislib.Options{Addr: addr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", addr, err)
		}
		opts := guard.DefaultRedisOptions()
		opts.Logger = logger
		lock, err := guard.NewRedis(client, opts)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return lock, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("lock backend %q is not supported", cfg.LockBackend)
	}
}
