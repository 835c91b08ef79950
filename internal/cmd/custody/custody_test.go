package custody

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/louisbranch/custody/internal/services/custody/grant"
)

func clearCustodyEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CUSTODY_ENV_FILE", "CUSTODY_DB_DRIVER", "CUSTODY_DB_PATH", "CUSTODY_POSTGRES_DSN",
		"CUSTODY_TRANSPORT", "CUSTODY_HTTP_ADDR", "CUSTODY_HEALTH_ADDR", "CUSTODY_LOCK_BACKEND",
		"CUSTODY_REDIS_ADDR", "CUSTODY_LOG_LEVEL", "CUSTODY_STDIO_GRANT",
	} {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

func TestParseConfigDefaults(t *testing.T) {
	clearCustodyEnv(t)

	fs := flag.NewFlagSet("custody", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("expected default driver sqlite, got %q", cfg.DBDriver)
	}
	if cfg.DBPath != "data/custody.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.Transport != "stdio" {
		t.Fatalf("expected default transport stdio, got %q", cfg.Transport)
	}
	if cfg.HealthAddr != "localhost:8096" {
		t.Fatalf("expected default health addr, got %q", cfg.HealthAddr)
	}
	if cfg.LockBackend != "local" {
		t.Fatalf("expected default lock backend local, got %q", cfg.LockBackend)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	clearCustodyEnv(t)
	t.Setenv("CUSTODY_HTTP_ADDR", "env-http")
	t.Setenv("CUSTODY_LOCK_BACKEND", "redis")
	t.Setenv("CUSTODY_STDIO_GRANT", "grant-token")

	fs := flag.NewFlagSet("custody", flag.ContinueOnError)
	args := []string{"-transport", "http", "-http-addr", "flag-http", "-db-driver", "postgres", "-health-addr", ""}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-http" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.Transport != "http" {
		t.Fatalf("expected transport http, got %q", cfg.Transport)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("expected driver postgres, got %q", cfg.DBDriver)
	}
	if cfg.HealthAddr != "" {
		t.Fatalf("expected health disabled, got %q", cfg.HealthAddr)
	}
	if cfg.LockBackend != "redis" {
		t.Fatalf("expected env lock backend, got %q", cfg.LockBackend)
	}
	if cfg.StdioGrant != "grant-token" {
		t.Fatalf("expected env stdio grant, got %q", cfg.StdioGrant)
	}
}

func TestParseConfigReadsEnvFile(t *testing.T) {
	clearCustodyEnv(t)
	path := filepath.Join(t.TempDir(), "custody.env")
	if err := os.WriteFile(path, []byte("CUSTODY_REDIS_ADDR=redis.internal:6379\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CUSTODY_ENV_FILE", path)
	t.Cleanup(func() { _ = os.Unsetenv("CUSTODY_REDIS_ADDR") })

	cfg, err := ParseConfig(flag.NewFlagSet("custody", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.RedisAddr != "redis.internal:6379" {
		t.Fatalf("expected env file redis addr, got %q", cfg.RedisAddr)
	}
}

func TestParseConfigRejectsUnknownFlag(t *testing.T) {
	clearCustodyEnv(t)
	fs := flag.NewFlagSet("custody", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := ParseConfig(fs, []string{"-port", "1"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestRunRequiresGrantVerifier(t *testing.T) {
	clearCustodyEnv(t)
	t.Setenv(grant.EnvIssuer, "")
	t.Setenv(grant.EnvAudience, "")
	t.Setenv(grant.EnvPublicKey, "")

	cfg := Config{DBPath: filepath.Join(t.TempDir(), "custody.db"), LogLevel: "info"}
	if err := Run(context.Background(), cfg); err == nil {
		t.Fatal("expected error without grant verifier env")
	}
}

func TestRunRejectsInvalidLogLevel(t *testing.T) {
	if err := Run(context.Background(), Config{LogLevel: "loud"}); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}
