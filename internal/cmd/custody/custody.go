// Package custody parses custody service configuration and runs the service.
package custody

import (
	"context"
	"flag"
	"fmt"

	platformcmd "github.com/louisbranch/custody/internal/platform/cmd"
	"github.com/louisbranch/custody/internal/platform/logging"
	"github.com/louisbranch/custody/internal/services/custody/app"
	"github.com/louisbranch/custody/internal/services/custody/grant"
	"go.uber.org/zap"
)

// Config holds custody command configuration.
type Config struct {
	DBDriver    string `env:"CUSTODY_DB_DRIVER"    envDefault:"sqlite"`
	DBPath      string `env:"CUSTODY_DB_PATH"      envDefault:"data/custody.db"`
	PostgresDSN string `env:"CUSTODY_POSTGRES_DSN"`
	Transport   string `env:"CUSTODY_TRANSPORT"    envDefault:"stdio"`
	HTTPAddr    string `env:"CUSTODY_HTTP_ADDR"    envDefault:"localhost:8095"`
	HealthAddr  string `env:"CUSTODY_HEALTH_ADDR"  envDefault:"localhost:8096"`
	LockBackend string `env:"CUSTODY_LOCK_BACKEND" envDefault:"local"`
	RedisAddr   string `env:"CUSTODY_REDIS_ADDR"   envDefault:"localhost:6379"`
	LogLevel    string `env:"CUSTODY_LOG_LEVEL"    envDefault:"info"`
	StdioGrant  string `env:"CUSTODY_STDIO_GRANT"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "Storage driver: sqlite or postgres")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "gRPC health server address (empty disables)")
	fs.StringVar(&cfg.LockBackend, "lock-backend", cfg.LockBackend, "Lock backend: local or redis")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address (for redis lock backend)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the custody service.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	ctx = logging.IntoContext(ctx, logger)

	verifier, err := grant.LoadVerifierConfigFromEnv(nil)
	if err != nil {
		return fmt.Errorf("load grant verifier: %w", err)
	}

	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceCustody, func(ctx context.Context) error {
		logger.Info("custody starting",
			zap.String("transport", cfg.Transport),
			zap.String("db_driver", cfg.DBDriver),
			zap.String("lock_backend", cfg.LockBackend),
		)
		return app.Run(ctx, cfg.appConfig(verifier), logger)
	})
}

func (c Config) appConfig(verifier grant.VerifierConfig) app.Config {
	return app.Config{
		DBDriver:    c.DBDriver,
		DBPath:      c.DBPath,
		PostgresDSN: c.PostgresDSN,
		LockBackend: c.LockBackend,
		RedisAddr:   c.RedisAddr,
		Transport:   c.Transport,
		HTTPAddr:    c.HTTPAddr,
		HealthAddr:  c.HealthAddr,
		StdioGrant:  c.StdioGrant,
		Grant:       verifier,
	}
}
