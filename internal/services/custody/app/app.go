package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/louisbranch/custody/internal/services/custody/grant"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// Run opens the runtime and serves the configured transport until ctx ends.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := strings.ToLower(strings.TrimSpace(cfg.Transport))
	if transport == "" {
		transport = TransportStdio
	}
	if transport != TransportStdio && transport != TransportHTTP {
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}

	rt, err := Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("close custody runtime", zap.Error(err))
		}
	}()

	if addr := strings.TrimSpace(cfg.HealthAddr); addr != "" {
		health, err := startHealth(addr, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := health.Stop(); err != nil {
				logger.Warn("stop health server", zap.Error(err))
			}
		}()
	}

	switch transport {
	case TransportHTTP:
		addr := strings.TrimSpace(cfg.HTTPAddr)
		if addr == "" {
			return errors.New("http address is required for the http transport")
		}
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on http addr %s: %w", addr, err)
		}
		return serveHTTP(ctx, listener, newHTTPHandler(rt.Engine, cfg.Grant, logger), logger)
	default:
		claims, err := grant.Validate(cfg.StdioGrant, cfg.Grant)
		if err != nil {
			return fmt.Errorf("validate stdio grant: %w", err)
		}
		logger.Info("custody MCP stdio session",
			zap.String("user_id", claims.Actor.ID),
			zap.String("privilege", string(claims.Actor.Privilege)),
		)
		return serveStdio(ctx, rt.Engine, claims.Actor, &mcp.StdioTransport{})
	}
}
