package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	apperrors "github.com/louisbranch/custody/internal/platform/errors"
	"github.com/louisbranch/custody/internal/platform/logging"
	"github.com/louisbranch/custody/internal/platform/requestctx"
	"github.com/louisbranch/custody/internal/platform/timeouts"
	"github.com/louisbranch/custody/internal/services/custody/api/mcptools"
	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/grant"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// serveStdio runs one MCP session for actor until the transport closes or
// ctx ends.
func serveStdio(ctx context.Context, service mcptools.Service, actor domain.Actor, transport mcp.Transport) error {
	server, err := mcptools.NewServer(service, mcptools.FixedActor(actor))
	if err != nil {
		return err
	}
	err = server.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// newHTTPHandler routes /mcp through grant checks to a stateless streamable
// MCP handler. Each request gets a server bound to the actor of its grant.
func newHTTPHandler(service mcptools.Service, verifier grant.VerifierConfig, logger *zap.Logger) http.Handler {
	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		actor, err := mcptools.ContextActor(r.Context())
		if err != nil {
			return nil
		}
		server, err := mcptools.NewServer(service, mcptools.FixedActor(actor))
		if err != nil {
			logging.FromContext(r.Context()).Error("build MCP server", zap.Error(err))
			return nil
		}
		return server
	}, &mcp.StreamableHTTPOptions{Stateless: true})

	mux := http.NewServeMux()
	mux.Handle("/mcp", requireGrant(verifier, logger, mcpHandler))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// requireGrant admits requests that carry a valid bearer grant and stores
// the grant's actor and a request logger in the request context.
func requireGrant(verifier grant.VerifierConfig, logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeUnauthorized(w, "authorization required")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := grant.Validate(token, verifier)
		if err != nil {
			code := apperrors.CodeOf(err)
			logger.Debug("custody grant refused", zap.String("code", string(code)), zap.Error(err))
			if code == apperrors.CodeUnknown {
				http.Error(w, "grant verification unavailable", http.StatusInternalServerError)
				return
			}
			writeUnauthorized(w, string(code))
			return
		}

		ctx := requestctx.WithActor(r.Context(), requestctx.Actor{
			UserID: claims.Actor.ID,
			Role:   string(claims.Actor.Privilege),
		})
		ctx = logging.IntoContext(ctx, logger.With(zap.String("user_id", claims.Actor.ID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="custody"`)
	http.Error(w, message, http.StatusUnauthorized)
}

// serveHTTP serves handler on listener until ctx ends, then shuts down
// gracefully.
func serveHTTP(ctx context.Context, listener net.Listener, handler http.Handler, logger *zap.Logger) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	logger.Info("custody MCP HTTP server listening", zap.String("addr", listener.Addr().String()))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP: %w", err)
		}
		<-serveErr
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve HTTP: %w", err)
	}
}
