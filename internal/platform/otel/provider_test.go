package otel_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/custody/internal/platform/otel"
	gootel "go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("CUSTODY_OTEL_ENDPOINT", "")
	t.Setenv("CUSTODY_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "custody-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("CUSTODY_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("CUSTODY_OTEL_ENABLED", "false")

	shutdown, err := otel.Setup(context.Background(), "custody-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

// collector accepts OTLP/HTTP exports and records the paths it saw.
type collector struct {
	mu    sync.Mutex
	paths map[string]int
}

func newCollector(t *testing.T) (*collector, string) {
	t.Helper()
	c := &collector{paths: make(map[string]int)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.paths[r.URL.Path]++
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	return c, server.URL
}

func (c *collector) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paths[path]
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	_, endpoint := newCollector(t)
	t.Setenv("CUSTODY_OTEL_ENDPOINT", endpoint)
	t.Setenv("CUSTODY_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "custody-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_ShutdownFlushesCleanly(t *testing.T) {
	c, endpoint := newCollector(t)
	t.Setenv("CUSTODY_OTEL_ENDPOINT", endpoint)
	t.Setenv("CUSTODY_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "flush-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	counter, err := gootel.Meter("flush-test").Int64Counter("custody.test.flushes")
	if err != nil {
		t.Fatalf("create counter: %v", err)
	}
	counter.Add(context.Background(), 1)
	_, span := gootel.Tracer("flush-test").Start(context.Background(), "flush")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
	if c.count("/v1/traces") == 0 {
		t.Fatal("expected spans to be flushed to /v1/traces")
	}
	if c.count("/v1/metrics") == 0 {
		t.Fatal("expected metrics to be flushed to /v1/metrics")
	}
}

func TestSetup_ShutdownReturnsWhenCollectorUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()
	t.Setenv("CUSTODY_OTEL_ENDPOINT", endpoint)
	t.Setenv("CUSTODY_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "unreachable-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := shutdown(ctx); err == nil {
		t.Fatal("expected shutdown to report the failed metric export")
	}
}

func TestSetup_NoopShutdownIgnoresCancelledContext(t *testing.T) {
	t.Setenv("CUSTODY_OTEL_ENDPOINT", "")
	t.Setenv("CUSTODY_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "noop-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown should not error: %v", err)
	}
}

func TestSetup_InstallsMeterProviderWhenEndpointSet(t *testing.T) {
	_, endpoint := newCollector(t)
	t.Setenv(otel.EnvEndpoint, endpoint)
	t.Setenv(otel.EnvEnabled, "")

	shutdown, err := otel.Setup(context.Background(), "custody-metrics")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	if _, ok := gootel.GetMeterProvider().(*sdkmetric.MeterProvider); !ok {
		t.Fatalf("meter provider = %T, want sdk meter provider", gootel.GetMeterProvider())
	}
}
