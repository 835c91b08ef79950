// Package engine implements the custody workflow: request, approval, and
// direct-update operations over the asset registry and the ledger.
//
// Every state-changing operation takes the guard keys of the records it
// touches, then runs one storage unit that locks the rows, checks
// preconditions, and writes the ledger entry together with the registry
// change. Any failure leaves both untouched.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/custody/internal/platform/errors"
	"github.com/louisbranch/custody/internal/platform/id"
	"github.com/louisbranch/custody/internal/platform/logging"
	"github.com/louisbranch/custody/internal/platform/timeouts"
	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/guard"
	"github.com/louisbranch/custody/internal/services/custody/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultPageSize is used when a list request has no page size.
	DefaultPageSize = 50
	// MaxPageSize caps list page sizes.
	MaxPageSize = 200
)

// Engine runs custody operations against a store.
type Engine struct {
	store    storage.Store
	guard    guard.Guard
	now      func() time.Time
	newID    func() (string, error)
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  engineMetrics
	lockWait time.Duration
}

type config struct {
	guard          guard.Guard
	now            func() time.Time
	newID          func() (string, error)
	logger         *zap.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	lockWait       time.Duration
}

// Option configures an Engine.
type Option func(*config)

// WithGuard sets the concurrency guard. The default is an in-process guard.
func WithGuard(g guard.Guard) Option {
	return func(c *config) { c.guard = g }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(c *config) { c.newID = newID }
}

// WithLogger sets the logger for committed and refused operations.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithTracerProvider sets the tracer provider. The global one is used otherwise.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *config) { c.tracerProvider = provider }
}

// WithMeterProvider sets the meter provider. The global one is used otherwise.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *config) { c.meterProvider = provider }
}

// WithLockWait bounds how long an operation waits for its guard keys.
func WithLockWait(wait time.Duration) Option {
	return func(c *config) { c.lockWait = wait }
}

// New builds an engine over store.
func New(store storage.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("engine: store is required")
	}
	cfg := config{
		now:      time.Now,
		newID:    id.NewID,
		lockWait: timeouts.LockWait,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.guard == nil {
		cfg.guard = guard.NewLocal()
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.tracerProvider == nil {
		cfg.tracerProvider = otel.GetTracerProvider()
	}
	if cfg.lockWait <= 0 {
		cfg.lockWait = timeouts.LockWait
	}

	metrics, err := newEngineMetrics(cfg.meterProvider)
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:    store,
		guard:    cfg.guard,
		now:      cfg.now,
		newID:    cfg.newID,
		logger:   cfg.logger,
		tracer:   cfg.tracerProvider.Tracer(instrumentationName),
		metrics:  metrics,
		lockWait: cfg.lockWait,
	}, nil
}

// Result is the committed state of a request or resolution.
type Result struct {
	Asset       domain.Asset
	Transaction domain.Transaction
}

// timestamp returns the current time at storage precision.
func (e *Engine) timestamp() time.Time {
	return e.now().UTC().Truncate(time.Millisecond)
}

// operation tracks one engine call for tracing, metrics, and logs.
type operation struct {
	name   string
	start  time.Time
	span   trace.Span
	fields []zap.Field
}

func (e *Engine) begin(ctx context.Context, name string, actor domain.Actor) (context.Context, *operation) {
	ctx, span := e.tracer.Start(ctx, "custody."+name)
	op := &operation{name: name, start: time.Now(), span: span}
	op.attr("actor_id", actor.ID)
	return ctx, op
}

func (op *operation) attr(key, value string) {
	if value == "" {
		return
	}
	op.fields = append(op.fields, zap.String(key, value))
	op.span.SetAttributes(attribute.String("custody."+key, value))
}

func (op *operation) transition(from, to domain.AssetStatus) {
	op.attr("from", string(from))
	op.attr("to", string(to))
}

// end closes the span, records metrics, and logs the outcome. It returns err.
func (e *Engine) end(ctx context.Context, op *operation, err error) error {
	defer op.span.End()

	outcome := "ok"
	logger := logging.WithTrace(ctx, e.logger).With(zap.String("op", op.name))
	switch code := apperrors.CodeOf(err); {
	case err == nil:
		logger.Info("custody operation committed", op.fields...)
	case code != apperrors.CodeUnknown:
		outcome = "refused"
		if code.Precondition() {
			outcome = "precondition"
		}
		op.span.SetStatus(codes.Error, string(code))
		logger.Debug("custody operation refused",
			append(op.fields, zap.String("code", string(code)), zap.Error(err))...)
	default:
		outcome = "error"
		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, err.Error())
		logger.Error("custody operation failed", append(op.fields, zap.Error(err))...)
	}

	attrs := metric.WithAttributes(
		attribute.String("op", op.name),
		attribute.String("outcome", outcome),
	)
	ctx = context.WithoutCancel(ctx)
	e.metrics.transitions.Add(ctx, 1, attrs)
	e.metrics.duration.Record(ctx, time.Since(op.start).Seconds(), attrs)
	return err
}

// locked holds the guard keys and runs fn in one storage unit. Once the keys
// are held the unit runs to completion even if ctx is canceled.
func (e *Engine) locked(ctx context.Context, keys []string, fn func(context.Context, storage.Tx) error) error {
	waitCtx, cancel := context.WithTimeout(ctx, e.lockWait)
	defer cancel()
	release, err := e.guard.Acquire(waitCtx, keys...)
	if err != nil {
		return fmt.Errorf("acquire custody lock: %w", err)
	}
	defer release()

	ctx = context.WithoutCancel(ctx)
	return e.store.Update(ctx, func(tx storage.Tx) error {
		return fn(ctx, tx)
	})
}

func (e *Engine) generateID() (string, error) {
	value, err := e.newID()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return value, nil
}

func checkElevated(actor domain.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	return domain.CheckResolver(actor)
}

func requireID(value, field string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperrors.New(apperrors.CodeInvalidInput, field+" is required")
	}
	return value, nil
}

// notFound maps a storage miss to the domain error, annotated with the key.
func notFound(err error, key, value string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Annotate(domain.ErrNotFound, key, value)
	}
	return err
}

func normalizePageSize(size int) int {
	switch {
	case size <= 0:
		return DefaultPageSize
	case size > MaxPageSize:
		return MaxPageSize
	default:
		return size
	}
}
