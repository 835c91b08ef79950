package engine

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/louisbranch/custody/internal/services/custody/engine"

type engineMetrics struct {
	transitions metric.Int64Counter
	duration    metric.Float64Histogram
}

func newEngineMetrics(provider metric.MeterProvider) (engineMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	meter := provider.Meter(instrumentationName)

	var (
		metrics engineMetrics
		err     error
	)

	metrics.transitions, err = meter.Int64Counter(
		"custody.transitions",
		metric.WithDescription("Number of custody operations by outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return engineMetrics{}, fmt.Errorf("create custody.transitions counter: %w", err)
	}

	metrics.duration, err = meter.Float64Histogram(
		"custody.operation.duration",
		metric.WithDescription("Time taken per custody operation, lock wait included"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return engineMetrics{}, fmt.Errorf("create custody.operation.duration histogram: %w", err)
	}

	return metrics, nil
}
