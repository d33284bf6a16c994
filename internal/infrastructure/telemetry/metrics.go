package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the meter name for ledger metrics
const MeterName = "ledger-kernel"

// Counter wraps an Int64Counter with nil-safe helpers so services can hold
// one unconditionally
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a counter on the library's meter
func NewCounter(name, description string) (*Counter, error) {
	meter := otel.GetMeterProvider().Meter(MeterName)
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return nil, err
	}
	return &Counter{counter: counter}, nil
}

// Add increments the counter by value
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	if c == nil || c.counter == nil {
		return
	}
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Inc increments the counter by one
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}
