// Package telemetry instruments the engine: evaluation counters by reason,
// cache hit ratios, validation outcomes, and the active snapshot version.
package telemetry

import (
	"context"
	"time"
)

// Provider defines the interface for telemetry providers.
type Provider interface {
	// Tracer operations
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)

	// Metrics operations
	RecordEvaluation(ctx context.Context, key string, reason string, duration time.Duration)
	RecordCacheHit(ctx context.Context, key string)
	RecordCacheMiss(ctx context.Context, key string)
	RecordActivation(ctx context.Context, version string, keyCount int)
	RecordValidationFailure(ctx context.Context, issueCount int)
	RecordValidationDuration(ctx context.Context, duration time.Duration)

	// Lifecycle
	Shutdown(ctx context.Context) error
}

// Span represents a trace span.
type Span interface {
	End()
	SetAttributes(attrs ...Attribute)
	RecordError(err error)
	AddEvent(name string, attrs ...Attribute)
}

// SpanOption configures span creation.
type SpanOption func(*SpanConfig)

// SpanConfig holds span configuration.
type SpanConfig struct {
	Attributes []Attribute
}

// Attribute represents a key-value attribute.
type Attribute struct {
	Key   string
	Value interface{}
}

// WithAttributes adds attributes to a span.
func WithAttributes(attrs ...Attribute) SpanOption {
	return func(c *SpanConfig) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int creates an int attribute.
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a bool attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// NoOpProvider is a telemetry provider that does nothing. It is the default
// when no provider is configured.
type NoOpProvider struct{}

// NewNoOp creates a new no-op telemetry provider.
func NewNoOp() *NoOpProvider {
	return &NoOpProvider{}
}

func (n *NoOpProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	return ctx, &NoOpSpan{}
}

func (n *NoOpProvider) RecordEvaluation(ctx context.Context, key string, reason string, duration time.Duration) {
}

func (n *NoOpProvider) RecordCacheHit(ctx context.Context, key string) {}

func (n *NoOpProvider) RecordCacheMiss(ctx context.Context, key string) {}

func (n *NoOpProvider) RecordActivation(ctx context.Context, version string, keyCount int) {}

func (n *NoOpProvider) RecordValidationFailure(ctx context.Context, issueCount int) {}

func (n *NoOpProvider) RecordValidationDuration(ctx context.Context, duration time.Duration) {}

func (n *NoOpProvider) Shutdown(ctx context.Context) error {
	return nil
}

// NoOpSpan is a span that does nothing.
type NoOpSpan struct{}

func (n *NoOpSpan) End() {}

func (n *NoOpSpan) SetAttributes(attrs ...Attribute) {}

func (n *NoOpSpan) RecordError(err error) {}

func (n *NoOpSpan) AddEvent(name string, attrs ...Attribute) {}
