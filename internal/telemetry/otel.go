package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	meterName  = "banderole"
	tracerName = "banderole"
)

// OTelProvider implements Provider using OpenTelemetry.
type OTelProvider struct {
	tracer trace.Tracer
	meter  metric.Meter

	// Metrics
	evaluations        metric.Int64Counter
	cacheHits          metric.Int64Counter
	cacheMisses        metric.Int64Counter
	activations        metric.Int64Counter
	validationFailures metric.Int64Counter
	validationDuration metric.Float64Histogram
	activeKeys         metric.Int64ObservableGauge

	// Current snapshot state (for the gauge)
	mu              sync.RWMutex
	currentVersion  string
	currentKeyCount int64
}

// NewOTel creates a new OpenTelemetry provider.
func NewOTel() (*OTelProvider, error) {
	provider := &OTelProvider{
		tracer: otel.Tracer(tracerName),
		meter:  otel.Meter(meterName),
	}

	if err := provider.initMetrics(); err != nil {
		return nil, err
	}
	return provider, nil
}

// initMetrics initializes all metrics.
func (o *OTelProvider) initMetrics() error {
	var err error

	o.evaluations, err = o.meter.Int64Counter(
		"banderole.evaluations",
		metric.WithDescription("Number of key evaluations"),
	)
	if err != nil {
		return err
	}

	o.cacheHits, err = o.meter.Int64Counter(
		"banderole.cache.hits",
		metric.WithDescription("Number of evaluation cache hits"),
	)
	if err != nil {
		return err
	}

	o.cacheMisses, err = o.meter.Int64Counter(
		"banderole.cache.misses",
		metric.WithDescription("Number of evaluation cache misses"),
	)
	if err != nil {
		return err
	}

	o.activations, err = o.meter.Int64Counter(
		"banderole.snapshot.activations",
		metric.WithDescription("Number of snapshot activations"),
	)
	if err != nil {
		return err
	}

	o.validationFailures, err = o.meter.Int64Counter(
		"banderole.validation.failures",
		metric.WithDescription("Number of rejected snapshots"),
	)
	if err != nil {
		return err
	}

	o.validationDuration, err = o.meter.Float64Histogram(
		"banderole.validation.duration",
		metric.WithDescription("Duration of snapshot validation"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	o.activeKeys, err = o.meter.Int64ObservableGauge(
		"banderole.snapshot.keys",
		metric.WithDescription("Number of keys in the active snapshot"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			o.mu.RLock()
			count := o.currentKeyCount
			version := o.currentVersion
			o.mu.RUnlock()
			observer.Observe(count, metric.WithAttributes(
				attribute.String("snapshot.version", version),
			))
			return nil
		}),
	)
	if err != nil {
		return err
	}

	return nil
}

// StartSpan creates a new trace span.
func (o *OTelProvider) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	config := &SpanConfig{}
	for _, opt := range opts {
		opt(config)
	}

	otelAttrs := make([]attribute.KeyValue, len(config.Attributes))
	for i, attr := range config.Attributes {
		otelAttrs[i] = convertAttribute(attr)
	}

	ctx, otelSpan := o.tracer.Start(ctx, name, trace.WithAttributes(otelAttrs...))
	return ctx, &OTelSpan{span: otelSpan}
}

// convertAttribute converts our Attribute to an OTel attribute.
func convertAttribute(attr Attribute) attribute.KeyValue {
	switch v := attr.Value.(type) {
	case string:
		return attribute.String(attr.Key, v)
	case int:
		return attribute.Int(attr.Key, v)
	case int64:
		return attribute.Int64(attr.Key, v)
	case bool:
		return attribute.Bool(attr.Key, v)
	case float64:
		return attribute.Float64(attr.Key, v)
	default:
		return attribute.String(attr.Key, "")
	}
}

// RecordEvaluation records one key evaluation and its outcome reason.
func (o *OTelProvider) RecordEvaluation(ctx context.Context, key string, reason string, duration time.Duration) {
	o.evaluations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key", key),
		attribute.String("reason", reason),
	))
}

// RecordCacheHit records an evaluation cache hit.
func (o *OTelProvider) RecordCacheHit(ctx context.Context, key string) {
	o.cacheHits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key", key),
	))
}

// RecordCacheMiss records an evaluation cache miss.
func (o *OTelProvider) RecordCacheMiss(ctx context.Context, key string) {
	o.cacheMisses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key", key),
	))
}

// RecordActivation records a snapshot activation and updates the gauge state.
func (o *OTelProvider) RecordActivation(ctx context.Context, version string, keyCount int) {
	o.mu.Lock()
	o.currentVersion = version
	o.currentKeyCount = int64(keyCount)
	o.mu.Unlock()

	o.activations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("snapshot.version", version),
	))
}

// RecordValidationFailure records a rejected snapshot.
func (o *OTelProvider) RecordValidationFailure(ctx context.Context, issueCount int) {
	o.validationFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("issues", issueCount),
	))
}

// RecordValidationDuration records how long snapshot validation took.
func (o *OTelProvider) RecordValidationDuration(ctx context.Context, duration time.Duration) {
	o.validationDuration.Record(ctx, float64(duration.Milliseconds()))
}

// Shutdown shuts down the provider.
func (o *OTelProvider) Shutdown(ctx context.Context) error {
	// OTel SDK shutdown is handled globally
	return nil
}

// OTelSpan wraps an OpenTelemetry span.
type OTelSpan struct {
	span trace.Span
}

// End completes the span.
func (s *OTelSpan) End() {
	s.span.End()
}

// SetAttributes sets attributes on the span.
func (s *OTelSpan) SetAttributes(attrs ...Attribute) {
	otelAttrs := make([]attribute.KeyValue, len(attrs))
	for i, attr := range attrs {
		otelAttrs[i] = convertAttribute(attr)
	}
	s.span.SetAttributes(otelAttrs...)
}

// RecordError records an error on the span.
func (s *OTelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

// AddEvent adds an event to the span.
func (s *OTelSpan) AddEvent(name string, attrs ...Attribute) {
	otelAttrs := make([]attribute.KeyValue, len(attrs))
	for i, attr := range attrs {
		otelAttrs[i] = convertAttribute(attr)
	}
	s.span.AddEvent(name, trace.WithAttributes(otelAttrs...))
}
