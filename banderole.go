// Package banderole provides dynamic configuration and feature-flag
// evaluation against immutable, versioned snapshots.
package banderole

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/banderole-io/banderole/internal/cache"
	"github.com/banderole-io/banderole/internal/domain"
	"github.com/banderole-io/banderole/internal/evaluator"
	"github.com/banderole-io/banderole/internal/graph"
	"github.com/banderole-io/banderole/internal/snapshot"
	"github.com/banderole-io/banderole/internal/telemetry"
)

// Engine is the main entry point for Banderole.
// It holds the active snapshot and evaluates keys against it.
type Engine struct {
	store     *snapshot.Store
	cache     *cache.EvaluationCache
	eval      *evaluator.Evaluator
	telemetry telemetry.Provider
	logger    *slog.Logger
}

// New creates a new engine with the given options.
//
// Example:
//
//	engine, err := banderole.New(
//	    banderole.WithCacheSize(100_000),
//	    banderole.WithLogger(logger),
//	)
func New(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	e := &Engine{
		store:     snapshot.NewStore(),
		eval:      evaluator.New(),
		telemetry: cfg.telemetry,
		logger:    cfg.logger,
	}

	if cfg.cacheEnabled {
		c, err := cache.New(cfg.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to build evaluation cache: %w", err)
		}
		e.cache = c
	}

	return e, nil
}

// Activate parses, validates, and atomically installs a snapshot document.
// The document may be JSON or YAML. If validation finds any issue the active
// snapshot is left untouched and the returned error carries every issue.
func (e *Engine) Activate(ctx context.Context, data []byte) error {
	ctx, span := e.telemetry.StartSpan(ctx, "banderole.activate")
	defer span.End()

	doc, err := snapshot.Parse(data)
	if err != nil {
		span.RecordError(err)
		return err
	}

	snap, err := doc.Build()
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(telemetry.String("snapshot.version", snap.Version()))

	start := time.Now()
	g, report := graph.Validate(ctx, snap)
	e.telemetry.RecordValidationDuration(ctx, time.Since(start))

	if !report.OK() {
		err := report.Err()
		e.telemetry.RecordValidationFailure(ctx, len(report.Issues))
		e.logger.Warn("snapshot rejected",
			"version", snap.Version(),
			"issues", len(report.Issues))
		span.RecordError(err)
		return err
	}

	old := e.store.Swap(snap)
	e.telemetry.RecordActivation(ctx, snap.Version(), len(snap.Keys()))

	previous := ""
	if old != nil {
		previous = old.Version()
	}
	e.logger.Info("snapshot activated",
		"version", snap.Version(),
		"previous", previous,
		"keys", len(snap.Keys()))
	e.logger.Debug("evaluation order", "keys", g.TopologicalOrder())

	return nil
}

// Validate checks a snapshot document without installing it. The returned
// error joins every issue found, so an editor can report all of them at once.
func (e *Engine) Validate(ctx context.Context, data []byte) error {
	doc, err := snapshot.Parse(data)
	if err != nil {
		return err
	}

	snap, err := doc.Build()
	if err != nil {
		return err
	}

	_, report := graph.Validate(ctx, snap)
	return report.Err()
}

// Evaluate resolves a key for the given context against the active snapshot.
// Use this when you need access to the variant, reason, or rule metadata.
func (e *Engine) Evaluate(ctx context.Context, key string, evalCtx Context) (*Result, error) {
	snap := e.store.Active()
	if snap == nil {
		return nil, ErrNoSnapshot
	}

	ctx, span := e.telemetry.StartSpan(ctx, "banderole.evaluate",
		telemetry.WithAttributes(telemetry.String("key", key)))
	defer span.End()

	dc := toDomainContext(evalCtx)
	start := time.Now()

	var result *domain.EvaluationResult
	var err error

	if e.cache != nil {
		fingerprint := cache.Fingerprint(dc)
		computed := false
		result, err = e.cache.GetOrEvaluate(snap.Version(), key, fingerprint, func() (*domain.EvaluationResult, error) {
			computed = true
			return e.eval.Evaluate(ctx, snap, key, dc)
		})
		if computed {
			e.telemetry.RecordCacheMiss(ctx, key)
		} else {
			e.telemetry.RecordCacheHit(ctx, key)
		}
	} else {
		result, err = e.eval.Evaluate(ctx, snap, key, dc)
	}

	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	e.telemetry.RecordEvaluation(ctx, key, string(result.Reason), time.Since(start))
	span.SetAttributes(
		telemetry.String("variant", result.Variant),
		telemetry.String("reason", string(result.Reason)))

	return toResult(result), nil
}

// Bool evaluates a boolean key and returns its value.
// Returns the default value if the key is missing or evaluation fails.
//
// Example:
//
//	enabled := engine.Bool(ctx, "checkout-v2", banderole.Context{
//	    SubjectID:  "user-123",
//	    Attributes: map[string]any{"country": "BR"},
//	}, false)
func (e *Engine) Bool(ctx context.Context, key string, evalCtx Context, defaultVal bool) bool {
	result, err := e.Evaluate(ctx, key, evalCtx)
	if err != nil {
		return defaultVal
	}
	return result.Bool(defaultVal)
}

// String evaluates a string key and returns its value.
// Returns the default value if the key is missing or evaluation fails.
func (e *Engine) String(ctx context.Context, key string, evalCtx Context, defaultVal string) string {
	result, err := e.Evaluate(ctx, key, evalCtx)
	if err != nil {
		return defaultVal
	}
	return result.String(defaultVal)
}

// Int evaluates a numeric key and returns its value truncated to an int.
// Returns the default value if the key is missing or evaluation fails.
func (e *Engine) Int(ctx context.Context, key string, evalCtx Context, defaultVal int) int {
	result, err := e.Evaluate(ctx, key, evalCtx)
	if err != nil {
		return defaultVal
	}
	return result.Int(defaultVal)
}

// Float evaluates a numeric key and returns its value.
// Returns the default value if the key is missing or evaluation fails.
func (e *Engine) Float(ctx context.Context, key string, evalCtx Context, defaultVal float64) float64 {
	result, err := e.Evaluate(ctx, key, evalCtx)
	if err != nil {
		return defaultVal
	}
	return result.Float(defaultVal)
}

// Version returns the active snapshot's version, or "" if none is active.
func (e *Engine) Version() string {
	snap := e.store.Active()
	if snap == nil {
		return ""
	}
	return snap.Version()
}

// Keys returns the active snapshot's key names sorted lexically,
// or nil if no snapshot is active.
func (e *Engine) Keys() []string {
	snap := e.store.Active()
	if snap == nil {
		return nil
	}
	return snap.KeyNames()
}

// Export renders the active snapshot back into its JSON document form.
func (e *Engine) Export() ([]byte, error) {
	snap := e.store.Active()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snapshot.FromSnapshot(snap).Encode()
}

// Metrics returns current evaluation cache metrics.
// Returns zero metrics when the cache is disabled.
func (e *Engine) Metrics() CacheMetrics {
	if e.cache == nil {
		return CacheMetrics{}
	}
	m := e.cache.Metrics()
	return CacheMetrics{
		Hits:   m.Hits(),
		Misses: m.Misses(),
		Ratio:  m.Ratio(),
	}
}

// Close releases the engine's resources.
func (e *Engine) Close(ctx context.Context) error {
	if e.cache != nil {
		e.cache.Close()
	}
	return e.telemetry.Shutdown(ctx)
}

// Internal conversion helpers

func toDomainContext(ctx Context) domain.EvaluationContext {
	return domain.EvaluationContext{
		SubjectID:      ctx.SubjectID,
		EvaluationTime: ctx.EvaluationTime,
		Attributes:     ctx.Attributes,
	}
}

func toResult(r *domain.EvaluationResult) *Result {
	return &Result{
		Key:                r.Key,
		Variant:            r.Variant,
		Value:              r.Value,
		Reason:             string(r.Reason),
		RuleID:             r.RuleID,
		FailedPrerequisite: r.FailedPrerequisite,
		SnapshotVersion:    r.SnapshotVersion,
	}
}
