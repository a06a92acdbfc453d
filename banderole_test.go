package banderole

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_EvaluateWithoutSnapshot(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Evaluate(context.Background(), "checkout-v2", NewContext("user-1"))
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestEngine_ActivateAndEvaluate(t *testing.T) {
	engine := newTestEngine(t)
	activateTestDocument(t, engine)

	assert.Equal(t, "v1", engine.Version())
	assert.Equal(t, []string{"base-enabled", "checkout-v2", "request-limit"}, engine.Keys())

	result, err := engine.Evaluate(context.Background(), "checkout-v2",
		NewContext("user-1").WithAttribute("country", "CA"))
	require.NoError(t, err)
	assert.Equal(t, "beta", result.Variant)
	assert.Equal(t, ReasonRuleMatch, result.Reason)
	assert.Equal(t, "ca-beta", result.RuleID)
	assert.Equal(t, "v1", result.SnapshotVersion)
}

func TestEngine_EvaluateDefault(t *testing.T) {
	engine := newTestEngine(t)
	activateTestDocument(t, engine)

	result, err := engine.Evaluate(context.Background(), "checkout-v2",
		NewContext("user-1").WithAttribute("country", "BR"))
	require.NoError(t, err)
	assert.Equal(t, "classic", result.Variant)
	assert.Equal(t, ReasonDefault, result.Reason)
	assert.Empty(t, result.RuleID)
}

func TestEngine_EvaluateUnknownKey(t *testing.T) {
	engine := newTestEngine(t)
	activateTestDocument(t, engine)

	_, err := engine.Evaluate(context.Background(), "nope", NewContext("user-1"))
	assert.True(t, IsUnknownKey(err))
}

func TestEngine_EvaluateMissingSubject(t *testing.T) {
	engine := newTestEngine(t)
	activateTestDocument(t, engine)

	_, err := engine.Evaluate(context.Background(), "checkout-v2", Context{})
	assert.True(t, IsMissingSubject(err))
}

func TestEngine_TypedHelpers(t *testing.T) {
	engine := newTestEngine(t)
	activateTestDocument(t, engine)
	ctx := context.Background()
	evalCtx := NewContext("user-1").WithAttribute("country", "CA")

	assert.True(t, engine.Bool(ctx, "base-enabled", evalCtx, false))
	assert.Equal(t, "beta", engine.String(ctx, "checkout-v2", evalCtx, "fallback"))

	// Typed helpers fall back on kind mismatch and on missing keys.
	assert.Equal(t, 42, engine.Int(ctx, "checkout-v2", evalCtx, 42))
	assert.Equal(t, "fallback", engine.String(ctx, "nope", evalCtx, "fallback"))
	assert.Equal(t, 7.5, engine.Float(ctx, "nope", evalCtx, 7.5))

	limit := engine.Int(ctx, "request-limit", evalCtx, -1)
	assert.Contains(t, []int{10, 100}, limit)
}

func TestEngine_RejectedSnapshotKeepsPrevious(t *testing.T) {
	engine := newTestEngine(t)
	activateTestDocument(t, engine)

	err := engine.Activate(context.Background(), []byte(cyclicDocument))
	require.Error(t, err)
	assert.True(t, IsCyclicDependency(err))

	// The previous snapshot stays active and keeps serving.
	assert.Equal(t, "v1", engine.Version())
	result, err := engine.Evaluate(context.Background(), "base-enabled", NewContext("user-1"))
	require.NoError(t, err)
	assert.Equal(t, "on", result.Variant)
}

func TestEngine_ActivateMalformedDocument(t *testing.T) {
	engine := newTestEngine(t)

	err := engine.Activate(context.Background(), []byte(`{"keys": [`))
	assert.Error(t, err)
	assert.Empty(t, engine.Version())
}

func TestEngine_ActivateYAML(t *testing.T) {
	engine := newTestEngine(t)

	doc := `
version: v3
keys:
  - name: greeting
    kind: string
    variants:
      - name: hi
        value: hi
    default_variant: hi
`
	require.NoError(t, engine.Activate(context.Background(), []byte(doc)))
	assert.Equal(t, "v3", engine.Version())
	assert.Equal(t, "hi", engine.String(context.Background(), "greeting", NewContext("user-1"), ""))
}

func TestEngine_Validate(t *testing.T) {
	engine := newTestEngine(t)

	assert.NoError(t, engine.Validate(context.Background(), []byte(testDocument)))

	err := engine.Validate(context.Background(), []byte(cyclicDocument))
	assert.True(t, IsCyclicDependency(err))

	// Validate never installs anything.
	assert.Empty(t, engine.Version())
}

func TestEngine_CacheMetrics(t *testing.T) {
	engine := newTestEngine(t)
	activateTestDocument(t, engine)
	ctx := context.Background()
	evalCtx := NewContext("user-1").WithAttribute("country", "CA")

	_, err := engine.Evaluate(ctx, "checkout-v2", evalCtx)
	require.NoError(t, err)
	engine.cache.Wait()

	_, err = engine.Evaluate(ctx, "checkout-v2", evalCtx)
	require.NoError(t, err)

	metrics := engine.Metrics()
	assert.NotZero(t, metrics.Misses)
	assert.NotZero(t, metrics.Hits)
}

func TestEngine_WithoutCache(t *testing.T) {
	engine := newTestEngine(t, WithoutCache())
	activateTestDocument(t, engine)

	result, err := engine.Evaluate(context.Background(), "checkout-v2",
		NewContext("user-1").WithAttribute("country", "CA"))
	require.NoError(t, err)
	assert.Equal(t, "beta", result.Variant)
	assert.Equal(t, CacheMetrics{}, engine.Metrics())
}

func TestEngine_Export(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Export()
	assert.ErrorIs(t, err, ErrNoSnapshot)

	activateTestDocument(t, engine)
	data, err := engine.Export()
	require.NoError(t, err)

	// The exported document round-trips into an identical snapshot.
	other := newTestEngine(t)
	require.NoError(t, other.Activate(context.Background(), data))
	assert.Equal(t, "v1", other.Version())
	assert.Equal(t, engine.Keys(), other.Keys())
}

func TestEngine_PrerequisiteGatesEvaluation(t *testing.T) {
	engine := newTestEngine(t)

	doc := `{
  "version": "v4",
  "keys": [
    {
      "name": "base-enabled",
      "kind": "boolean",
      "variants": [
        {"name": "on", "value": true},
        {"name": "off", "value": false}
      ],
      "default_variant": "off"
    },
    {
      "name": "checkout-v2",
      "kind": "string",
      "variants": [
        {"name": "classic", "value": "classic"},
        {"name": "beta", "value": "beta"}
      ],
      "default_variant": "classic",
      "rules": [
        {
          "id": "ca-beta",
          "predicates": [{"attribute": "country", "operator": "EQ", "value": "CA"}],
          "variant": "beta"
        }
      ],
      "prerequisites": [{"key": "base-enabled", "variant": "on"}]
    }
  ]
}`
	require.NoError(t, engine.Activate(context.Background(), []byte(doc)))

	// The prerequisite resolves to "off", so the rule never runs.
	result, err := engine.Evaluate(context.Background(), "checkout-v2",
		NewContext("user-1").WithAttribute("country", "CA"))
	require.NoError(t, err)
	assert.Equal(t, "classic", result.Variant)
	assert.Equal(t, ReasonPrerequisiteFailed, result.Reason)
	assert.Equal(t, "base-enabled", result.FailedPrerequisite)
}
