package evaluator

import (
	"context"
	"testing"

	"github.com/banderole-io/banderole/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onOffKey(name string) domain.Key {
	return domain.Key{
		Name: name,
		Kind: domain.KindBoolean,
		Variants: []domain.Variant{
			{Name: "on", Value: domain.BoolValue(true)},
			{Name: "off", Value: domain.BoolValue(false)},
		},
		DefaultVariant: "off",
	}
}

func usContext(subject string) domain.EvaluationContext {
	return domain.NewEvaluationContext(subject).WithAttribute("country", "US")
}

func TestEvaluate_UnknownKey(t *testing.T) {
	eval := New()
	snap := domain.NewSnapshot("v1", nil, nil)

	_, err := eval.Evaluate(context.Background(), snap, "ghost", usContext("user-1"))
	require.Error(t, err)
	assert.True(t, domain.IsUnknownKey(err))
}

func TestEvaluate_ArchivedKey(t *testing.T) {
	eval := New()

	key := onOffKey("old-feature")
	key.Archived = true
	key.Rules = []domain.Rule{
		{ID: "r1", Distribution: domain.Distribution{Variant: "on"}},
	}
	snap := domain.NewSnapshot("v1", []domain.Key{key}, nil)

	_, err := eval.Evaluate(context.Background(), snap, "old-feature", usContext("user-1"))
	require.Error(t, err)
	assert.True(t, domain.IsArchivedKey(err))
}

func TestEvaluate_MissingSubject(t *testing.T) {
	eval := New()
	snap := domain.NewSnapshot("v1", []domain.Key{onOffKey("k")}, nil)

	_, err := eval.Evaluate(context.Background(), snap, "k", domain.EvaluationContext{})
	require.Error(t, err)
	assert.True(t, domain.IsMissingSubject(err))
}

func TestEvaluate_DefaultWhenNoRules(t *testing.T) {
	eval := New()
	snap := domain.NewSnapshot("v1", []domain.Key{onOffKey("plain")}, nil)

	result, err := eval.Evaluate(context.Background(), snap, "plain", usContext("user-1"))
	require.NoError(t, err)
	assert.Equal(t, "off", result.Variant)
	assert.Equal(t, domain.ReasonDefault, result.Reason)
	assert.Equal(t, "v1", result.SnapshotVersion)
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	eval := New()

	key := onOffKey("ordered")
	key.Rules = []domain.Rule{
		{
			ID:           "first",
			Predicates:   []domain.Predicate{{Attribute: "country", Operator: domain.OperatorEQ, Value: "US"}},
			Distribution: domain.Distribution{Variant: "on"},
		},
		{
			ID:           "second",
			Predicates:   []domain.Predicate{{Attribute: "country", Operator: domain.OperatorEQ, Value: "US"}},
			Distribution: domain.Distribution{Variant: "off"},
		},
	}
	snap := domain.NewSnapshot("v1", []domain.Key{key}, nil)

	result, err := eval.Evaluate(context.Background(), snap, "ordered", usContext("user-1"))
	require.NoError(t, err)
	assert.Equal(t, "first", result.RuleID)
	assert.Equal(t, "on", result.Variant)
	assert.Equal(t, domain.ReasonRuleMatch, result.Reason)
}

func TestEvaluate_AllPredicatesMustMatch(t *testing.T) {
	eval := New()

	key := onOffKey("strict")
	key.Rules = []domain.Rule{
		{
			ID: "r1",
			Predicates: []domain.Predicate{
				{Attribute: "country", Operator: domain.OperatorEQ, Value: "US"},
				{Attribute: "plan", Operator: domain.OperatorEQ, Value: "pro"},
			},
			Distribution: domain.Distribution{Variant: "on"},
		},
	}
	snap := domain.NewSnapshot("v1", []domain.Key{key}, nil)

	result, err := eval.Evaluate(context.Background(), snap, "strict", usContext("user-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonDefault, result.Reason)

	evalCtx := usContext("user-1").WithAttribute("plan", "pro")
	result, err = eval.Evaluate(context.Background(), snap, "strict", evalCtx)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonRuleMatch, result.Reason)
	assert.Equal(t, "on", result.Variant)
}

func TestEvaluate_PrerequisiteCascade(t *testing.T) {
	eval := New()

	// B defaults to off; A requires B=on and would otherwise match for
	// everyone. A must fall back to its own default.
	keyB := onOffKey("b")
	keyA := onOffKey("a")
	keyA.Prerequisites = []domain.Prerequisite{{Key: "b", Variant: "on"}}
	keyA.Rules = []domain.Rule{
		{ID: "always", Distribution: domain.Distribution{Variant: "on"}},
	}
	snap := domain.NewSnapshot("v1", []domain.Key{keyA, keyB}, nil)

	result, err := eval.Evaluate(context.Background(), snap, "a", usContext("user-1"))
	require.NoError(t, err)
	assert.Equal(t, "off", result.Variant)
	assert.Equal(t, domain.ReasonPrerequisiteFailed, result.Reason)
	assert.Equal(t, "b", result.FailedPrerequisite)
}

func TestEvaluate_PrerequisiteSatisfied(t *testing.T) {
	eval := New()

	keyB := onOffKey("b")
	keyB.Rules = []domain.Rule{
		{ID: "b-on", Distribution: domain.Distribution{Variant: "on"}},
	}
	keyA := onOffKey("a")
	keyA.Prerequisites = []domain.Prerequisite{{Key: "b", Variant: "on"}}
	keyA.Rules = []domain.Rule{
		{ID: "a-on", Distribution: domain.Distribution{Variant: "on"}},
	}
	snap := domain.NewSnapshot("v1", []domain.Key{keyA, keyB}, nil)

	result, err := eval.Evaluate(context.Background(), snap, "a", usContext("user-1"))
	require.NoError(t, err)
	assert.Equal(t, "on", result.Variant)
	assert.Equal(t, "a-on", result.RuleID)
}

func TestEvaluate_TransitivePrerequisites(t *testing.T) {
	eval := New()

	// c gates b gates a; c resolves off, so b falls back to off and a's
	// requirement on b=on fails in turn.
	keyC := onOffKey("c")
	keyB := onOffKey("b")
	keyB.Prerequisites = []domain.Prerequisite{{Key: "c", Variant: "on"}}
	keyB.Rules = []domain.Rule{{ID: "b-on", Distribution: domain.Distribution{Variant: "on"}}}
	keyA := onOffKey("a")
	keyA.Prerequisites = []domain.Prerequisite{{Key: "b", Variant: "on"}}
	keyA.Rules = []domain.Rule{{ID: "a-on", Distribution: domain.Distribution{Variant: "on"}}}

	snap := domain.NewSnapshot("v1", []domain.Key{keyA, keyB, keyC}, nil)

	result, err := eval.Evaluate(context.Background(), snap, "a", usContext("user-1"))
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonPrerequisiteFailed, result.Reason)
	assert.Equal(t, "off", result.Variant)
}

func TestEvaluate_PrerequisiteOnMissingKey(t *testing.T) {
	eval := New()

	keyA := onOffKey("a")
	keyA.Prerequisites = []domain.Prerequisite{{Key: "ghost", Variant: "on"}}
	snap := domain.NewSnapshot("v1", []domain.Key{keyA}, nil)

	_, err := eval.Evaluate(context.Background(), snap, "a", usContext("user-1"))
	require.Error(t, err)
	assert.True(t, domain.IsUnknownKey(err))
}

func TestEvaluate_PercentageSplit(t *testing.T) {
	eval := New()

	key := onOffKey("rollout")
	key.Rules = []domain.Rule{
		{
			ID: "split",
			Distribution: domain.Distribution{
				Seed: "rollout-1",
				Splits: []domain.Split{
					{Variant: "on", Share: 50},
					{Variant: "off", Share: 50},
				},
			},
		},
	}
	snap := domain.NewSnapshot("v1", []domain.Key{key}, nil)

	// The same subject always lands in the same variant.
	first, err := eval.Evaluate(context.Background(), snap, "rollout", usContext("user-42"))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := eval.Evaluate(context.Background(), snap, "rollout", usContext("user-42"))
		require.NoError(t, err)
		assert.Equal(t, first.Variant, again.Variant)
	}

	// The split table is walked in declared variant order.
	bucket := Bucket("rollout", "user-42", "rollout-1")
	if bucket < 5000 {
		assert.Equal(t, "on", first.Variant)
	} else {
		assert.Equal(t, "off", first.Variant)
	}
}

func TestEvaluate_FullSplitSingleVariant(t *testing.T) {
	eval := New()

	key := onOffKey("full")
	key.Rules = []domain.Rule{
		{
			ID: "all-on",
			Distribution: domain.Distribution{
				Seed:   "s",
				Splits: []domain.Split{{Variant: "on", Share: 100}},
			},
		},
	}
	snap := domain.NewSnapshot("v1", []domain.Key{key}, nil)

	for _, subject := range []string{"a", "b", "c", "user-99"} {
		result, err := eval.Evaluate(context.Background(), snap, "full", usContext(subject))
		require.NoError(t, err)
		assert.Equal(t, "on", result.Variant)
	}
}

// Mirrors the canonical checkout-v2 scenario: a country-gated 50/50 split
// where a non-matching country always falls through to the default.
func TestEvaluate_CheckoutScenario(t *testing.T) {
	eval := New()

	key := onOffKey("checkout-v2")
	key.Rules = []domain.Rule{
		{
			ID:         "us-rollout",
			Predicates: []domain.Predicate{{Attribute: "country", Operator: domain.OperatorEQ, Value: "US"}},
			Distribution: domain.Distribution{
				Seed: "rollout-1",
				Splits: []domain.Split{
					{Variant: "on", Share: 50},
					{Variant: "off", Share: 50},
				},
			},
		},
	}
	snap := domain.NewSnapshot("v7", []domain.Key{key}, nil)

	caCtx := domain.NewEvaluationContext("user-42").WithAttribute("country", "CA")
	result, err := eval.Evaluate(context.Background(), snap, "checkout-v2", caCtx)
	require.NoError(t, err)
	assert.Equal(t, "off", result.Variant)
	assert.Equal(t, domain.ReasonDefault, result.Reason)

	usCtx := domain.NewEvaluationContext("user-42").WithAttribute("country", "US")
	usResult, err := eval.Evaluate(context.Background(), snap, "checkout-v2", usCtx)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonRuleMatch, usResult.Reason)

	again, err := eval.Evaluate(context.Background(), snap, "checkout-v2", usCtx)
	require.NoError(t, err)
	assert.Equal(t, usResult.Variant, again.Variant)
}

func TestEvaluate_CycleGuard(t *testing.T) {
	eval := New()

	// A corrupt snapshot with mutual prerequisites must error out instead
	// of recursing forever.
	keyA := onOffKey("a")
	keyA.Prerequisites = []domain.Prerequisite{{Key: "b", Variant: "on"}}
	keyB := onOffKey("b")
	keyB.Prerequisites = []domain.Prerequisite{{Key: "a", Variant: "on"}}
	snap := domain.NewSnapshot("v1", []domain.Key{keyA, keyB}, nil)

	_, err := eval.Evaluate(context.Background(), snap, "a", usContext("user-1"))
	require.Error(t, err)
	assert.True(t, domain.IsEvaluationError(err))
}
