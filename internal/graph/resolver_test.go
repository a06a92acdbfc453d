package graph

import (
	"context"
	"testing"

	"github.com/banderole-io/banderole/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onOffKey(name string, prereqs ...domain.Prerequisite) domain.Key {
	return domain.Key{
		Name: name,
		Kind: domain.KindBoolean,
		Variants: []domain.Variant{
			{Name: "on", Value: domain.BoolValue(true)},
			{Name: "off", Value: domain.BoolValue(false)},
		},
		DefaultVariant: "off",
		Prerequisites:  prereqs,
	}
}

func requires(key, variant string) domain.Prerequisite {
	return domain.Prerequisite{Key: key, Variant: variant}
}

func TestValidate_ValidSnapshot(t *testing.T) {
	snap := domain.NewSnapshot("v1", []domain.Key{
		onOffKey("base"),
		onOffKey("mid", requires("base", "on")),
		onOffKey("top", requires("mid", "on"), requires("base", "on")),
	}, nil)

	g, report := Validate(context.Background(), snap)
	require.True(t, report.OK())
	require.NotNil(t, g)
	require.NoError(t, report.Err())

	assert.ElementsMatch(t, []string{"mid", "base"}, g.Dependencies("top"))
}

func TestValidate_TopologicalOrder(t *testing.T) {
	snap := domain.NewSnapshot("v1", []domain.Key{
		onOffKey("top", requires("mid", "on")),
		onOffKey("mid", requires("base", "on")),
		onOffKey("base"),
	}, nil)

	g, report := Validate(context.Background(), snap)
	require.True(t, report.OK())

	order := g.TopologicalOrder()
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}

	assert.Less(t, pos["base"], pos["mid"])
	assert.Less(t, pos["mid"], pos["top"])
}

func TestValidate_CyclicDependency(t *testing.T) {
	snap := domain.NewSnapshot("v1", []domain.Key{
		onOffKey("x", requires("y", "on")),
		onOffKey("y", requires("x", "on")),
	}, nil)

	g, report := Validate(context.Background(), snap)
	assert.Nil(t, g)
	require.False(t, report.OK())

	require.Len(t, report.Issues, 1)
	issue := report.Issues[0]
	assert.Equal(t, KindCyclicDependency, issue.Kind)
	assert.Contains(t, issue.Keys, "x")
	assert.Contains(t, issue.Keys, "y")
	assert.True(t, domain.IsCyclicDependency(issue.Err))
	assert.True(t, domain.IsCyclicDependency(report.Err()))
}

func TestValidate_SelfCycle(t *testing.T) {
	snap := domain.NewSnapshot("v1", []domain.Key{
		onOffKey("selfish", requires("selfish", "on")),
	}, nil)

	_, report := Validate(context.Background(), snap)
	require.False(t, report.OK())
	assert.Equal(t, KindCyclicDependency, report.Issues[0].Kind)
}

func TestValidate_DanglingPrerequisite_Missing(t *testing.T) {
	snap := domain.NewSnapshot("v1", []domain.Key{
		onOffKey("a", requires("ghost", "on")),
	}, nil)

	g, report := Validate(context.Background(), snap)
	assert.Nil(t, g)
	require.False(t, report.OK())

	issue := report.Issues[0]
	assert.Equal(t, KindDanglingPrerequisite, issue.Kind)
	assert.Equal(t, []string{"a", "ghost"}, issue.Keys)
	assert.True(t, domain.IsDanglingPrerequisite(issue.Err))
}

func TestValidate_DanglingPrerequisite_Archived(t *testing.T) {
	archived := onOffKey("retired")
	archived.Archived = true

	snap := domain.NewSnapshot("v1", []domain.Key{
		archived,
		onOffKey("a", requires("retired", "on")),
	}, nil)

	_, report := Validate(context.Background(), snap)
	require.False(t, report.OK())
	assert.Contains(t, report.Issues[0].Detail, "archived")
}

func TestValidate_PrerequisiteOnUndeclaredVariant(t *testing.T) {
	snap := domain.NewSnapshot("v1", []domain.Key{
		onOffKey("base"),
		onOffKey("a", requires("base", "purple")),
	}, nil)

	_, report := Validate(context.Background(), snap)
	require.False(t, report.OK())
	assert.Equal(t, KindDanglingPrerequisite, report.Issues[0].Kind)
}

func TestValidate_ReportsAllIssues(t *testing.T) {
	bad := onOffKey("bad-op")
	bad.Rules = []domain.Rule{
		{
			ID:           "r1",
			Predicates:   []domain.Predicate{{Attribute: "x", Operator: domain.Operator("LIKE"), Value: "y"}},
			Distribution: domain.Distribution{Variant: "on"},
		},
	}

	snap := domain.NewSnapshot("v1", []domain.Key{
		bad,
		onOffKey("dangling", requires("ghost", "on")),
	}, nil)

	_, report := Validate(context.Background(), snap)
	require.False(t, report.OK())
	assert.Len(t, report.Issues, 2)
}

func TestValidate_MalformedDistribution(t *testing.T) {
	key := onOffKey("split")
	key.Rules = []domain.Rule{
		{
			ID: "r1",
			Distribution: domain.Distribution{
				Seed:   "s",
				Splits: []domain.Split{{Variant: "on", Share: 60}, {Variant: "off", Share: 60}},
			},
		},
	}
	snap := domain.NewSnapshot("v1", []domain.Key{key}, nil)

	_, report := Validate(context.Background(), snap)
	require.False(t, report.OK())
	assert.Equal(t, KindMalformedDistribution, report.Issues[0].Kind)
	assert.True(t, domain.IsMalformedDistribution(report.Issues[0].Err))
}

func TestValidate_SegmentCycle(t *testing.T) {
	snap := domain.NewSnapshot("v1", nil, []domain.Segment{
		{Name: "a", Predicates: []domain.Predicate{{Operator: domain.OperatorInSegment, Value: "b"}}},
		{Name: "b", Predicates: []domain.Predicate{{Operator: domain.OperatorInSegment, Value: "a"}}},
	})

	_, report := Validate(context.Background(), snap)
	require.False(t, report.OK())

	found := false
	for _, issue := range report.Issues {
		if issue.Kind == KindCyclicDependency {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_RuleReferencesMissingSegment(t *testing.T) {
	key := onOffKey("seg-user")
	key.Rules = []domain.Rule{
		{
			ID:           "r1",
			Predicates:   []domain.Predicate{{Operator: domain.OperatorInSegment, Value: "ghost"}},
			Distribution: domain.Distribution{Variant: "on"},
		},
	}
	snap := domain.NewSnapshot("v1", []domain.Key{key}, nil)

	_, report := Validate(context.Background(), snap)
	require.False(t, report.OK())
	assert.Equal(t, KindDanglingPrerequisite, report.Issues[0].Kind)
}

func TestValidate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap := domain.NewSnapshot("v1", []domain.Key{onOffKey("a")}, nil)
	g, report := Validate(ctx, snap)
	assert.Nil(t, g)
	assert.False(t, report.OK())
}

func TestUnionOrder_DependencySafe(t *testing.T) {
	before := domain.NewSnapshot("v1", []domain.Key{
		onOffKey("base"),
		onOffKey("top", requires("base", "on")),
	}, nil)
	after := domain.NewSnapshot("v2", []domain.Key{
		onOffKey("base"),
		onOffKey("top", requires("base", "on")),
		onOffKey("newcomer", requires("top", "on")),
	}, nil)

	order := UnionOrder(before, after)
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}

	assert.Less(t, pos["base"], pos["top"])
	assert.Less(t, pos["top"], pos["newcomer"])
	assert.Len(t, order, 3)
}
