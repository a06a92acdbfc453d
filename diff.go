package banderole

import (
	"github.com/banderole-io/banderole/internal/diff"
	"github.com/banderole-io/banderole/internal/domain"
	"github.com/banderole-io/banderole/internal/snapshot"
)

// Change kinds reported by plan summaries.
const (
	// ChangeAdded marks a key or segment absent in the before-snapshot.
	ChangeAdded = string(diff.ChangeAdded)

	// ChangeRemoved marks a key or segment absent in the after-snapshot.
	ChangeRemoved = string(diff.ChangeRemoved)

	// ChangeArchived marks a key newly flagged archived.
	ChangeArchived = string(diff.ChangeArchived)

	// ChangeModified marks a key or segment whose definition differs.
	ChangeModified = string(diff.ChangeModified)
)

// Change summarizes one entry of a migration plan.
type Change struct {
	// Name is the key or segment the change applies to
	Name string

	// Kind is one of ChangeAdded, ChangeRemoved, ChangeArchived, ChangeModified
	Kind string

	// Segment is true when the change applies to a segment rather than a key
	Segment bool
}

// PlanSummary describes an encoded migration plan.
type PlanSummary struct {
	// ID uniquely identifies the plan
	ID string

	// BeforeVersion is the snapshot version the plan applies to
	BeforeVersion string

	// AfterVersion is the snapshot version the plan produces
	AfterVersion string

	// Changes lists every change in application order: segments first, then
	// keys in dependency-safe order
	Changes []Change
}

// Diff computes the migration plan that turns the before document into the
// after document. Both documents may be JSON or YAML; the returned plan is
// an encoded artifact suitable for review, storage, and ApplyPlan.
func Diff(before, after []byte) ([]byte, error) {
	b, err := buildSnapshot(before)
	if err != nil {
		return nil, err
	}
	a, err := buildSnapshot(after)
	if err != nil {
		return nil, err
	}
	return diff.EncodePlan(diff.Compute(b, a))
}

// ApplyPlan replays an encoded plan onto a base snapshot document and
// returns the resulting snapshot document. Applying the plan produced by
// Diff(before, after) onto before yields a document equivalent to after.
func ApplyPlan(base, encodedPlan []byte) ([]byte, error) {
	snap, err := buildSnapshot(base)
	if err != nil {
		return nil, err
	}
	plan, err := diff.DecodePlan(encodedPlan)
	if err != nil {
		return nil, err
	}
	next, err := diff.ApplyPlan(snap, plan)
	if err != nil {
		return nil, err
	}
	return snapshot.FromSnapshot(next).Encode()
}

// SummarizePlan decodes an encoded plan into a reviewable summary.
func SummarizePlan(encodedPlan []byte) (*PlanSummary, error) {
	plan, err := diff.DecodePlan(encodedPlan)
	if err != nil {
		return nil, err
	}

	changes := make([]Change, 0, len(plan.Segments)+len(plan.Changes))
	for _, sc := range plan.Segments {
		changes = append(changes, Change{
			Name:    sc.Segment,
			Kind:    string(sc.Kind),
			Segment: true,
		})
	}
	for _, cr := range plan.Changes {
		changes = append(changes, Change{
			Name: cr.Key,
			Kind: string(cr.Kind),
		})
	}

	return &PlanSummary{
		ID:            plan.ID,
		BeforeVersion: plan.BeforeVersion,
		AfterVersion:  plan.AfterVersion,
		Changes:       changes,
	}, nil
}

func buildSnapshot(data []byte) (*domain.Snapshot, error) {
	doc, err := snapshot.Parse(data)
	if err != nil {
		return nil, err
	}
	return doc.Build()
}
