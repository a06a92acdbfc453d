// Package diff compares two environment snapshots and produces an ordered,
// minimal migration plan, plus the ApplyPlan verification aid that replays a
// plan onto the before-snapshot.
package diff

import (
	"fmt"
	"sort"

	"github.com/banderole-io/banderole/internal/domain"
	"github.com/banderole-io/banderole/internal/graph"
	"github.com/google/uuid"
)

// ChangeKind classifies one change record.
type ChangeKind string

const (
	// ChangeAdded marks a key absent in the before-snapshot.
	ChangeAdded ChangeKind = "added"

	// ChangeRemoved marks a key physically absent in the after-snapshot.
	ChangeRemoved ChangeKind = "removed"

	// ChangeArchived marks a key newly flagged archived. Archiving is a
	// distinct kind from physical removal.
	ChangeArchived ChangeKind = "archived"

	// ChangeModified marks a key whose variant set, rule list, prerequisite
	// list, or metadata differs structurally.
	ChangeModified ChangeKind = "modified"
)

// ChangeRecord describes one key's change between two snapshots.
type ChangeRecord struct {
	Key  string
	Kind ChangeKind

	// BeforeVariants and AfterVariants summarize the variant sets on either
	// side for audit display.
	BeforeVariants []string
	AfterVariants  []string

	// Before and After carry the full key definitions; Before is nil for
	// added keys, After for removed ones.
	Before *domain.Key
	After  *domain.Key
}

// SegmentChange describes one segment's change between two snapshots.
type SegmentChange struct {
	Segment string
	Kind    ChangeKind
	Before  *domain.Segment
	After   *domain.Segment
}

// Plan is the diff artifact: a migration plan addressed by the snapshot
// version pair it was computed from. Segment changes precede key changes,
// and key changes are emitted in dependency-safe order, so a tool applying
// the plan never references an as-yet-unapplied prerequisite.
type Plan struct {
	ID            string
	BeforeVersion string
	AfterVersion  string
	Segments      []SegmentChange
	Changes       []ChangeRecord
}

// Empty reports whether the plan contains no changes.
func (p *Plan) Empty() bool {
	return len(p.Changes) == 0 && len(p.Segments) == 0
}

// Compute produces the migration plan that turns before into after.
func Compute(before, after *domain.Snapshot) *Plan {
	plan := &Plan{
		ID:            uuid.NewString(),
		BeforeVersion: before.Version(),
		AfterVersion:  after.Version(),
	}

	plan.Segments = diffSegments(before, after)

	for _, name := range graph.UnionOrder(before, after) {
		b, inBefore := before.Key(name)
		a, inAfter := after.Key(name)

		switch {
		case !inBefore:
			plan.Changes = append(plan.Changes, ChangeRecord{
				Key:            name,
				Kind:           ChangeAdded,
				AfterVariants:  a.VariantNames(),
				After:          copyKey(a),
			})

		case !inAfter:
			plan.Changes = append(plan.Changes, ChangeRecord{
				Key:            name,
				Kind:           ChangeRemoved,
				BeforeVariants: b.VariantNames(),
				Before:         copyKey(b),
			})

		case keysEqual(b, a):
			// unchanged

		default:
			kind := ChangeModified
			if a.Archived && !b.Archived {
				kind = ChangeArchived
			}
			plan.Changes = append(plan.Changes, ChangeRecord{
				Key:            name,
				Kind:           kind,
				BeforeVariants: b.VariantNames(),
				AfterVariants:  a.VariantNames(),
				Before:         copyKey(b),
				After:          copyKey(a),
			})
		}
	}

	return plan
}

func diffSegments(before, after *domain.Snapshot) []SegmentChange {
	names := make(map[string]bool)
	for _, n := range before.SegmentNames() {
		names[n] = true
	}
	for _, n := range after.SegmentNames() {
		names[n] = true
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	var changes []SegmentChange
	for _, name := range sorted {
		b, inBefore := before.Segment(name)
		a, inAfter := after.Segment(name)

		switch {
		case !inBefore:
			changes = append(changes, SegmentChange{Segment: name, Kind: ChangeAdded, After: copySegment(a)})
		case !inAfter:
			changes = append(changes, SegmentChange{Segment: name, Kind: ChangeRemoved, Before: copySegment(b)})
		case !segmentsEqual(b, a):
			changes = append(changes, SegmentChange{Segment: name, Kind: ChangeModified, Before: copySegment(b), After: copySegment(a)})
		}
	}
	return changes
}

// ApplyPlan replays a plan onto the before-snapshot. It exists to verify
// plans: ApplyPlan(before, Compute(before, after)) reproduces after exactly.
func ApplyPlan(before *domain.Snapshot, plan *Plan) (*domain.Snapshot, error) {
	if before.Version() != plan.BeforeVersion {
		return nil, fmt.Errorf("plan was computed from snapshot %s, cannot apply to %s",
			plan.BeforeVersion, before.Version())
	}

	keys := make(map[string]domain.Key)
	for _, k := range before.Keys() {
		keys[k.Name] = k
	}
	segments := make(map[string]domain.Segment)
	for _, s := range before.Segments() {
		segments[s.Name] = s
	}

	for _, change := range plan.Segments {
		switch change.Kind {
		case ChangeAdded:
			if _, exists := segments[change.Segment]; exists {
				return nil, fmt.Errorf("plan adds segment %s which already exists", change.Segment)
			}
			segments[change.Segment] = *change.After
		case ChangeRemoved:
			if _, exists := segments[change.Segment]; !exists {
				return nil, fmt.Errorf("plan removes unknown segment %s", change.Segment)
			}
			delete(segments, change.Segment)
		case ChangeModified:
			if _, exists := segments[change.Segment]; !exists {
				return nil, fmt.Errorf("plan modifies unknown segment %s", change.Segment)
			}
			segments[change.Segment] = *change.After
		default:
			return nil, fmt.Errorf("unknown segment change kind %q", change.Kind)
		}
	}

	for _, change := range plan.Changes {
		switch change.Kind {
		case ChangeAdded:
			if _, exists := keys[change.Key]; exists {
				return nil, fmt.Errorf("plan adds key %s which already exists", change.Key)
			}
			keys[change.Key] = *change.After
		case ChangeRemoved:
			if _, exists := keys[change.Key]; !exists {
				return nil, fmt.Errorf("plan removes unknown key %s", change.Key)
			}
			delete(keys, change.Key)
		case ChangeModified, ChangeArchived:
			if _, exists := keys[change.Key]; !exists {
				return nil, fmt.Errorf("plan modifies unknown key %s", change.Key)
			}
			keys[change.Key] = *change.After
		default:
			return nil, fmt.Errorf("unknown change kind %q", change.Kind)
		}
	}

	keyList := make([]domain.Key, 0, len(keys))
	for _, name := range sortedNames(keys) {
		keyList = append(keyList, keys[name])
	}
	segmentList := make([]domain.Segment, 0, len(segments))
	for _, name := range sortedSegmentNames(segments) {
		segmentList = append(segmentList, segments[name])
	}

	return domain.NewSnapshot(plan.AfterVersion, keyList, segmentList), nil
}

// SnapshotsEqual reports structural equality of two snapshots, ignoring
// document order.
func SnapshotsEqual(a, b *domain.Snapshot) bool {
	aNames, bNames := a.KeyNames(), b.KeyNames()
	if len(aNames) != len(bNames) {
		return false
	}
	for _, name := range aNames {
		ak, _ := a.Key(name)
		bk, ok := b.Key(name)
		if !ok || !keysEqual(ak, bk) {
			return false
		}
	}

	aSegs, bSegs := a.SegmentNames(), b.SegmentNames()
	if len(aSegs) != len(bSegs) {
		return false
	}
	for _, name := range aSegs {
		as, _ := a.Segment(name)
		bs, ok := b.Segment(name)
		if !ok || !segmentsEqual(as, bs) {
			return false
		}
	}
	return true
}

func sortedNames(m map[string]domain.Key) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sortedSegmentNames(m map[string]domain.Segment) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func copyKey(k *domain.Key) *domain.Key {
	c := *k
	c.Variants = append([]domain.Variant(nil), k.Variants...)
	c.Rules = append([]domain.Rule(nil), k.Rules...)
	c.Prerequisites = append([]domain.Prerequisite(nil), k.Prerequisites...)
	return &c
}

func copySegment(s *domain.Segment) *domain.Segment {
	c := *s
	c.Predicates = append([]domain.Predicate(nil), s.Predicates...)
	return &c
}
