// Package graph validates snapshots before activation: structural checks on
// every key and segment, prerequisite and segment-reference cycle detection,
// dangling-reference detection, and the topological ordering used for
// diagnostics and diff emission.
package graph

import (
	"context"
	"errors"
	"sort"

	"github.com/banderole-io/banderole/internal/domain"
)

// Issue kinds reported in a validation report.
const (
	KindCyclicDependency      = "cyclic_dependency"
	KindDanglingPrerequisite  = "dangling_prerequisite"
	KindMalformedDistribution = "malformed_distribution"
	KindUnknownOperator       = "unknown_operator"
)

// Issue is one validation failure: its kind, the offending keys or segments,
// and a human-readable detail. Err carries the typed domain error.
type Issue struct {
	Kind   string
	Keys   []string
	Detail string
	Err    error
}

// Report collects every validation failure found in a snapshot, not just the
// first, so an editor can surface all problems at once.
type Report struct {
	Issues []Issue
}

// OK reports whether the snapshot passed validation.
func (r *Report) OK() bool {
	return len(r.Issues) == 0
}

// Err returns all issues joined into one error, or nil when validation
// passed. The typed domain errors stay reachable through errors.As.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Issues))
	for i, issue := range r.Issues {
		errs[i] = issue.Err
	}
	return errors.Join(errs...)
}

// issueKind maps a typed domain error to its report kind.
func issueKind(err error) string {
	switch {
	case domain.IsUnknownOperator(err):
		return KindUnknownOperator
	case domain.IsCyclicDependency(err):
		return KindCyclicDependency
	case domain.IsDanglingPrerequisite(err):
		return KindDanglingPrerequisite
	default:
		return KindMalformedDistribution
	}
}

func (r *Report) add(kind string, keys []string, err error) {
	r.Issues = append(r.Issues, Issue{
		Kind:   kind,
		Keys:   keys,
		Detail: err.Error(),
		Err:    err,
	})
}

// Graph is the derived prerequisite graph of one validated snapshot. It is
// recomputed per validation, never stored with the snapshot.
type Graph struct {
	edges map[string][]string
	order []string
}

// Dependencies returns the prerequisite targets of a key.
func (g *Graph) Dependencies(key string) []string {
	return append([]string(nil), g.edges[key]...)
}

// TopologicalOrder returns all keys with dependencies listed before their
// dependents. The evaluator resolves prerequisites lazily and does not use
// this order; it exists for diagnostics and for diff emission.
func (g *Graph) TopologicalOrder() []string {
	return append([]string(nil), g.order...)
}

// Validate checks a snapshot for activation. It runs every key's and
// segment's structural validation, verifies that prerequisite and segment
// references point at existing, unarchived targets, and rejects any cycle in
// either graph. A snapshot with a non-empty report is rejected whole; it
// must never become the active snapshot.
//
// ctx is only consulted between keys so a superseded validation can be
// abandoned early.
func Validate(ctx context.Context, snap *domain.Snapshot) (*Graph, *Report) {
	report := &Report{}

	for _, name := range snap.SegmentNames() {
		segment, _ := snap.Segment(name)
		if err := segment.Validate(); err != nil {
			report.add(issueKind(err), []string{name}, err)
		}
		checkSegmentRefs(snap, name, segment.Predicates, report)
	}
	detectSegmentCycles(snap, report)

	edges := make(map[string][]string)
	for _, name := range snap.KeyNames() {
		if err := ctx.Err(); err != nil {
			report.add(KindMalformedDistribution, nil, err)
			return nil, report
		}

		key, _ := snap.Key(name)
		if err := key.Validate(); err != nil {
			report.add(issueKind(err), []string{name}, err)
		}

		for _, rule := range key.Rules {
			checkSegmentRefs(snap, name, rule.Predicates, report)
		}

		for _, pre := range key.Prerequisites {
			target, ok := snap.Key(pre.Key)
			switch {
			case !ok:
				report.add(KindDanglingPrerequisite, []string{name, pre.Key},
					domain.NewDanglingPrerequisiteError(name, pre.Key, "missing"))
			case target.Archived:
				report.add(KindDanglingPrerequisite, []string{name, pre.Key},
					domain.NewDanglingPrerequisiteError(name, pre.Key, "archived"))
			default:
				if _, declared := target.Variant(pre.Variant); !declared {
					report.add(KindDanglingPrerequisite, []string{name, pre.Key},
						domain.NewDanglingPrerequisiteError(name, pre.Key, "missing variant "+pre.Variant+" on"))
				}
				edges[name] = append(edges[name], pre.Key)
			}
		}
	}

	order, cycles := topoSort(snap.KeyNames(), edges)
	for _, cycle := range cycles {
		report.add(KindCyclicDependency, cycle, domain.NewCyclicDependencyError(cycle))
	}

	if !report.OK() {
		return nil, report
	}
	return &Graph{edges: edges, order: order}, report
}

// checkSegmentRefs reports IN_SEGMENT predicates pointing at segments the
// snapshot does not define.
func checkSegmentRefs(snap *domain.Snapshot, owner string, predicates []domain.Predicate, report *Report) {
	for _, p := range predicates {
		if p.Operator != domain.OperatorInSegment {
			continue
		}
		name, ok := p.Value.(string)
		if !ok {
			report.add(KindMalformedDistribution, []string{owner},
				domain.NewMalformedDistributionError(owner, "IN_SEGMENT operand must be a segment name"))
			continue
		}
		if _, exists := snap.Segment(name); !exists {
			report.add(KindDanglingPrerequisite, []string{owner, name},
				domain.NewDanglingPrerequisiteError(owner, name, "missing"))
		}
	}
}

// detectSegmentCycles rejects segments that reference themselves directly or
// through other segments.
func detectSegmentCycles(snap *domain.Snapshot, report *Report) {
	edges := make(map[string][]string)
	for _, name := range snap.SegmentNames() {
		segment, _ := snap.Segment(name)
		for _, p := range segment.Predicates {
			if p.Operator != domain.OperatorInSegment {
				continue
			}
			if target, ok := p.Value.(string); ok {
				edges[name] = append(edges[name], target)
			}
		}
	}

	_, cycles := topoSort(snap.SegmentNames(), edges)
	for _, cycle := range cycles {
		report.add(KindCyclicDependency, cycle, domain.NewCyclicDependencyError(cycle))
	}
}

// topoSort runs a depth-first traversal with a recursion stack over nodes in
// lexical order. It returns a dependency-first topological order and every
// distinct cycle found as the sequence of nodes along its back-edge.
func topoSort(nodes []string, edges map[string][]string) (order []string, cycles [][]string) {
	const (
		white = 0 // unvisited
		grey  = 1 // on the recursion stack
		black = 2 // done
	)

	color := make(map[string]int, len(nodes))
	var stack []string

	var visit func(node string)
	visit = func(node string) {
		color[node] = grey
		stack = append(stack, node)

		targets := append([]string(nil), edges[node]...)
		sort.Strings(targets)
		for _, target := range targets {
			switch color[target] {
			case white:
				visit(target)
			case grey:
				// Back edge: slice the recursion stack from the first
				// occurrence of target to name the full cycle.
				for i, on := range stack {
					if on == target {
						cycle := append([]string(nil), stack[i:]...)
						cycle = append(cycle, target)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[node] = black
		order = append(order, node)
	}

	sorted := append([]string(nil), nodes...)
	sort.Strings(sorted)
	for _, node := range sorted {
		if color[node] == white {
			visit(node)
		}
	}
	return order, cycles
}

// UnionOrder returns a dependency-safe ordering over the union of two
// snapshots' keys, for emitting migration plans: a key appears only after
// every key it depends on in either snapshot. Should the union of two
// individually acyclic graphs form a cycle, the back edge is dropped and the
// lexical DFS order decides, deterministically.
func UnionOrder(before, after *domain.Snapshot) []string {
	names := make(map[string]bool)
	edges := make(map[string][]string)

	collect := func(snap *domain.Snapshot) {
		for _, name := range snap.KeyNames() {
			names[name] = true
			key, _ := snap.Key(name)
			for _, pre := range key.Prerequisites {
				edges[name] = append(edges[name], pre.Key)
			}
		}
	}
	collect(before)
	collect(after)

	all := make([]string, 0, len(names))
	for name := range names {
		all = append(all, name)
	}

	order, _ := topoSort(all, edges)
	return order
}
