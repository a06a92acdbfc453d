// Package evaluator implements targeting-rule evaluation over an immutable
// snapshot: prerequisite resolution with cascading disable, ordered rule
// matching, and deterministic percentage bucketing.
package evaluator

import (
	"context"
	"fmt"
	"sync"

	"github.com/banderole-io/banderole/internal/domain"
	"github.com/expr-lang/expr/vm"
)

// Evaluator evaluates configuration keys against caller contexts. It is
// stateless apart from the regex program cache and safe for concurrent use.
type Evaluator struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// New creates an evaluator.
func New() *Evaluator {
	return &Evaluator{
		programs: make(map[string]*vm.Program),
	}
}

// Evaluate resolves a key for the given context against one snapshot.
//
// Prerequisites are resolved first, recursively: if any referenced key does
// not evaluate to its required variant, the key short-circuits to its
// default variant with ReasonPrerequisiteFailed. Otherwise rules are scanned
// in declared order and the first full match assigns the variant, through
// deterministic bucketing when the rule carries a percentage split. With no
// match the default variant applies.
//
// The result is a pure function of (snapshot, key, context): no ambient
// clock, no randomness beyond the stable subject hash.
func (e *Evaluator) Evaluate(ctx context.Context, snap *domain.Snapshot, keyName string, evalCtx domain.EvaluationContext) (*domain.EvaluationResult, error) {
	if evalCtx.SubjectID == "" {
		return nil, domain.NewMissingSubjectError(keyName)
	}
	return e.evaluate(ctx, snap, keyName, evalCtx, make(map[string]bool))
}

func (e *Evaluator) evaluate(ctx context.Context, snap *domain.Snapshot, keyName string, evalCtx domain.EvaluationContext, visiting map[string]bool) (*domain.EvaluationResult, error) {
	key, ok := snap.Key(keyName)
	if !ok {
		return nil, domain.NewUnknownKeyError(keyName)
	}
	if key.Archived {
		return nil, domain.NewArchivedKeyError(keyName)
	}

	// Validation rejects prerequisite cycles before a snapshot activates;
	// this guard keeps a corrupt snapshot from recursing forever.
	if visiting[keyName] {
		return nil, domain.NewEvaluationError(keyName, "prerequisite cycle reached at evaluation time", nil)
	}
	visiting[keyName] = true
	defer delete(visiting, keyName)

	for _, pre := range key.Prerequisites {
		res, err := e.evaluate(ctx, snap, pre.Key, evalCtx, visiting)
		if err != nil {
			return nil, domain.NewEvaluationError(keyName, fmt.Sprintf("prerequisite %s", pre.Key), err)
		}
		if res.Variant != pre.Variant {
			return e.defaultResult(snap, key, domain.ReasonPrerequisiteFailed, pre.Key)
		}
	}

	for i := range key.Rules {
		rule := &key.Rules[i]

		matched, err := e.matchRule(snap, rule, evalCtx)
		if err != nil {
			return nil, domain.NewEvaluationError(keyName, fmt.Sprintf("rule %s", rule.ID), err)
		}
		if !matched {
			continue
		}

		variant, err := resolveDistribution(key, &rule.Distribution, evalCtx.SubjectID)
		if err != nil {
			return nil, domain.NewEvaluationError(keyName, fmt.Sprintf("rule %s", rule.ID), err)
		}

		return &domain.EvaluationResult{
			Key:             key.Name,
			Variant:         variant.Name,
			Value:           variant.Value,
			Reason:          domain.ReasonRuleMatch,
			RuleID:          rule.ID,
			SnapshotVersion: snap.Version(),
		}, nil
	}

	return e.defaultResult(snap, key, domain.ReasonDefault, "")
}

// matchRule reports whether every predicate of the rule matches the context.
func (e *Evaluator) matchRule(snap *domain.Snapshot, rule *domain.Rule, evalCtx domain.EvaluationContext) (bool, error) {
	for _, p := range rule.Predicates {
		matched, err := e.matchPredicate(snap, p, evalCtx)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// resolveDistribution picks the variant a matched rule assigns. Percentage
// splits walk the cumulative share table in declared variant order; rule
// order and variant order are authoritative, there is no best-match
// heuristic.
func resolveDistribution(key *domain.Key, d *domain.Distribution, subjectID string) (*domain.Variant, error) {
	if len(d.Splits) == 0 {
		variant, ok := key.Variant(d.Variant)
		if !ok {
			return nil, fmt.Errorf("distribution references undeclared variant %q", d.Variant)
		}
		return variant, nil
	}

	bucket := Bucket(key.Name, subjectID, d.Seed)
	bucketsPerShare := BucketCount / domain.ShareTotal

	acc := 0
	for _, split := range d.Splits {
		acc += split.Share * bucketsPerShare
		if bucket < acc {
			variant, ok := key.Variant(split.Variant)
			if !ok {
				return nil, fmt.Errorf("split references undeclared variant %q", split.Variant)
			}
			return variant, nil
		}
	}

	// Shares sum to ShareTotal, so acc covers the whole bucket space and the
	// walk above always returns. This is unreachable on validated snapshots.
	return nil, fmt.Errorf("bucket %d not covered by split table", bucket)
}

func (e *Evaluator) defaultResult(snap *domain.Snapshot, key *domain.Key, reason domain.Reason, failedPrereq string) (*domain.EvaluationResult, error) {
	variant, ok := key.Default()
	if !ok {
		return nil, domain.NewEvaluationError(key.Name, fmt.Sprintf("default variant %q not declared", key.DefaultVariant), nil)
	}
	return &domain.EvaluationResult{
		Key:                key.Name,
		Variant:            variant.Name,
		Value:              variant.Value,
		Reason:             reason,
		FailedPrerequisite: failedPrereq,
		SnapshotVersion:    snap.Version(),
	}, nil
}
