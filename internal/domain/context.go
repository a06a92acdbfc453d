package domain

import (
	"time"
)

// AttrEvaluationTime is the reserved attribute name that resolves to the
// context's evaluation time. Date predicates targeting it compare against
// the caller-supplied clock, never an ambient one, so results stay
// reproducible for auditing.
const AttrEvaluationTime = "$time"

// EvaluationContext holds the caller attributes one evaluation runs against.
type EvaluationContext struct {
	// SubjectID is the mandatory stable identifier used for deterministic
	// bucketing.
	SubjectID string

	// EvaluationTime is the caller-supplied clock for date predicates.
	EvaluationTime time.Time

	// Attributes contains the typed attribute values predicates match on.
	Attributes map[string]interface{}
}

// NewEvaluationContext creates a context for the given subject.
func NewEvaluationContext(subjectID string) EvaluationContext {
	return EvaluationContext{
		SubjectID:  subjectID,
		Attributes: make(map[string]interface{}),
	}
}

// WithAttribute returns a copy of the context with one attribute set.
func (e EvaluationContext) WithAttribute(name string, value interface{}) EvaluationContext {
	attrs := make(map[string]interface{}, len(e.Attributes)+1)
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	attrs[name] = value
	e.Attributes = attrs
	return e
}

// WithEvaluationTime returns a copy of the context with the evaluation
// clock set.
func (e EvaluationContext) WithEvaluationTime(t time.Time) EvaluationContext {
	e.EvaluationTime = t
	return e
}

// Attribute resolves an attribute by name. The reserved AttrEvaluationTime
// name resolves to the evaluation clock.
func (e EvaluationContext) Attribute(name string) (interface{}, bool) {
	if name == AttrEvaluationTime {
		if e.EvaluationTime.IsZero() {
			return nil, false
		}
		return e.EvaluationTime, true
	}
	if e.Attributes == nil {
		return nil, false
	}
	v, ok := e.Attributes[name]
	return v, ok
}

// Reason explains why an evaluation produced its variant.
type Reason string

const (
	// ReasonRuleMatch means a targeting rule matched and assigned the variant.
	ReasonRuleMatch Reason = "rule_match"

	// ReasonDefault means no rule matched and the default variant applied.
	ReasonDefault Reason = "default"

	// ReasonPrerequisiteFailed means a prerequisite key did not resolve to
	// its required variant and rule evaluation was short-circuited.
	ReasonPrerequisiteFailed Reason = "prerequisite_failed"
)

// EvaluationResult is the evaluator's answer for one (key, context) pair.
type EvaluationResult struct {
	Key     string
	Variant string
	Value   Value

	// Reason is always reported; callers depend on it for audit trails.
	Reason Reason

	// RuleID identifies the matched rule when Reason is ReasonRuleMatch.
	RuleID string

	// FailedPrerequisite names the unsatisfied prerequisite key when Reason
	// is ReasonPrerequisiteFailed.
	FailedPrerequisite string

	// SnapshotVersion records which snapshot answered the evaluation.
	SnapshotVersion string
}
