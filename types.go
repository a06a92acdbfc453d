package banderole

import (
	"encoding/json"
	"time"

	"github.com/banderole-io/banderole/internal/domain"
)

// Context holds the subject and attributes a key is evaluated against.
type Context struct {
	// SubjectID is the unique identifier for the subject being evaluated
	// (e.g., user ID, account ID, device ID)
	SubjectID string

	// EvaluationTime is the instant used by time-based predicates and the
	// reserved $time attribute. Zero means no evaluation time was supplied.
	EvaluationTime time.Time

	// Attributes contains additional context for predicate evaluation
	// (e.g., country, tier, app version)
	Attributes map[string]any
}

// NewContext creates a new evaluation context with the given subject ID.
func NewContext(subjectID string) Context {
	return Context{
		SubjectID:  subjectID,
		Attributes: make(map[string]any),
	}
}

// WithAttribute adds an attribute to the context (fluent interface).
func (c Context) WithAttribute(name string, value any) Context {
	if c.Attributes == nil {
		c.Attributes = make(map[string]any)
	}
	c.Attributes[name] = value
	return c
}

// WithEvaluationTime sets the evaluation time (fluent interface).
func (c Context) WithEvaluationTime(t time.Time) Context {
	c.EvaluationTime = t
	return c
}

// AttrEvaluationTime is the reserved attribute name that resolves to the
// context's evaluation time.
const AttrEvaluationTime = domain.AttrEvaluationTime

// Value is the typed payload a variant carries.
type Value = domain.Value

// ValueKind names the declared type of a key's values.
type ValueKind = domain.ValueKind

// Declared value kinds.
const (
	KindBoolean    = domain.KindBoolean
	KindString     = domain.KindString
	KindNumber     = domain.KindNumber
	KindStructured = domain.KindStructured
)

// Evaluation reasons carried by Result.Reason.
const (
	// ReasonRuleMatch means a targeting rule matched and selected the variant.
	ReasonRuleMatch = string(domain.ReasonRuleMatch)

	// ReasonDefault means no rule matched and the default variant was used.
	ReasonDefault = string(domain.ReasonDefault)

	// ReasonPrerequisiteFailed means a prerequisite did not resolve to its
	// required variant, forcing the default variant.
	ReasonPrerequisiteFailed = string(domain.ReasonPrerequisiteFailed)
)

// Result represents the result of a key evaluation.
type Result struct {
	// Key is the name of the evaluated key
	Key string

	// Variant is the name of the selected variant
	Variant string

	// Value is the selected variant's payload
	Value Value

	// Reason explains why this variant was selected
	Reason string

	// RuleID identifies the matched rule when Reason is rule_match
	RuleID string

	// FailedPrerequisite names the prerequisite key that did not resolve to
	// its required variant, when Reason is prerequisite_failed
	FailedPrerequisite string

	// SnapshotVersion is the version of the snapshot that produced this result
	SnapshotVersion string
}

// Bool returns the result's boolean payload, or the default value when the
// key's declared kind is not boolean.
func (r *Result) Bool(defaultVal bool) bool {
	if r.Value.Kind != KindBoolean {
		return defaultVal
	}
	return r.Value.Bool
}

// String returns the result's string payload, or the default value when the
// key's declared kind is not string.
func (r *Result) String(defaultVal string) string {
	if r.Value.Kind != KindString {
		return defaultVal
	}
	return r.Value.Str
}

// Int returns the result's numeric payload truncated to an int, or the
// default value when the key's declared kind is not number.
func (r *Result) Int(defaultVal int) int {
	if r.Value.Kind != KindNumber {
		return defaultVal
	}
	return int(r.Value.Number)
}

// Float returns the result's numeric payload, or the default value when the
// key's declared kind is not number.
func (r *Result) Float(defaultVal float64) float64 {
	if r.Value.Kind != KindNumber {
		return defaultVal
	}
	return r.Value.Number
}

// Structured decodes the result's structured payload into out.
func (r *Result) Structured(out any) error {
	if r.Value.Kind != KindStructured {
		return domain.NewEvaluationError(r.Key, "value is not structured", nil)
	}
	return json.Unmarshal(r.Value.Doc, out)
}

// CacheMetrics represents evaluation cache performance metrics.
type CacheMetrics struct {
	// Hits is the total number of cache hits
	Hits uint64

	// Misses is the total number of cache misses
	Misses uint64

	// Ratio is the cache hit ratio (0.0 to 1.0)
	Ratio float64
}
