package domain

import (
	"fmt"
)

// Key represents a configuration key (a flag) with its evaluation rules.
type Key struct {
	Name        string
	Description string
	Kind        ValueKind
	Variants    []Variant
	// DefaultVariant names the variant returned when no rule matches or a
	// prerequisite is not satisfied. Must exist in Variants.
	DefaultVariant string
	Rules          []Rule
	Prerequisites  []Prerequisite
	Archived       bool
}

// Variant is one possible named value a key can resolve to.
type Variant struct {
	Name  string
	Value Value
}

// Prerequisite gates a key's rule evaluation on another key resolving to a
// required variant.
type Prerequisite struct {
	Key     string
	Variant string
}

// Rule is a predicate-guarded assignment of a distribution to matching
// contexts. Rules are evaluated in declared order; the first rule whose
// predicates all match wins.
type Rule struct {
	ID           string
	Predicates   []Predicate
	Distribution Distribution
}

// Predicate is a single attribute condition. All predicates of a rule are
// combined by logical AND.
type Predicate struct {
	Attribute string
	Operator  Operator
	// Value is the operand. Its expected shape depends on the operator:
	// a list for IN/NOT_IN, a segment name for IN_SEGMENT, a CIDR string
	// for IP_IN_RANGE, a semver string for the SEMVER_* operators.
	Value interface{}
}

// Distribution assigns the outcome of a matched rule. Either Variant is set
// (single-variant rule) or Splits is non-empty (percentage / multi-variate
// rule bucketed by Seed).
type Distribution struct {
	Variant string
	Seed    string
	Splits  []Split
}

// Split maps a variant to its percentage share of the rollout.
type Split struct {
	Variant string
	Share   int
}

// Segment is a named, reusable predicate list referenced by IN_SEGMENT
// predicates.
type Segment struct {
	Name       string
	Predicates []Predicate
}

// Operator identifies a predicate operator. The set is closed: snapshot
// validation rejects anything else as UnknownOperator.
type Operator string

const (
	OperatorEQ         Operator = "EQ"
	OperatorNEQ        Operator = "NEQ"
	OperatorIN         Operator = "IN"
	OperatorNOTIN      Operator = "NOT_IN"
	OperatorInSegment  Operator = "IN_SEGMENT"
	OperatorLT         Operator = "LT"
	OperatorLTE        Operator = "LTE"
	OperatorGT         Operator = "GT"
	OperatorGTE        Operator = "GTE"
	OperatorBefore     Operator = "BEFORE"
	OperatorAfter      Operator = "AFTER"
	OperatorMatches    Operator = "MATCHES"
	OperatorSemverEQ   Operator = "SEMVER_EQ"
	OperatorSemverLT   Operator = "SEMVER_LT"
	OperatorSemverGT   Operator = "SEMVER_GT"
	OperatorIPInRange  Operator = "IP_IN_RANGE"
)

// KnownOperator reports whether op belongs to the closed operator set.
func KnownOperator(op Operator) bool {
	switch op {
	case OperatorEQ, OperatorNEQ, OperatorIN, OperatorNOTIN, OperatorInSegment,
		OperatorLT, OperatorLTE, OperatorGT, OperatorGTE,
		OperatorBefore, OperatorAfter, OperatorMatches,
		OperatorSemverEQ, OperatorSemverLT, OperatorSemverGT, OperatorIPInRange:
		return true
	}
	return false
}

// ShareTotal is the required sum of all split shares in a distribution.
const ShareTotal = 100

// Validate checks the key's structural invariants: a declared value kind,
// unique variant names of that kind, an existing default variant, known
// predicate operators, and well-formed distributions.
func (k *Key) Validate() error {
	if k.Name == "" {
		return NewMalformedDistributionError("", "key name cannot be empty")
	}
	if !KnownKind(k.Kind) {
		return NewMalformedDistributionError(k.Name, fmt.Sprintf("unknown value kind %q", k.Kind))
	}
	if len(k.Variants) == 0 {
		return NewMalformedDistributionError(k.Name, "key has no variants")
	}

	seen := make(map[string]bool, len(k.Variants))
	for _, v := range k.Variants {
		if v.Name == "" {
			return NewMalformedDistributionError(k.Name, "variant name cannot be empty")
		}
		if seen[v.Name] {
			return NewMalformedDistributionError(k.Name, fmt.Sprintf("duplicate variant %q", v.Name))
		}
		seen[v.Name] = true

		if v.Value.Kind != k.Kind {
			return NewMalformedDistributionError(k.Name,
				fmt.Sprintf("variant %q has kind %q, key declares %q", v.Name, v.Value.Kind, k.Kind))
		}
	}

	if !seen[k.DefaultVariant] {
		return NewMalformedDistributionError(k.Name,
			fmt.Sprintf("default variant %q is not declared", k.DefaultVariant))
	}

	for i, rule := range k.Rules {
		for _, p := range rule.Predicates {
			if !KnownOperator(p.Operator) {
				return NewUnknownOperatorError(k.Name, string(p.Operator))
			}
		}
		if err := rule.Distribution.Validate(seen); err != nil {
			return NewMalformedDistributionError(k.Name, fmt.Sprintf("rule %d: %v", i, err))
		}
	}

	return nil
}

// Validate checks that the distribution names only declared variants and,
// for percentage splits, that shares sum to exactly ShareTotal.
func (d *Distribution) Validate(variants map[string]bool) error {
	if len(d.Splits) == 0 {
		if d.Variant == "" {
			return fmt.Errorf("distribution names no variant and has no splits")
		}
		if !variants[d.Variant] {
			return fmt.Errorf("distribution references unknown variant %q", d.Variant)
		}
		return nil
	}

	if d.Variant != "" {
		return fmt.Errorf("distribution cannot set both a single variant and splits")
	}

	total := 0
	for _, s := range d.Splits {
		if !variants[s.Variant] {
			return fmt.Errorf("split references unknown variant %q", s.Variant)
		}
		if s.Share < 0 {
			return fmt.Errorf("split for %q has negative share %d", s.Variant, s.Share)
		}
		total += s.Share
	}
	if total != ShareTotal {
		return fmt.Errorf("split shares sum to %d, want %d", total, ShareTotal)
	}
	return nil
}

// Validate checks the segment's predicates against the closed operator set.
func (s *Segment) Validate() error {
	if s.Name == "" {
		return NewMalformedDistributionError("", "segment name cannot be empty")
	}
	for _, p := range s.Predicates {
		if !KnownOperator(p.Operator) {
			return NewUnknownOperatorError(s.Name, string(p.Operator))
		}
	}
	return nil
}

// Variant returns the named variant, if declared.
func (k *Key) Variant(name string) (*Variant, bool) {
	for i := range k.Variants {
		if k.Variants[i].Name == name {
			return &k.Variants[i], true
		}
	}
	return nil, false
}

// Default returns the key's default variant. The second return is false only
// for keys that failed validation.
func (k *Key) Default() (*Variant, bool) {
	return k.Variant(k.DefaultVariant)
}

// VariantNames returns the declared variant names in order.
func (k *Key) VariantNames() []string {
	names := make([]string, len(k.Variants))
	for i, v := range k.Variants {
		names[i] = v.Name
	}
	return names
}
