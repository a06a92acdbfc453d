package evaluator

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/banderole-io/banderole/internal/domain"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"golang.org/x/mod/semver"
)

// matchPredicate evaluates a single predicate against the context. A missing
// attribute never matches; an operand of the wrong shape is an error.
func (e *Evaluator) matchPredicate(snap *domain.Snapshot, p domain.Predicate, evalCtx domain.EvaluationContext) (bool, error) {
	// Segment membership resolves against the snapshot, not an attribute.
	if p.Operator == domain.OperatorInSegment {
		return e.matchSegment(snap, p, evalCtx)
	}

	value, ok := evalCtx.Attribute(p.Attribute)
	if !ok {
		return false, nil
	}

	switch p.Operator {
	case domain.OperatorEQ:
		return looseEquals(value, p.Value), nil

	case domain.OperatorNEQ:
		return !looseEquals(value, p.Value), nil

	case domain.OperatorIN:
		return valueIn(value, p.Value), nil

	case domain.OperatorNOTIN:
		return !valueIn(value, p.Value), nil

	case domain.OperatorLT, domain.OperatorLTE, domain.OperatorGT, domain.OperatorGTE:
		return compareNumbers(value, p.Value, p.Operator)

	case domain.OperatorBefore, domain.OperatorAfter:
		return compareTimes(value, p.Value, p.Operator)

	case domain.OperatorMatches:
		return e.matchRegex(value, p.Value)

	case domain.OperatorSemverEQ, domain.OperatorSemverLT, domain.OperatorSemverGT:
		return compareSemver(value, p.Value, p.Operator)

	case domain.OperatorIPInRange:
		return matchIPRange(value, p.Value)

	default:
		return false, domain.NewUnknownOperatorError(p.Attribute, string(p.Operator))
	}
}

// matchSegment checks segment membership: all of the segment's predicates
// must match. Segment cycles are rejected at validation time, so recursion
// here terminates.
func (e *Evaluator) matchSegment(snap *domain.Snapshot, p domain.Predicate, evalCtx domain.EvaluationContext) (bool, error) {
	name, ok := p.Value.(string)
	if !ok {
		return false, fmt.Errorf("IN_SEGMENT operand must be a segment name, got %T", p.Value)
	}

	segment, ok := snap.Segment(name)
	if !ok {
		return false, fmt.Errorf("segment %q not found", name)
	}

	for _, sp := range segment.Predicates {
		matched, err := e.matchPredicate(snap, sp, evalCtx)
		if err != nil {
			return false, fmt.Errorf("segment %q: %w", name, err)
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// matchRegex evaluates a MATCHES predicate. Patterns are compiled through
// the expression engine once and reused from the program cache.
func (e *Evaluator) matchRegex(value, pattern interface{}) (bool, error) {
	str, ok := value.(string)
	if !ok {
		return false, nil
	}

	patternStr, ok := pattern.(string)
	if !ok {
		return false, fmt.Errorf("MATCHES operand must be a string pattern, got %T", pattern)
	}

	program, err := e.regexProgram(patternStr)
	if err != nil {
		return false, err
	}

	result, err := expr.Run(program, map[string]interface{}{"value": str})
	if err != nil {
		return false, fmt.Errorf("regex evaluation failed: %w", err)
	}

	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("regex evaluation returned non-boolean: %T", result)
	}
	return matched, nil
}

// regexProgram returns the compiled program for a pattern, compiling and
// caching it on first use. Safe for concurrent evaluations.
func (e *Evaluator) regexProgram(pattern string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[pattern]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	exprStr := fmt.Sprintf("value matches %q", pattern)
	program, err := expr.Compile(exprStr, expr.Env(map[string]interface{}{"value": ""}))
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern %q: %w", pattern, err)
	}

	e.mu.Lock()
	e.programs[pattern] = program
	e.mu.Unlock()
	return program, nil
}

// looseEquals compares values by their string rendering, so "1" and 1 are
// considered equal for targeting purposes.
func looseEquals(a, b interface{}) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// valueIn checks list membership.
func valueIn(value, list interface{}) bool {
	switch items := list.(type) {
	case []interface{}:
		for _, item := range items {
			if looseEquals(value, item) {
				return true
			}
		}
	case []string:
		for _, item := range items {
			if looseEquals(value, item) {
				return true
			}
		}
	}
	return false
}

func compareNumbers(value, operand interface{}, op domain.Operator) (bool, error) {
	a, aOK := toFloat64(value)
	b, bOK := toFloat64(operand)
	if !aOK || !bOK {
		return false, nil
	}

	switch op {
	case domain.OperatorLT:
		return a < b, nil
	case domain.OperatorLTE:
		return a <= b, nil
	case domain.OperatorGT:
		return a > b, nil
	case domain.OperatorGTE:
		return a >= b, nil
	}
	return false, fmt.Errorf("not a numeric operator: %s", op)
}

func compareTimes(value, operand interface{}, op domain.Operator) (bool, error) {
	a, ok := toTime(value)
	if !ok {
		return false, nil
	}
	b, ok := toTime(operand)
	if !ok {
		return false, fmt.Errorf("date operand must be RFC3339 or time.Time, got %T", operand)
	}

	switch op {
	case domain.OperatorBefore:
		return a.Before(b), nil
	case domain.OperatorAfter:
		return a.After(b), nil
	}
	return false, fmt.Errorf("not a date operator: %s", op)
}

func compareSemver(value, operand interface{}, op domain.Operator) (bool, error) {
	a, ok := value.(string)
	if !ok {
		return false, nil
	}
	b, ok := operand.(string)
	if !ok {
		return false, fmt.Errorf("semver operand must be a string, got %T", operand)
	}

	av, bv := canonicalSemver(a), canonicalSemver(b)
	if !semver.IsValid(av) {
		return false, nil
	}
	if !semver.IsValid(bv) {
		return false, fmt.Errorf("semver operand %q is not a valid version", b)
	}

	cmp := semver.Compare(av, bv)
	switch op {
	case domain.OperatorSemverEQ:
		return cmp == 0, nil
	case domain.OperatorSemverLT:
		return cmp < 0, nil
	case domain.OperatorSemverGT:
		return cmp > 0, nil
	}
	return false, fmt.Errorf("not a semver operator: %s", op)
}

// canonicalSemver adds the "v" prefix x/mod/semver requires.
func canonicalSemver(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func matchIPRange(value, operand interface{}) (bool, error) {
	addrStr, ok := value.(string)
	if !ok {
		return false, nil
	}
	cidr, ok := operand.(string)
	if !ok {
		return false, fmt.Errorf("IP_IN_RANGE operand must be a CIDR string, got %T", operand)
	}

	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return false, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}

	addr, err := netip.ParseAddr(addrStr)
	if err != nil {
		return false, nil
	}
	return prefix.Contains(addr), nil
}

func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func toTime(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		t, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}
