package domain

import (
	"errors"
	"fmt"
	"strings"
)

// -----------------------------
// UnknownKeyError
// -----------------------------

// UnknownKeyError indicates an evaluation request for a key that does not
// exist in the active snapshot.
type UnknownKeyError struct {
	Key string
}

func NewUnknownKeyError(key string) *UnknownKeyError {
	return &UnknownKeyError{Key: key}
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown key: %s", e.Key)
}

func IsUnknownKey(err error) bool {
	var target *UnknownKeyError
	return errors.As(err, &target)
}

// -----------------------------
// ArchivedKeyError
// -----------------------------

// ArchivedKeyError indicates an evaluation request for an archived key.
type ArchivedKeyError struct {
	Key string
}

func NewArchivedKeyError(key string) *ArchivedKeyError {
	return &ArchivedKeyError{Key: key}
}

func (e *ArchivedKeyError) Error() string {
	return fmt.Sprintf("key is archived: %s", e.Key)
}

func IsArchivedKey(err error) bool {
	var target *ArchivedKeyError
	return errors.As(err, &target)
}

// -----------------------------
// MissingSubjectError
// -----------------------------

// MissingSubjectError indicates an evaluation context without the mandatory
// stable subject identifier.
type MissingSubjectError struct {
	Key string
}

func NewMissingSubjectError(key string) *MissingSubjectError {
	return &MissingSubjectError{Key: key}
}

func (e *MissingSubjectError) Error() string {
	return fmt.Sprintf("evaluation of %s requires a subject identifier", e.Key)
}

func IsMissingSubject(err error) bool {
	var target *MissingSubjectError
	return errors.As(err, &target)
}

// -----------------------------
// UnknownOperatorError
// -----------------------------

// UnknownOperatorError is a validation-time error for an operator outside
// the closed operator set.
type UnknownOperatorError struct {
	Owner    string // key or segment that declares the predicate
	Operator string
}

func NewUnknownOperatorError(owner, operator string) *UnknownOperatorError {
	return &UnknownOperatorError{Owner: owner, Operator: operator}
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown operator %q in %s", e.Operator, e.Owner)
}

func IsUnknownOperator(err error) bool {
	var target *UnknownOperatorError
	return errors.As(err, &target)
}

// -----------------------------
// CyclicDependencyError
// -----------------------------

// CyclicDependencyError names the full cycle found in the prerequisite or
// segment-reference graph.
type CyclicDependencyError struct {
	Cycle []string
}

func NewCyclicDependencyError(cycle []string) *CyclicDependencyError {
	return &CyclicDependencyError{Cycle: cycle}
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("cyclic dependency: %s", strings.Join(e.Cycle, " -> "))
}

func IsCyclicDependency(err error) bool {
	var target *CyclicDependencyError
	return errors.As(err, &target)
}

// -----------------------------
// DanglingPrerequisiteError
// -----------------------------

// DanglingPrerequisiteError indicates a prerequisite or segment reference to
// a nonexistent or archived target.
type DanglingPrerequisiteError struct {
	Key    string
	Target string
	Reason string // "missing" or "archived"
}

func NewDanglingPrerequisiteError(key, target, reason string) *DanglingPrerequisiteError {
	return &DanglingPrerequisiteError{Key: key, Target: target, Reason: reason}
}

func (e *DanglingPrerequisiteError) Error() string {
	return fmt.Sprintf("key %s references %s target: %s", e.Key, e.Reason, e.Target)
}

func IsDanglingPrerequisite(err error) bool {
	var target *DanglingPrerequisiteError
	return errors.As(err, &target)
}

// -----------------------------
// MalformedDistributionError
// -----------------------------

// MalformedDistributionError covers structural validation failures: shares
// not summing to the required total, empty variant sets, undeclared
// variants, kind mismatches.
type MalformedDistributionError struct {
	Key    string
	Detail string
}

func NewMalformedDistributionError(key, detail string) *MalformedDistributionError {
	return &MalformedDistributionError{Key: key, Detail: detail}
}

func (e *MalformedDistributionError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("malformed configuration: %s", e.Detail)
	}
	return fmt.Sprintf("malformed configuration for %s: %s", e.Key, e.Detail)
}

func IsMalformedDistribution(err error) bool {
	var target *MalformedDistributionError
	return errors.As(err, &target)
}

// -----------------------------
// EvaluationError
// -----------------------------

// EvaluationError wraps a failure inside rule evaluation itself, such as an
// uncompilable regex operand.
type EvaluationError struct {
	Key    string
	Reason string
	Err    error
}

func NewEvaluationError(key, reason string, err error) *EvaluationError {
	return &EvaluationError{Key: key, Reason: reason, Err: err}
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("evaluation error on key %s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("evaluation error on key %s: %s", e.Key, e.Reason)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

func IsEvaluationError(err error) bool {
	var target *EvaluationError
	return errors.As(err, &target)
}
