package banderole

import (
	"errors"

	"github.com/banderole-io/banderole/internal/domain"
)

// ErrNoSnapshot is returned when evaluation is attempted before any snapshot
// has been activated.
var ErrNoSnapshot = errors.New("no active snapshot")

// Error classifiers. Each reports whether err, anywhere in its chain,
// is the named evaluation or validation failure.
var (
	// IsUnknownKey reports whether the evaluated key does not exist in the
	// active snapshot.
	IsUnknownKey = domain.IsUnknownKey

	// IsArchivedKey reports whether the evaluated key is archived.
	IsArchivedKey = domain.IsArchivedKey

	// IsMissingSubject reports whether the evaluation context carried no
	// subject identifier.
	IsMissingSubject = domain.IsMissingSubject

	// IsUnknownOperator reports whether a predicate uses an operator outside
	// the supported set.
	IsUnknownOperator = domain.IsUnknownOperator

	// IsCyclicDependency reports whether prerequisites or segments form a
	// reference cycle.
	IsCyclicDependency = domain.IsCyclicDependency

	// IsDanglingPrerequisite reports whether a prerequisite targets a missing
	// or archived key, or an undeclared variant.
	IsDanglingPrerequisite = domain.IsDanglingPrerequisite

	// IsMalformedDistribution reports whether a rule's percentage splits do
	// not sum to 100 or name undeclared variants.
	IsMalformedDistribution = domain.IsMalformedDistribution
)
