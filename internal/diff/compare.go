package diff

import (
	"reflect"

	"github.com/banderole-io/banderole/internal/domain"
)

// keysEqual reports structural equality of two key definitions. Rule
// comparison is positional: a rule moved to a different index counts as a
// change even with identical content, because position changes evaluation
// order and therefore behavior.
func keysEqual(a, b *domain.Key) bool {
	if a.Name != b.Name ||
		a.Description != b.Description ||
		a.Kind != b.Kind ||
		a.DefaultVariant != b.DefaultVariant ||
		a.Archived != b.Archived {
		return false
	}

	if len(a.Variants) != len(b.Variants) {
		return false
	}
	for i := range a.Variants {
		if a.Variants[i].Name != b.Variants[i].Name ||
			!a.Variants[i].Value.Equal(b.Variants[i].Value) {
			return false
		}
	}

	if len(a.Rules) != len(b.Rules) {
		return false
	}
	for i := range a.Rules {
		if !rulesEqual(&a.Rules[i], &b.Rules[i]) {
			return false
		}
	}

	if len(a.Prerequisites) != len(b.Prerequisites) {
		return false
	}
	for i := range a.Prerequisites {
		if a.Prerequisites[i] != b.Prerequisites[i] {
			return false
		}
	}

	return true
}

func rulesEqual(a, b *domain.Rule) bool {
	if a.ID != b.ID {
		return false
	}
	if !predicatesEqual(a.Predicates, b.Predicates) {
		return false
	}
	return distributionsEqual(&a.Distribution, &b.Distribution)
}

func predicatesEqual(a, b []domain.Predicate) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Attribute != b[i].Attribute || a[i].Operator != b[i].Operator {
			return false
		}
		// Operands come from decoded documents and may hold lists or maps.
		if !reflect.DeepEqual(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

func distributionsEqual(a, b *domain.Distribution) bool {
	if a.Variant != b.Variant || a.Seed != b.Seed {
		return false
	}
	if len(a.Splits) != len(b.Splits) {
		return false
	}
	for i := range a.Splits {
		if a.Splits[i] != b.Splits[i] {
			return false
		}
	}
	return true
}

func segmentsEqual(a, b *domain.Segment) bool {
	return a.Name == b.Name && predicatesEqual(a.Predicates, b.Predicates)
}
