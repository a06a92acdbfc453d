package cache

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/banderole-io/banderole/internal/domain"
	"github.com/cespare/xxhash/v2"
)

// Fingerprint computes a canonical hash of an evaluation context: the
// subject identifier, the evaluation time, and every attribute in sorted
// name order. Attribute order in the caller's map never changes the
// fingerprint; any value change does.
//
// The evaluation time is always part of the fingerprint so a result that
// depended on it can never be served stale from cache.
func Fingerprint(evalCtx domain.EvaluationContext) uint64 {
	h := xxhash.New()

	h.WriteString(evalCtx.SubjectID)
	h.WriteString("\x00")
	h.WriteString(strconv.FormatInt(evalCtx.EvaluationTime.UnixNano(), 10))
	h.WriteString("\x00")

	names := make([]string, 0, len(evalCtx.Attributes))
	for name := range evalCtx.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		h.WriteString(name)
		h.WriteString("\x01")
		h.WriteString(fmt.Sprintf("%v", evalCtx.Attributes[name]))
		h.WriteString("\x00")
	}

	return h.Sum64()
}
