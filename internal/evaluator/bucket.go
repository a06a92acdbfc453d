package evaluator

import (
	"github.com/cespare/xxhash/v2"
)

// BucketCount is the size of the bucketing space. Percentage shares sum to
// 100, so each share point covers BucketCount/100 buckets.
const BucketCount = 10000

// bucketHashVersion is folded into the hash input. Changing the hash
// algorithm is a breaking change and requires bumping this version so old
// and new assignments are never silently mixed.
const bucketHashVersion = "v1"

// Bucket deterministically assigns a subject to a bucket in [0, BucketCount)
// for one key and distribution seed. The assignment is a pure function of
// its inputs: stable across process restarts and across implementations, so
// percentage rollouts behave identically wherever they are evaluated.
func Bucket(key, subjectID, seed string) int {
	h := xxhash.Sum64String(bucketHashVersion + "/" + key + "/" + subjectID + "/" + seed)
	return int(h % BucketCount)
}
