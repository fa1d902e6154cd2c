// Package assignment maps users into experiment variants.
//
// Bucketing is a pure function of (experimentID, userID): no locking, no
// state, same inputs always yield the same variant. Stickiness is layered
// on top by the service, which persists the first assignment and consults
// cache and store before recomputing.
package assignment

import (
	"crypto/sha256"
	"encoding/binary"

	"splitlab/internal/experiment/models"
	id "splitlab/pkg/domain"
)

// bucketCount partitions traffic into integer percent buckets.
const bucketCount = 100

// Bucket hashes `experimentID:userID` into [0,100). SHA-256 keeps the
// distribution uniform and collision-resistant across experiments; the low
// eight bytes are enough entropy for a mod-100 bucket.
func Bucket(experimentID id.ExperimentID, userID id.UserID) int {
	sum := sha256.Sum256([]byte(experimentID.String() + ":" + string(userID)))
	value := binary.BigEndian.Uint64(sum[len(sum)-8:])
	return int(value % bucketCount)
}

// Pick walks variants in stored order, accumulating traffic allocation, and
// selects the first variant whose cumulative share exceeds the bucket. When
// floating rounding leaves no variant past the bucket the last variant is
// the fallback.
func Pick(variants []models.Variant, bucket int) models.Variant {
	cumulative := 0.0
	for _, v := range variants {
		cumulative += v.TrafficAllocation
		if cumulative > float64(bucket) {
			return v
		}
	}
	return variants[len(variants)-1]
}

// Assign computes the deterministic variant for a user.
func Assign(exp *models.Experiment, userID id.UserID) models.Variant {
	return Pick(exp.Variants, Bucket(exp.ID, userID))
}
