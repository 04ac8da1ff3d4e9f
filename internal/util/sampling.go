package util

import (
	"hash/fnv"
	"math/rand"
)

// ShouldSample makes a straight random decision at the given rate (0..1).
func ShouldSample(rate float64) bool {
	if rate >= 1 {
		return true
	}
	if rate <= 0 {
		return false
	}
	return rand.Float64() < rate
}

// ConsistentSample deterministically samples a stable identifier: the same
// userID always returns the same boolean at a fixed rate, via a mod-100
// hash of the id rather than a random draw.
func ConsistentSample(userID string, rate float64) bool {
	if rate >= 1 {
		return true
	}
	if rate <= 0 {
		return false
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	bucket := h.Sum32() % 100
	return bucket < uint32(rate*100)
}
