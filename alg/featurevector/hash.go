package featurevector

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// Hash maps a feature or header string to a non-negative integer; callers
// mask it into their space.
func Hash(s string) int {
	return int(xxhash.Sum64String(s) & math.MaxInt32)
}

func IsPowerOfTwo(d int) bool {
	return d > 0 && d&(d-1) == 0
}
