package utils

import (
	"math/bits"

	"golang.org/x/exp/constraints"
)

// Min returns the minimum between a and b.
func Min[V constraints.Ordered](a, b V) V {
	if a <= b {
		return a
	}
	return b
}

// Max returns the maximum between a and b.
func Max[V constraints.Ordered](a, b V) V {
	if a >= b {
		return a
	}
	return b
}

// IsPow2 returns true if x is a power of two.
func IsPow2[V constraints.Unsigned](x V) bool {
	return x != 0 && x&(x-1) == 0
}

// BitCeil returns the smallest power of two greater than or equal to x.
// BitCeil(0) = 1.
func BitCeil(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	return 1 << bits.Len64(x-1)
}

// BitFloor returns the largest power of two smaller than or equal to x.
// BitFloor(0) = 0.
func BitFloor(x uint64) uint64 {
	if x == 0 {
		return 0
	}
	return 1 << (bits.Len64(x) - 1)
}

// CeilDiv returns ceil(a/b) for positive integers.
func CeilDiv[V constraints.Integer](a, b V) V {
	return (a + b - 1) / b
}
