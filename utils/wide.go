package utils

import (
	"math/bits"

	"lukechampine.com/uint128"
)

// Uint256 is a little-endian 256-bit unsigned integer, used to hold the
// full product of two [uint128.Uint128].
type Uint256 [4]uint64

// Mul128 returns the 256-bit product a*b.
func Mul128(a, b uint128.Uint128) (r Uint256) {

	var c, hi, lo uint64

	// a.Lo * b
	hi, r[0] = bits.Mul64(a.Lo, b.Lo)
	r[1] = hi
	hi, lo = bits.Mul64(a.Lo, b.Hi)
	r[1], c = bits.Add64(r[1], lo, 0)
	r[2], _ = bits.Add64(hi, 0, c)

	// a.Hi * b, shifted by 64
	hi, lo = bits.Mul64(a.Hi, b.Lo)
	r[1], c = bits.Add64(r[1], lo, 0)
	r[2], c = bits.Add64(r[2], hi, c)
	r[3], _ = bits.Add64(r[3], 0, c)

	hi, lo = bits.Mul64(a.Hi, b.Hi)
	r[2], c = bits.Add64(r[2], lo, 0)
	r[3], _ = bits.Add64(r[3], hi, c)

	return
}

// AddPow2 returns x + 2^k for 0 <= k < 256, discarding the final carry.
func (x Uint256) AddPow2(k int) (r Uint256) {
	r = x
	i := k >> 6
	var c uint64
	r[i], c = bits.Add64(r[i], 1<<(k&63), 0)
	for j := i + 1; j < 4; j++ {
		r[j], c = bits.Add64(r[j], 0, c)
	}
	return
}

// Rsh128 returns the 128 bits of x starting at bit k, that is
// floor(x / 2^k) mod 2^128, for 0 <= k <= 128.
func (x Uint256) Rsh128(k int) uint128.Uint128 {
	i, s := k>>6, uint(k&63)

	word := func(j int) uint64 {
		if j < 4 {
			return x[j]
		}
		return 0
	}

	if s == 0 {
		return uint128.New(word(i), word(i+1))
	}

	lo := word(i)>>s | word(i+1)<<(64-s)
	hi := word(i+1)>>s | word(i+2)<<(64-s)
	return uint128.New(lo, hi)
}
