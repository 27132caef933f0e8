package utils

import (
	"fmt"

	"lukechampine.com/uint128"
)

// Word is the set of unsigned integer types that can carry an arithmetic
// share of Z_{2^k}. A share of bit-width k must be stored on a [Word] of at
// least k bits.
type Word interface {
	uint32 | uint64 | uint128.Uint128
}

// BitSize returns the size in bits of the [Word] type T.
func BitSize[T Word]() int {
	var x T
	switch any(x).(type) {
	case uint32:
		return 32
	case uint64:
		return 64
	default:
		return 128
	}
}

// ToUint128 widens x to a [uint128.Uint128].
func ToUint128[T Word](x T) uint128.Uint128 {
	switch v := any(x).(type) {
	case uint32:
		return uint128.From64(uint64(v))
	case uint64:
		return uint128.From64(v)
	case uint128.Uint128:
		return v
	default:
		// Sanity check, this error should not happen.
		panic(fmt.Errorf("invalid word type %T", x))
	}
}

// FromUint128 narrows x to T, discarding the bits that do not fit.
func FromUint128[T Word](x uint128.Uint128) (y T) {
	switch p := any(&y).(type) {
	case *uint32:
		*p = uint32(x.Lo)
	case *uint64:
		*p = x.Lo
	case *uint128.Uint128:
		*p = x
	}
	return
}

// Mask128 returns 2^bitWidth - 1.
func Mask128(bitWidth int) uint128.Uint128 {
	if bitWidth <= 0 {
		return uint128.Zero
	}
	return uint128.Max.Rsh(uint(128 - Min(bitWidth, 128)))
}

// MaskWord returns 2^bitWidth - 1 as a T.
func MaskWord[T Word](bitWidth int) T {
	return FromUint128[T](Mask128(bitWidth))
}

// IsZeroWord returns true if x is zero.
func IsZeroWord[T Word](x T) bool {
	return ToUint128(x).IsZero()
}

// AddMod returns a + b mod 2^bitWidth.
func AddMod[T Word](a, b T, bitWidth int) T {
	return FromUint128[T](ToUint128(a).AddWrap(ToUint128(b)).And(Mask128(bitWidth)))
}

// SubMod returns a - b mod 2^bitWidth.
func SubMod[T Word](a, b T, bitWidth int) T {
	return FromUint128[T](ToUint128(a).SubWrap(ToUint128(b)).And(Mask128(bitWidth)))
}

// MulMod returns a * b mod 2^bitWidth.
func MulMod[T Word](a, b T, bitWidth int) T {
	return FromUint128[T](ToUint128(a).MulWrap(ToUint128(b)).And(Mask128(bitWidth)))
}

// NegMod returns -a mod 2^bitWidth.
func NegMod[T Word](a T, bitWidth int) T {
	return FromUint128[T](uint128.Zero.SubWrap(ToUint128(a)).And(Mask128(bitWidth)))
}

// DotMod returns sum_i a[i]*b[i] mod 2^bitWidth.
// The inputs must have the same length.
func DotMod[T Word](a, b []T, bitWidth int) T {
	acc := uint128.Zero
	for i := range a {
		acc = acc.AddWrap(ToUint128(a[i]).MulWrap(ToUint128(b[i])))
	}
	return FromUint128[T](acc.And(Mask128(bitWidth)))
}

// Zeroize sets all the elements of s to zero.
func Zeroize[T any](s []T) {
	var zero T
	for i := range s {
		s[i] = zero
	}
}
