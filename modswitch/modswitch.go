package modswitch

import (
	"fmt"
	"math/bits"

	"lukechampine.com/uint128"

	"github.com/tuneinsight/lattigo/v6/ring"

	"github.com/tuneinsight/gemini-rlwe/utils"
)

// LiftAt computes dst[j] = round(Q * x_j / 2^k) mod q_limb for x_j = src[j] mod 2^k.
// The method returns an error if limb is not a valid index of the moduli chain or if
// dst is smaller than src.
func LiftAt[T utils.Word](b *Bridge, src []T, limb int, dst []uint64) (err error) {

	if err = b.checkLimb(limb, len(src), len(dst)); err != nil {
		return fmt.Errorf("cannot LiftAt: %w", err)
	}

	q := b.moduli[limb]
	brc := b.bredConstants[limb]
	qDivPow2 := b.qDivPow2ModQi[limb]
	k := b.bitWidth

	for j := range src {
		x := utils.ToUint128(src[j]).And(b.mask)

		// floor(Q/2^k) * x mod q
		r := ring.BRed(x.Mod64(q), qDivPow2, q, brc)

		// round((Q mod 2^k) * x / 2^k) < 2^k
		frac := utils.Mul128(b.qModPow2, x).AddPow2(k - 1).Rsh128(k)

		dst[j] = ring.CRed(r+frac.Mod64(q), q)
	}

	return
}

// CenterAt maps x_j = src[j] mod 2^k, seen as a signed integer in [-2^{k-1}, 2^{k-1}),
// to dst[j] = x_j mod q_limb, without scaling.
// The method returns an error if limb is not a valid index of the moduli chain or if
// dst is smaller than src.
func CenterAt[T utils.Word](b *Bridge, src []T, limb int, dst []uint64) (err error) {

	if err = b.checkLimb(limb, len(src), len(dst)); err != nil {
		return fmt.Errorf("cannot CenterAt: %w", err)
	}

	q := b.moduli[limb]

	for j := range src {

		x := utils.ToUint128(src[j]).And(b.mask)

		if x.Cmp(b.half) >= 0 {
			// -(2^k - x) mod q
			dst[j] = ring.CRed(q-uint128.Zero.SubWrap(x).And(b.mask).Mod64(q), q)
		} else {
			dst[j] = x.Mod64(q)
		}
	}

	return
}

// LowerFromRns computes dst[j] = round(x_j * 2^k / Q) mod 2^k where x_j is the integer of
// [0, Q) whose residues are src[l*n + j] mod q_l, for n = len(dst). That is, src stores
// the n values of the first limb, followed by the n values of the second limb, and so on.
//
// The CRT reconstruction is carried in fixed-point: with y_l = x_l * (Q/q_l)^{-1} mod q_l,
// x * 2^k / Q = sum_l y_l * 2^k / q_l mod 2^k, where the fractional part of each term is
// computed with 64 bits of precision.
// The method returns an error if len(src) != L * len(dst).
func LowerFromRns[T utils.Word](b *Bridge, src []uint64, dst []T) (err error) {

	n := len(dst)
	L := len(b.moduli)

	if n == 0 {
		return fmt.Errorf("cannot LowerFromRns: empty output")
	}

	if len(src) != L*n {
		return fmt.Errorf("cannot LowerFromRns: len(src)=%d != #moduli * len(dst)=%d", len(src), L*n)
	}

	for j := 0; j < n; j++ {

		integer := uint128.Zero
		fraction := uint128.Zero

		for l, q := range b.moduli {

			brc := b.bredConstants[l]
			y := ring.BRed(ring.BRedAdd(src[l*n+j], q, brc), b.qHatInvModQi[l], q, brc)

			// y * floor(2^k/q)
			integer = integer.AddWrap(b.pow2DivQi[l].MulWrap64(y))

			// y * (2^k mod q) / q = quo + rem/q
			hi, lo := bits.Mul64(y, b.pow2ModQi[l])
			quo, rem := bits.Div64(hi, lo, q)
			integer = integer.AddWrap64(quo)

			// rem/q in 0.64 fixed-point
			frac, _ := bits.Div64(rem, 0, q)
			fraction = fraction.AddWrap64(frac)
		}

		integer = integer.AddWrap64(fraction.Hi)

		if fraction.Lo >= 1<<63 {
			integer = integer.AddWrap64(1)
		}

		dst[j] = utils.FromUint128[T](integer.And(b.mask))
	}

	return
}

func (b Bridge) checkLimb(limb, nSrc, nDst int) error {
	if limb < 0 || limb >= len(b.moduli) {
		return fmt.Errorf("limb=%d is not in [0, %d)", limb, len(b.moduli))
	}

	if nDst < nSrc {
		return fmt.Errorf("len(dst)=%d < len(src)=%d", nDst, nSrc)
	}

	return nil
}
