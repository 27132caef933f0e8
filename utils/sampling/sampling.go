// Package sampling implements secure sampling of bytes and integers.
package sampling

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"lukechampine.com/uint128"

	"github.com/tuneinsight/gemini-rlwe/utils"
)

// RejectionBound returns the largest multiple of q that is smaller than or
// equal to 2^64-1. A uniform 64-bit sample r is accepted iff r < RejectionBound(q),
// in which case r mod q is uniform in [0, q).
func RejectionBound(q uint64) uint64 {
	return math.MaxUint64 - math.MaxUint64%q
}

// ReadUint64 reads a little-endian uint64 from prng.
func ReadUint64(prng PRNG) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(prng, buf[:]); err != nil {
		return 0, fmt.Errorf("cannot ReadUint64: %w", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// UniformMod writes in out values uniformly distributed in [0, q).
// Samples are drawn 64 bits at a time from prng and rejected if they are
// not smaller than [RejectionBound](q).
func UniformMod(prng PRNG, q uint64, out []uint64) (err error) {

	if q == 0 {
		return fmt.Errorf("cannot UniformMod: modulus is zero")
	}

	bound := RejectionBound(q)

	buf := make([]byte, 8*len(out))
	if _, err = io.ReadFull(prng, buf); err != nil {
		return fmt.Errorf("cannot UniformMod: %w", err)
	}

	for i := range out {
		r := binary.LittleEndian.Uint64(buf[8*i:])
		for r >= bound {
			if r, err = ReadUint64(prng); err != nil {
				return fmt.Errorf("cannot UniformMod: %w", err)
			}
		}
		out[i] = r % q
	}

	utils.Zeroize(buf)

	return
}

// RandomWords fills out with uniform values in [0, 2^bitWidth).
func RandomWords[T utils.Word](prng PRNG, bitWidth int, out []T) (err error) {

	if bitWidth < 1 || bitWidth > utils.BitSize[T]() {
		return fmt.Errorf("cannot RandomWords: invalid bit-width %d for %d-bit words", bitWidth, utils.BitSize[T]())
	}

	mask := utils.Mask128(bitWidth)

	buf := make([]byte, 16*len(out))
	if _, err = io.ReadFull(prng, buf); err != nil {
		return fmt.Errorf("cannot RandomWords: %w", err)
	}

	for i := range out {
		x := uint128.FromBytes(buf[16*i : 16*(i+1)])
		out[i] = utils.FromUint128[T](x.And(mask))
	}

	utils.Zeroize(buf)

	return
}
