package lwe

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"

	"github.com/tuneinsight/gemini-rlwe/utils"
)

// Extract writes on out the LWE ciphertext encrypting the coefficient at the given
// index of the plaintext of ct. The output is at the level of ct.
//
// With ct = (c0, c1), for each level l: b = c0[index], a_j = c1[index-j] for j <= index
// and a_j = -c1[N+index-j] for j > index, such that b + <a, s> = c0[index] + (c1*s)[index].
//
// The method returns an error if ct is in the NTT domain, is not of degree one, or if
// index is not in [0, N).
func Extract(params rlwe.Parameters, ct *rlwe.Ciphertext, index int, out *Ciphertext) (err error) {

	N := params.N()

	if err = checkRLWE(ct, N); err != nil {
		return fmt.Errorf("cannot Extract: %w", err)
	}

	if index < 0 || index >= N {
		return fmt.Errorf("cannot Extract: index=%d is not in [0, %d)", index, N)
	}

	if out == nil {
		return fmt.Errorf("cannot Extract: output is nil")
	}

	level := ct.Level()

	if out.N() != N || out.Level() != level {
		*out = *NewCiphertext(params, level)
	}

	out.Moduli = append(out.Moduli[:0], params.Q()[:level+1]...)
	out.subRings = params.RingQ().SubRings[:level+1]
	out.lazy = 0

	for l, q := range out.Moduli {

		v := out.Value[l]
		c0 := ct.Value[0].Coeffs[l]
		c1 := ct.Value[1].Coeffs[l]

		v[0] = c0[index]

		a := v[1:]
		for j := 0; j <= index; j++ {
			a[j] = c1[index-j]
		}

		for j := index + 1; j < N; j++ {
			a[j] = ring.CRed(q-c1[N+index-j], q)
		}
	}

	return
}

// ExtractNew extracts the LWE ciphertext at the given index of ct on a newly allocated [Ciphertext].
// See [Extract].
func ExtractNew(params rlwe.Parameters, ct *rlwe.Ciphertext, index int) (out *Ciphertext, err error) {
	out = new(Ciphertext)
	return out, Extract(params, ct, index, out)
}

// RemoveCoefficients sets to zero the coefficients of c0 at the given indices, such
// that ct no longer decrypts to its plaintext at those positions.
// Duplicated indices are ignored.
// The method returns an error if ct is in the NTT domain, is not of degree one, if an index
// is not in [0, N) or if all N coefficients would be removed.
func RemoveCoefficients(params rlwe.Parameters, ct *rlwe.Ciphertext, indices []int) (err error) {

	N := params.N()

	if err = checkRLWE(ct, N); err != nil {
		return fmt.Errorf("cannot RemoveCoefficients: %w", err)
	}

	set, err := indexSet(indices, N)
	if err != nil {
		return fmt.Errorf("cannot RemoveCoefficients: %w", err)
	}

	if len(set) >= N {
		return fmt.Errorf("cannot RemoveCoefficients: cannot remove all %d coefficients", N)
	}

	sorted := utils.GetSortedKeys(set)

	for _, c0 := range ct.Value[0].Coeffs[:ct.Level()+1] {
		for _, idx := range sorted {
			c0[idx] = 0
		}
	}

	return
}

// KeepCoefficients sets to zero the coefficients of c0 at all the indices that are
// not given, see [RemoveCoefficients].
// The method returns an error if ct is in the NTT domain, is not of degree one, if an index
// is not in [0, N) or if no index is given.
func KeepCoefficients(params rlwe.Parameters, ct *rlwe.Ciphertext, indices []int) (err error) {

	N := params.N()

	if err = checkRLWE(ct, N); err != nil {
		return fmt.Errorf("cannot KeepCoefficients: %w", err)
	}

	keep, err := indexSet(indices, N)
	if err != nil {
		return fmt.Errorf("cannot KeepCoefficients: %w", err)
	}

	if len(keep) == N {
		return
	}

	return RemoveCoefficients(params, ct, utils.Complement(keep, N))
}

func indexSet(indices []int, N int) (set map[int]bool, err error) {
	set = make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= N {
			return nil, fmt.Errorf("index=%d is not in [0, %d)", idx, N)
		}
		set[idx] = true
	}
	return
}
