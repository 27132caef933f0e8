// Package encoding implements the encoding of vectors of Z_{2^k} into
// plaintext polynomials of Z_Q[X]/(X^N+1).
//
// Two layouts are provided. The forward layout maps v to sum_i v_i X^i and
// the backward layout maps v to v_0 - sum_{i>0} v_i X^{N-i}. The constant
// coefficient of the product of the forward encoding of a by the backward
// encoding of b is the inner product <a, b>.
package encoding

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/tuneinsight/gemini-rlwe/modswitch"
	"github.com/tuneinsight/gemini-rlwe/utils"
)

// Encoder encodes vectors of Z_{2^k}, stored on words of type T, into [rlwe.Plaintext].
// Values are either scaled by Q/2^k (see [modswitch.LiftAt]) or embedded as signed
// integers (see [modswitch.CenterAt]).
type Encoder[T utils.Word] struct {
	params rlwe.Parameters
	bridge *modswitch.Bridge
	buff   []T
}

// NewEncoder creates a new [Encoder] from the target parameters and a [modswitch.Bridge].
// The method returns an error if the bridge does not match params or if T cannot store
// values of the bridge bit-width.
func NewEncoder[T utils.Word](params rlwe.Parameters, bridge *modswitch.Bridge) (*Encoder[T], error) {

	if err := bridge.CheckParameters(params); err != nil {
		return nil, fmt.Errorf("cannot NewEncoder: %w", err)
	}

	if bridge.BitWidth() > utils.BitSize[T]() {
		return nil, fmt.Errorf("cannot NewEncoder: bit-width %d does not fit on a %d-bit word", bridge.BitWidth(), utils.BitSize[T]())
	}

	return &Encoder[T]{
		params: params,
		bridge: bridge,
		buff:   make([]T, params.N()),
	}, nil
}

// ShallowCopy creates a shallow copy of [Encoder] in which all the read-only data-structures are
// shared with the receiver and the temporary buffers are reallocated. The receiver and the returned
// [Encoder] can be used concurrently.
func (ecd Encoder[T]) ShallowCopy() *Encoder[T] {
	return &Encoder[T]{
		params: ecd.params,
		bridge: ecd.bridge,
		buff:   make([]T, ecd.params.N()),
	}
}

// Bridge returns the [modswitch.Bridge] of the encoder.
func (ecd Encoder[T]) Bridge() *modswitch.Bridge {
	return ecd.bridge
}

// Parameters returns the parameters of the encoder.
func (ecd Encoder[T]) Parameters() rlwe.Parameters {
	return ecd.params
}

// Forward encodes vec on the coefficients of pt: coefficient i is vec[i] scaled by Q/2^k
// if scale is true, else vec[i] as a signed integer. The remaining coefficients are set to zero.
// The output plaintext is in the coefficient domain.
// The method returns an error if len(vec) is not in [1, N] or if pt is not at the level of the bridge.
func (ecd Encoder[T]) Forward(vec []T, scale bool, pt *rlwe.Plaintext) (err error) {

	if err = ecd.check(len(vec), pt); err != nil {
		return fmt.Errorf("cannot Forward: %w", err)
	}

	if err = ecd.encode(vec, scale, pt); err != nil {
		return fmt.Errorf("cannot Forward: %w", err)
	}

	return
}

// ForwardNew encodes vec on a newly allocated [rlwe.Plaintext], see [Encoder.Forward].
func (ecd Encoder[T]) ForwardNew(vec []T, scale bool) (pt *rlwe.Plaintext, err error) {
	pt = rlwe.NewPlaintext(ecd.params, ecd.bridge.Level())
	return pt, ecd.Forward(vec, scale, pt)
}

// Backward encodes vec on the coefficients of pt in the negacyclic layout: coefficient 0 is vec[0]
// and coefficient N-i is -vec[i] mod 2^k for i > 0, each scaled by Q/2^k if scale is true, else
// taken as signed integers. The remaining coefficients are set to zero.
// The output plaintext is in the coefficient domain.
// The method returns an error if len(vec) is not in [1, N] or if pt is not at the level of the bridge.
func (ecd Encoder[T]) Backward(vec []T, scale bool, pt *rlwe.Plaintext) (err error) {

	if err = ecd.check(len(vec), pt); err != nil {
		return fmt.Errorf("cannot Backward: %w", err)
	}

	N := ecd.params.N()
	k := ecd.bridge.BitWidth()

	buff := ecd.buff
	defer utils.Zeroize(buff)

	utils.Zeroize(buff)

	buff[0] = vec[0]
	for i := 1; i < len(vec); i++ {
		buff[N-i] = utils.NegMod(vec[i], k)
	}

	if err = ecd.encode(buff, scale, pt); err != nil {
		return fmt.Errorf("cannot Backward: %w", err)
	}

	return
}

// BackwardNew encodes vec on a newly allocated [rlwe.Plaintext], see [Encoder.Backward].
func (ecd Encoder[T]) BackwardNew(vec []T, scale bool) (pt *rlwe.Plaintext, err error) {
	pt = rlwe.NewPlaintext(ecd.params, ecd.bridge.Level())
	return pt, ecd.Backward(vec, scale, pt)
}

func (ecd Encoder[T]) check(n int, pt *rlwe.Plaintext) error {

	if n == 0 || n > ecd.params.N() {
		return fmt.Errorf("vector length %d is not in [1, %d]", n, ecd.params.N())
	}

	if pt == nil {
		return fmt.Errorf("plaintext is nil")
	}

	if pt.Level() != ecd.bridge.Level() {
		return fmt.Errorf("plaintext level %d != bridge level %d", pt.Level(), ecd.bridge.Level())
	}

	return nil
}

func (ecd Encoder[T]) encode(values []T, scale bool, pt *rlwe.Plaintext) (err error) {

	n := len(values)

	for l, coeffs := range pt.Value.Coeffs {

		if scale {
			err = modswitch.LiftAt(ecd.bridge, values, l, coeffs[:n])
		} else {
			err = modswitch.CenterAt(ecd.bridge, values, l, coeffs[:n])
		}

		if err != nil {
			return
		}

		for i := n; i < len(coeffs); i++ {
			coeffs[i] = 0
		}
	}

	if pt.MetaData == nil {
		pt.MetaData = &rlwe.MetaData{}
	}

	pt.IsNTT = false
	pt.IsMontgomery = false

	return
}
