// Package lwe implements LWE ciphertexts extracted from the coefficients of RLWE
// ciphertexts, along with their decryption, arithmetic and serialization.
//
// An LWE ciphertext of dimension N at level L stores, for each modulus q_l of the
// chain, the vector [b, a_0, ..., a_{N-1}] such that b + <a, s> = m + e mod q_l,
// where s is the coefficient representation of the RLWE secret.
package lwe

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/google/go-cmp/cmp"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"
	"github.com/tuneinsight/lattigo/v6/utils/buffer"
	"github.com/tuneinsight/lattigo/v6/utils/structs"
)

// subRingDegree is the smallest degree accepted by [ring.NewSubRing].
const subRingDegree = 16

// Ciphertext is an LWE ciphertext in RNS representation.
type Ciphertext struct {
	// Value[l] = [b, a_0, ..., a_{N-1}] mod Moduli[l].
	Value [][]uint64

	// Moduli is the chain of moduli of the ciphertext, one per level.
	Moduli []uint64

	// all values are bounded by (lazy+1) * Moduli[l]
	lazy uint64

	// subRings[l] carries the reduction constants of Moduli[l]
	subRings []*ring.SubRing
}

// NewCiphertext allocates a new [Ciphertext] of dimension N at the given level of params.
func NewCiphertext(params rlwe.Parameters, level int) (ct *Ciphertext) {

	if level < 0 || level > params.MaxLevel() {
		// Sanity check, this error should not happen.
		panic(fmt.Errorf("level=%d is not in [0, %d]", level, params.MaxLevel()))
	}

	ct = &Ciphertext{
		Value:    make([][]uint64, level+1),
		Moduli:   append([]uint64{}, params.Q()[:level+1]...),
		subRings: params.RingQ().SubRings[:level+1],
	}

	for i := range ct.Value {
		ct.Value[i] = make([]uint64, params.N()+1)
	}

	return
}

// N returns the dimension of the ciphertext.
func (ct Ciphertext) N() int {
	if len(ct.Value) == 0 {
		return 0
	}
	return len(ct.Value[0]) - 1
}

// Level returns the level of the ciphertext.
func (ct Ciphertext) Level() int {
	return len(ct.Value) - 1
}

// IsReduced returns true if all the values of the ciphertext are in [0, q_l).
func (ct Ciphertext) IsReduced() bool {
	return ct.lazy == 0
}

// B returns the b-part of the ciphertext at the given level.
func (ct Ciphertext) B(level int) uint64 {
	return ct.Value[level][0]
}

// A returns the a-part of the ciphertext at the given level.
func (ct Ciphertext) A(level int) []uint64 {
	return ct.Value[level][1:]
}

// CopyNew creates a deep copy of the receiver.
func (ct Ciphertext) CopyNew() *Ciphertext {
	cpy := &Ciphertext{
		Value:    make([][]uint64, len(ct.Value)),
		Moduli:   append([]uint64{}, ct.Moduli...),
		lazy:     ct.lazy,
		subRings: ct.subRings,
	}

	for i := range ct.Value {
		cpy.Value[i] = append([]uint64{}, ct.Value[i]...)
	}

	return cpy
}

// Copy copies other on the receiver.
func (ct *Ciphertext) Copy(other *Ciphertext) {
	if ct.N() != other.N() || len(ct.Value) != len(other.Value) {
		*ct = *other.CopyNew()
		return
	}

	for i := range ct.Value {
		copy(ct.Value[i], other.Value[i])
	}

	ct.Moduli = append(ct.Moduli[:0], other.Moduli...)
	ct.lazy = other.lazy
	ct.subRings = other.subRings
}

// Equal performs a deep equal.
func (ct Ciphertext) Equal(other *Ciphertext) bool {
	return ct.lazy == other.lazy && cmp.Equal(ct.Moduli, other.Moduli) && cmp.Equal(ct.Value, other.Value)
}

// maxLazy returns the largest lazy counter such that (lazy+1) * q_l fits on 64 bits for all l.
func (ct Ciphertext) maxLazy() uint64 {
	var qMax uint64
	for _, q := range ct.Moduli {
		if q > qMax {
			qMax = q
		}
	}
	return math.MaxUint64/qMax - 1
}

// subRing returns the [ring.SubRing] of the modulus at the given level.
func (ct *Ciphertext) subRing(level int) *ring.SubRing {

	if len(ct.subRings) != len(ct.Moduli) || ct.subRings[level].Modulus != ct.Moduli[level] {
		subRings, err := newSubRings(ct.Moduli)
		if err != nil {
			// Sanity check, this error should not happen.
			panic(err)
		}
		ct.subRings = subRings
	}

	return ct.subRings[level]
}

// newSubRings returns the reduction constants of the moduli. The constants do not
// depend on the ring degree, the operations of the sub-rings are only applied through
// [limbAdd], [limbSub], [limbNeg] and [limbReduce].
func newSubRings(moduli []uint64) (subRings []*ring.SubRing, err error) {
	subRings = make([]*ring.SubRing, len(moduli))
	for i, q := range moduli {
		if q < 3 || q&1 == 0 {
			return nil, fmt.Errorf("invalid modulus %d at level %d: must be odd and larger than 2", q, i)
		}
		if subRings[i], err = ring.NewSubRing(subRingDegree, q); err != nil {
			return nil, err
		}
	}
	return
}

func (ct Ciphertext) isCompatible(other *Ciphertext) error {

	if ct.N() != other.N() {
		return fmt.Errorf("dimension mismatch: %d != %d", ct.N(), other.N())
	}

	if !cmp.Equal(ct.Moduli, other.Moduli) {
		return fmt.Errorf("moduli mismatch: %v != %v", ct.Moduli, other.Moduli)
	}

	return nil
}

// BinarySize returns the serialized size of the object in bytes.
func (ct Ciphertext) BinarySize() (size int) {
	size = 8 // lazy
	size += structs.Vector[uint64](ct.Moduli).BinarySize()
	for i := range ct.Value {
		size += structs.Vector[uint64](ct.Value[i]).BinarySize()
	}
	return
}

// WriteTo writes the object on an [io.Writer]. It implements the [io.WriterTo]
// interface, and will write exactly object.BinarySize() bytes on w.
//
// Unless w implements the [buffer.Writer] interface (see lattigo/utils/buffer/writer.go),
// it will be wrapped into a [bufio.Writer].
func (ct Ciphertext) WriteTo(w io.Writer) (n int64, err error) {

	switch w := w.(type) {
	case buffer.Writer:

		var inc int64

		if inc, err = buffer.WriteAsUint64[uint64](w, ct.lazy); err != nil {
			return n, err
		}

		n += inc

		if inc, err = structs.Vector[uint64](ct.Moduli).WriteTo(w); err != nil {
			return n + inc, err
		}

		n += inc

		for i := range ct.Value {
			if inc, err = structs.Vector[uint64](ct.Value[i]).WriteTo(w); err != nil {
				return n + inc, err
			}
			n += inc
		}

		return n, w.Flush()

	default:
		return ct.WriteTo(bufio.NewWriter(w))
	}
}

// ReadFrom reads on the object from an [io.Writer]. It implements the
// [io.ReaderFrom] interface.
//
// Unless r implements the [buffer.Reader] interface (see lattigo/utils/buffer/reader.go),
// it will be wrapped into a [bufio.Reader].
func (ct *Ciphertext) ReadFrom(r io.Reader) (n int64, err error) {

	switch r := r.(type) {
	case buffer.Reader:

		if ct == nil {
			return 0, fmt.Errorf("cannot ReadFrom: target object is nil")
		}

		var inc int64

		if inc, err = buffer.ReadAsUint64[uint64](r, &ct.lazy); err != nil {
			return n, err
		}

		n += inc

		var moduli structs.Vector[uint64]
		if inc, err = moduli.ReadFrom(r); err != nil {
			return n + inc, err
		}

		n += inc

		if len(moduli) == 0 {
			return n, fmt.Errorf("cannot ReadFrom: empty moduli chain")
		}

		ct.Moduli = moduli
		ct.Value = make([][]uint64, len(moduli))

		for i := range ct.Value {

			var v structs.Vector[uint64]
			if inc, err = v.ReadFrom(r); err != nil {
				return n + inc, err
			}

			n += inc

			if i > 0 && len(v) != len(ct.Value[0]) {
				return n, fmt.Errorf("cannot ReadFrom: inconsistent dimension at level %d", i)
			}

			ct.Value[i] = v
		}

		if ct.subRings, err = newSubRings(ct.Moduli); err != nil {
			return n, fmt.Errorf("cannot ReadFrom: %w", err)
		}

		return

	default:
		return ct.ReadFrom(bufio.NewReader(r))
	}
}

// MarshalBinary encodes the object into a binary form on a newly allocated slice of bytes.
func (ct Ciphertext) MarshalBinary() (data []byte, err error) {
	buf := buffer.NewBufferSize(ct.BinarySize())
	_, err = ct.WriteTo(buf)
	return buf.Bytes(), err
}

// UnmarshalBinary decodes a slice of bytes generated by
// [Ciphertext.MarshalBinary] or [Ciphertext.WriteTo] on the object.
func (ct *Ciphertext) UnmarshalBinary(p []byte) (err error) {
	_, err = ct.ReadFrom(buffer.NewBuffer(p))
	return
}
