package lwe

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"
)

// Decryptor decrypts LWE ciphertexts with the coefficient representation of an RLWE secret key.
type Decryptor struct {
	params rlwe.Parameters
	s      [][]uint64
}

// NewDecryptor instantiates a new [Decryptor] from the RLWE secret key sk.
func NewDecryptor(params rlwe.Parameters, sk *rlwe.SecretKey) *Decryptor {

	ringQ := params.RingQ()

	// sk is stored in the NTT and Montgomery domain
	s := *sk.Value.Q.CopyNew()
	ringQ.IMForm(s, s)
	ringQ.INTT(s, s)

	return &Decryptor{
		params: params,
		s:      s.Coeffs,
	}
}

// Decrypt writes on out[l] the phase b + <a, s> mod q_l of ct for each level l.
// The method returns an error if ct does not have the ring degree and moduli of the
// parameters of the decryptor or if len(out) < ct.Level()+1.
func (d Decryptor) Decrypt(ct *Ciphertext, out []uint64) (err error) {

	if ct.N() != d.params.N() {
		return fmt.Errorf("cannot Decrypt: dimension mismatch: %d != %d", ct.N(), d.params.N())
	}

	if ct.Level() > d.params.MaxLevel() {
		return fmt.Errorf("cannot Decrypt: ciphertext level %d > max level %d", ct.Level(), d.params.MaxLevel())
	}

	if len(out) < ct.Level()+1 {
		return fmt.Errorf("cannot Decrypt: len(out)=%d < #moduli=%d", len(out), ct.Level()+1)
	}

	Q := d.params.Q()
	subRings := d.params.RingQ().SubRings

	ct = ct.reduced()

	for l, q := range ct.Moduli {

		if q != Q[l] {
			return fmt.Errorf("cannot Decrypt: modulus %d at level %d does not match parameters %d", q, l, Q[l])
		}

		brc := subRings[l].BRedConstant
		s := d.s[l]
		a := ct.A(l)

		acc := ct.B(l)
		for j := range a {
			acc = ring.CRed(acc+ring.BRed(a[j], s[j], q, brc), q)
		}

		out[l] = acc
	}

	return
}

// DecryptNew decrypts ct on a newly allocated slice, see [Decryptor.Decrypt].
func (d Decryptor) DecryptNew(ct *Ciphertext) (out []uint64, err error) {
	out = make([]uint64, ct.Level()+1)
	return out, d.Decrypt(ct, out)
}
