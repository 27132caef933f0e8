package lwe

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"
)

// Add sets the receiver to ct + other, reduced modulo each q_l.
// The method returns an error if the two ciphertexts do not share the same dimension and moduli.
func (ct *Ciphertext) Add(other *Ciphertext) (err error) {

	if err = ct.isCompatible(other); err != nil {
		return fmt.Errorf("cannot Add: %w", err)
	}

	ct.Reduce()
	other = other.reduced()

	for l := range ct.Moduli {
		limbAdd(ct.subRing(l), ct.Value[l], other.Value[l], ct.Value[l])
	}

	return
}

// Sub sets the receiver to ct - other, reduced modulo each q_l.
// The method returns an error if the two ciphertexts do not share the same dimension and moduli.
func (ct *Ciphertext) Sub(other *Ciphertext) (err error) {

	if err = ct.isCompatible(other); err != nil {
		return fmt.Errorf("cannot Sub: %w", err)
	}

	ct.Reduce()
	other = other.reduced()

	for l := range ct.Moduli {
		limbSub(ct.subRing(l), ct.Value[l], other.Value[l], ct.Value[l])
	}

	return
}

// AddLazy sets the receiver to ct + other without modular reduction.
// The receiver is reduced first if the sum could overflow 64 bits.
// The method returns an error if the two ciphertexts do not share the same dimension and moduli.
func (ct *Ciphertext) AddLazy(other *Ciphertext) (err error) {

	if err = ct.isCompatible(other); err != nil {
		return fmt.Errorf("cannot AddLazy: %w", err)
	}

	if !ct.canAccumulate(other.lazy + 1) {
		return ct.Add(other)
	}

	for l := range ct.Moduli {
		v0, v1 := ct.Value[l], other.Value[l]
		for j := range v0 {
			v0[j] += v1[j]
		}
	}

	ct.lazy += other.lazy + 1

	return
}

// SubLazy sets the receiver to ct - other without modular reduction.
// The receiver is reduced first if the difference could overflow 64 bits.
// The method returns an error if the two ciphertexts do not share the same dimension and moduli.
func (ct *Ciphertext) SubLazy(other *Ciphertext) (err error) {

	if err = ct.isCompatible(other); err != nil {
		return fmt.Errorf("cannot SubLazy: %w", err)
	}

	if !ct.canAccumulate(other.lazy + 1) {
		return ct.Sub(other)
	}

	for l, q := range ct.Moduli {
		// other < (lazy+1) * q
		bound := (other.lazy + 1) * q
		v0, v1 := ct.Value[l], other.Value[l]
		for j := range v0 {
			v0[j] += bound - v1[j]
		}
	}

	ct.lazy += other.lazy + 1

	return
}

// AddLazyAt adds to the receiver, without modular reduction, the LWE ciphertext
// extracted at the given coefficient index of the RLWE ciphertext rct (see [Extract]).
// The method returns an error if rct is in the NTT domain, is not of degree one, does not
// have the dimension of the receiver or if its level is smaller than the level of the receiver.
func (ct *Ciphertext) AddLazyAt(rct *rlwe.Ciphertext, index int) (err error) {

	if err = checkRLWE(rct, ct.N()); err != nil {
		return fmt.Errorf("cannot AddLazyAt: %w", err)
	}

	if rct.Level() < ct.Level() {
		return fmt.Errorf("cannot AddLazyAt: rlwe level %d < lwe level %d", rct.Level(), ct.Level())
	}

	if index < 0 || index >= ct.N() {
		return fmt.Errorf("cannot AddLazyAt: index=%d is not in [0, %d)", index, ct.N())
	}

	if !ct.canAccumulate(1) {
		ct.Reduce()
	}

	N := ct.N()

	for l, q := range ct.Moduli {

		v := ct.Value[l]
		c0 := rct.Value[0].Coeffs[l]
		c1 := rct.Value[1].Coeffs[l]

		v[0] += c0[index]

		a := v[1:]
		for j := 0; j <= index; j++ {
			a[j] += c1[index-j]
		}

		for j := index + 1; j < N; j++ {
			a[j] += ring.CRed(q-c1[N+index-j], q)
		}
	}

	ct.lazy++

	return
}

// Negate sets the receiver to -ct, reduced modulo each q_l.
func (ct *Ciphertext) Negate() {

	ct.Reduce()

	for l := range ct.Moduli {
		limbNeg(ct.subRing(l), ct.Value[l], ct.Value[l])
	}
}

// Reduce reduces all the values of the receiver modulo each q_l.
func (ct *Ciphertext) Reduce() {

	if ct.lazy == 0 {
		return
	}

	for l := range ct.Moduli {
		limbReduce(ct.subRing(l), ct.Value[l], ct.Value[l])
	}

	ct.lazy = 0
}

// reduced returns the receiver if it is reduced and a reduced copy otherwise.
func (ct *Ciphertext) reduced() *Ciphertext {
	if ct.IsReduced() {
		return ct
	}
	cpy := ct.CopyNew()
	cpy.Reduce()
	return cpy
}

// AddPlain adds rns[l] to the b-part of the receiver at each level l, such that the
// receiver decrypts to m + rns. The a-part is left unchanged.
// The method returns an error if len(rns) is not Level+1.
func (ct *Ciphertext) AddPlain(rns []uint64) (err error) {

	if len(rns) != ct.Level()+1 {
		return fmt.Errorf("cannot AddPlain: len(rns)=%d != #moduli=%d", len(rns), ct.Level()+1)
	}

	for l, q := range ct.Moduli {
		brc := ct.subRing(l).BRedConstant
		ct.Value[l][0] = ring.CRed(ring.BRedAdd(ct.Value[l][0], q, brc)+ring.BRedAdd(rns[l], q, brc), q)
	}

	return
}

// canAccumulate returns true if the lazy counter of the receiver can be increased by inc.
func (ct Ciphertext) canAccumulate(inc uint64) bool {
	m := ct.maxLazy()
	return inc <= m && ct.lazy <= m-inc
}

func checkRLWE(ct *rlwe.Ciphertext, N int) error {

	if ct == nil {
		return fmt.Errorf("rlwe ciphertext is nil")
	}

	if ct.IsNTT {
		return fmt.Errorf("rlwe ciphertext must not be in the NTT domain")
	}

	if ct.Degree() != 1 {
		return fmt.Errorf("rlwe ciphertext degree must be 1 but is %d", ct.Degree())
	}

	if ct.N() != N {
		return fmt.Errorf("rlwe ciphertext ring degree %d != %d", ct.N(), N)
	}

	return nil
}

// The vector operations of [ring.SubRing] process blocks of 8 words: they are
// applied on the largest such prefix of a limb and the tail is reduced word by word.

// limbAdd evaluates p3 = p1 + p2 mod q for p1, p2 in [0, q).
func limbAdd(s *ring.SubRing, p1, p2, p3 []uint64) {
	n := len(p1) &^ 7
	s.Add(p1[:n], p2[:n], p3[:n])
	for j := n; j < len(p1); j++ {
		p3[j] = ring.CRed(p1[j]+p2[j], s.Modulus)
	}
}

// limbSub evaluates p3 = p1 - p2 mod q for p1, p2 in [0, q).
func limbSub(s *ring.SubRing, p1, p2, p3 []uint64) {
	n := len(p1) &^ 7
	s.Sub(p1[:n], p2[:n], p3[:n])
	for j := n; j < len(p1); j++ {
		p3[j] = ring.CRed(p1[j]+s.Modulus-p2[j], s.Modulus)
	}
}

// limbNeg evaluates p2 = -p1 mod q in [0, q) for p1 in [0, q).
func limbNeg(s *ring.SubRing, p1, p2 []uint64) {
	n := len(p1) &^ 7
	// Neg maps 0 to q
	s.Neg(p1[:n], p2[:n])
	s.Reduce(p2[:n], p2[:n])
	for j := n; j < len(p1); j++ {
		p2[j] = ring.CRed(s.Modulus-p1[j], s.Modulus)
	}
}

// limbReduce evaluates p2 = p1 mod q.
func limbReduce(s *ring.SubRing, p1, p2 []uint64) {
	n := len(p1) &^ 7
	s.Reduce(p1[:n], p2[:n])
	for j := n; j < len(p1); j++ {
		p2[j] = ring.BRedAdd(p1[j], s.Modulus, s.BRedConstant)
	}
}
