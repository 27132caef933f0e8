// Package sharing implements the conversion between RLWE/LWE ciphertexts and
// additive secret shares of Z_{2^k}.
//
// H2A turns an encryption of x, held by one party, into two shares x0 + x1 = x mod 2^k:
// the holder blinds the ciphertext with a uniform r of Z_Q and reveals -round(r*2^k/Q),
// the owner of the secret key decrypts the blinded ciphertext and lowers the result.
// A2H adds a vector of shares to the plaintext of an RLWE ciphertext.
package sharing

import (
	"fmt"

	"github.com/google/go-cmp/cmp"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/tuneinsight/gemini-rlwe/encoding"
	"github.com/tuneinsight/gemini-rlwe/lwe"
	"github.com/tuneinsight/gemini-rlwe/modswitch"
	"github.com/tuneinsight/gemini-rlwe/utils"
	"github.com/tuneinsight/gemini-rlwe/utils/sampling"
)

// ShareConverter converts between ciphertexts and additive shares stored on words of type T.
type ShareConverter[T utils.Word] struct {
	params  rlwe.Parameters
	bridge  *modswitch.Bridge
	encoder *encoding.Encoder[T]
	buffPt  *rlwe.Plaintext
	buffQ   []uint64
}

// NewShareConverter instantiates a new [ShareConverter].
// The method returns an error if the bridge does not match params or if T cannot store
// values of the bridge bit-width.
func NewShareConverter[T utils.Word](params rlwe.Parameters, bridge *modswitch.Bridge) (*ShareConverter[T], error) {

	encoder, err := encoding.NewEncoder[T](params, bridge)
	if err != nil {
		return nil, fmt.Errorf("cannot NewShareConverter: %w", err)
	}

	return &ShareConverter[T]{
		params:  params,
		bridge:  bridge,
		encoder: encoder,
		buffPt:  rlwe.NewPlaintext(params, bridge.Level()),
		buffQ:   make([]uint64, params.N()*(bridge.Level()+1)),
	}, nil
}

// ShallowCopy creates a shallow copy of [ShareConverter] in which all the read-only data-structures are
// shared with the receiver and the temporary buffers are reallocated. The receiver and the returned
// [ShareConverter] can be used concurrently.
func (sc ShareConverter[T]) ShallowCopy() *ShareConverter[T] {
	return &ShareConverter[T]{
		params:  sc.params,
		bridge:  sc.bridge,
		encoder: sc.encoder.ShallowCopy(),
		buffPt:  rlwe.NewPlaintext(sc.params, sc.bridge.Level()),
		buffQ:   make([]uint64, len(sc.buffQ)),
	}
}

// Bridge returns the [modswitch.Bridge] of the converter.
func (sc ShareConverter[T]) Bridge() *modswitch.Bridge {
	return sc.bridge
}

// H2A blinds in place the LWE ciphertext ct, encrypting x, by adding a uniform r of Z_Q to
// its plaintext and returns the share -round(r*2^k/Q) mod 2^k. The owner of the secret key
// recovers the complementary share with [ShareConverter.DecryptToShare].
// The method returns an error if ct is not defined over the moduli of the bridge or if
// prng fails.
func (sc ShareConverter[T]) H2A(ct *lwe.Ciphertext, prng sampling.PRNG) (revealed T, err error) {

	if err = sc.checkLWE(ct); err != nil {
		return revealed, fmt.Errorf("cannot H2A: %w", err)
	}

	moduli := ct.Moduli

	r := make([]uint64, len(moduli))
	defer utils.Zeroize(r)

	for l, q := range moduli {
		if err = sampling.UniformMod(prng, q, r[l:l+1]); err != nil {
			return revealed, fmt.Errorf("cannot H2A: %w", err)
		}
	}

	if err = ct.AddPlain(r); err != nil {
		return revealed, fmt.Errorf("cannot H2A: %w", err)
	}

	out := make([]T, 1)
	if err = modswitch.LowerFromRns(sc.bridge, r, out); err != nil {
		return revealed, fmt.Errorf("cannot H2A: %w", err)
	}

	return utils.NegMod(out[0], sc.bridge.BitWidth()), nil
}

// H2AVector applies [ShareConverter.H2A] on each ciphertext of cts.
func (sc ShareConverter[T]) H2AVector(cts []*lwe.Ciphertext, prng sampling.PRNG) (revealed []T, err error) {

	revealed = make([]T, len(cts))

	for i := range cts {
		if revealed[i], err = sc.H2A(cts[i], prng); err != nil {
			return nil, fmt.Errorf("cannot H2AVector: index %d: %w", i, err)
		}
	}

	return
}

// DecryptToShare decrypts the LWE ciphertext ct, blinded by [ShareConverter.H2A],
// and returns the local share round(Dec(ct)*2^k/Q) mod 2^k.
func (sc ShareConverter[T]) DecryptToShare(dec *lwe.Decryptor, ct *lwe.Ciphertext) (local T, err error) {

	if err = sc.checkLWE(ct); err != nil {
		return local, fmt.Errorf("cannot DecryptToShare: %w", err)
	}

	rns, err := dec.DecryptNew(ct)
	if err != nil {
		return local, fmt.Errorf("cannot DecryptToShare: %w", err)
	}

	out := make([]T, 1)
	if err = modswitch.LowerFromRns(sc.bridge, rns, out); err != nil {
		return local, fmt.Errorf("cannot DecryptToShare: %w", err)
	}

	return out[0], nil
}

// DecryptVectorToShares applies [ShareConverter.DecryptToShare] on each ciphertext of cts.
func (sc ShareConverter[T]) DecryptVectorToShares(dec *lwe.Decryptor, cts []*lwe.Ciphertext) (local []T, err error) {

	local = make([]T, len(cts))

	for i := range cts {
		if local[i], err = sc.DecryptToShare(dec, cts[i]); err != nil {
			return nil, fmt.Errorf("cannot DecryptVectorToShares: index %d: %w", i, err)
		}
	}

	return
}

// A2H adds the encoding of the shares, scaled by Q/2^k, to the plaintext of the RLWE
// ciphertext ct, in place: if ct encrypts x0, it then encrypts x0 + shares mod 2^k on
// its first len(shares) coefficients.
// The method returns an error if ct is in the NTT domain, is not of degree one, is not at
// the level of the bridge, or if len(shares) is not in [1, N].
func (sc ShareConverter[T]) A2H(ct *rlwe.Ciphertext, shares []T) (err error) {

	if err = sc.checkRLWE(ct); err != nil {
		return fmt.Errorf("cannot A2H: %w", err)
	}

	if len(shares) == 0 || len(shares) > sc.params.N() {
		return fmt.Errorf("cannot A2H: share size %d is not in [1, %d]", len(shares), sc.params.N())
	}

	if err = sc.encoder.Forward(shares, true, sc.buffPt); err != nil {
		return fmt.Errorf("cannot A2H: %w", err)
	}

	sc.params.RingQ().AtLevel(ct.Level()).Add(ct.Value[0], sc.buffPt.Value, ct.Value[0])

	return
}

// RLWEToShares blinds in place all the coefficients of the plaintext of the RLWE ciphertext ct
// with a uniform polynomial r of Z_Q[X]/(X^N+1) and returns the N shares -round(r*2^k/Q) mod 2^k.
// The owner of the secret key recovers the complementary shares with [ShareConverter.DecryptRLWEToShares].
// The method returns an error if ct is in the NTT domain, is not of degree one or is not at
// the level of the bridge.
func (sc ShareConverter[T]) RLWEToShares(ct *rlwe.Ciphertext, prng sampling.PRNG) (revealed []T, err error) {

	if err = sc.checkRLWE(ct); err != nil {
		return nil, fmt.Errorf("cannot RLWEToShares: %w", err)
	}

	N := sc.params.N()

	r := sc.buffPt.Value
	defer func() {
		for _, coeffs := range r.Coeffs {
			utils.Zeroize(coeffs)
		}
	}()

	// ct is left untouched unless r is sampled on all the limbs
	for l, q := range sc.bridge.Moduli() {
		if err = sampling.UniformMod(prng, q, r.Coeffs[l]); err != nil {
			return nil, fmt.Errorf("cannot RLWEToShares: %w", err)
		}
	}

	sc.params.RingQ().AtLevel(ct.Level()).Add(ct.Value[0], r, ct.Value[0])

	// limb-major
	rns := sc.buffQ
	defer utils.Zeroize(rns)

	for l, coeffs := range r.Coeffs {
		copy(rns[l*N:(l+1)*N], coeffs)
	}

	revealed = make([]T, N)
	if err = modswitch.LowerFromRns(sc.bridge, rns, revealed); err != nil {
		return nil, fmt.Errorf("cannot RLWEToShares: %w", err)
	}

	k := sc.bridge.BitWidth()
	for i := range revealed {
		revealed[i] = utils.NegMod(revealed[i], k)
	}

	return
}

// DecryptRLWEToShares decrypts the RLWE ciphertext ct, blinded by [ShareConverter.RLWEToShares],
// and returns the N local shares round(Dec(ct)*2^k/Q) mod 2^k.
func (sc ShareConverter[T]) DecryptRLWEToShares(dec *rlwe.Decryptor, ct *rlwe.Ciphertext) (local []T, err error) {

	if err = sc.checkRLWE(ct); err != nil {
		return nil, fmt.Errorf("cannot DecryptRLWEToShares: %w", err)
	}

	pt := rlwe.NewPlaintext(sc.params, ct.Level())
	dec.Decrypt(ct, pt)

	N := sc.params.N()

	rns := sc.buffQ
	defer utils.Zeroize(rns)

	for l, coeffs := range pt.Value.Coeffs {
		copy(rns[l*N:(l+1)*N], coeffs)
	}

	local = make([]T, N)
	if err = modswitch.LowerFromRns(sc.bridge, rns, local); err != nil {
		return nil, fmt.Errorf("cannot DecryptRLWEToShares: %w", err)
	}

	return
}

func (sc ShareConverter[T]) checkLWE(ct *lwe.Ciphertext) error {

	if ct == nil {
		return fmt.Errorf("lwe ciphertext is nil")
	}

	if ct.N() != sc.bridge.N() {
		return fmt.Errorf("lwe dimension %d != %d", ct.N(), sc.bridge.N())
	}

	if !cmp.Equal(ct.Moduli, sc.bridge.Moduli()) {
		return fmt.Errorf("lwe moduli %v do not match the moduli of the bridge %v", ct.Moduli, sc.bridge.Moduli())
	}

	return nil
}

func (sc ShareConverter[T]) checkRLWE(ct *rlwe.Ciphertext) error {

	if ct == nil {
		return fmt.Errorf("rlwe ciphertext is nil")
	}

	if ct.IsNTT {
		return fmt.Errorf("rlwe ciphertext must not be in the NTT domain")
	}

	if ct.Degree() != 1 {
		return fmt.Errorf("rlwe ciphertext degree must be 1 but is %d", ct.Degree())
	}

	if ct.Level() != sc.bridge.Level() {
		return fmt.Errorf("rlwe ciphertext level %d != bridge level %d", ct.Level(), sc.bridge.Level())
	}

	return nil
}
