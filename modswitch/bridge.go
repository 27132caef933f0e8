// Package modswitch implements the switching of integers between the small
// modulus 2^k, on which arithmetic shares live, and the RNS representation
// of the large RLWE modulus Q = q_0 * q_1 * ... * q_{L-1}.
package modswitch

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"github.com/ALTree/bigfloat"
	"github.com/google/go-cmp/cmp"
	"github.com/zeebo/blake3"
	"lukechampine.com/uint128"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"

	"github.com/tuneinsight/gemini-rlwe/utils"
)

// MaxBitWidth is the maximum supported bit-width k of the small modulus 2^k.
const MaxBitWidth = 128

// Bridge stores the pre-computed constants needed to move values between
// Z_{2^k} and the RNS representation of Z_Q. A [Bridge] is read-only after
// its creation and can be shared among goroutines.
type Bridge struct {
	n        int
	logN     int
	bitWidth int
	moduli   []uint64
	mask     uint128.Uint128
	half     uint128.Uint128
	logQ     float64
	id       [32]byte

	// round(Q*x/2^k) = floor(Q/2^k)*x + round((Q mod 2^k)*x/2^k)
	qDivPow2ModQi []uint64
	qModPow2      uint128.Uint128

	// Barrett constants of the moduli
	bredConstants [][2]uint64

	// round(x*2^k/Q) = round(sum_i y_i*2^k/q_i) with y_i = x_i*(Q/q_i)^{-1} mod q_i
	// and y_i*2^k/q_i = y_i*floor(2^k/q_i) + y_i*(2^k mod q_i)/q_i
	qHatInvModQi []uint64
	pow2DivQi    []uint128.Uint128
	pow2ModQi    []uint64
}

// NewBridge creates a new [Bridge] between Z_{2^bitWidth} and the RNS representation of the
// modulus Q of params, using all its moduli.
// The method returns an error if bitWidth is not in [1, 128], if params is not defined over
// the standard ring Z[X]/(X^N+1), or if Q is not larger than 2^bitWidth.
func NewBridge(params rlwe.Parameters, bitWidth int) (b *Bridge, err error) {

	if bitWidth < 1 || bitWidth > MaxBitWidth {
		return nil, fmt.Errorf("cannot NewBridge: bitWidth=%d is not in [1, %d]", bitWidth, MaxBitWidth)
	}

	if params.RingType() != ring.Standard {
		return nil, fmt.Errorf("cannot NewBridge: ring type must be %s but is %s", ring.Standard, params.RingType())
	}

	moduli := params.Q()
	if len(moduli) == 0 {
		return nil, fmt.Errorf("cannot NewBridge: empty moduli chain")
	}

	Q := big.NewInt(1)
	for _, qi := range moduli {
		if qi&1 == 0 {
			return nil, fmt.Errorf("cannot NewBridge: modulus %d is not odd", qi)
		}
		Q.Mul(Q, new(big.Int).SetUint64(qi))
	}

	if Q.BitLen() <= bitWidth {
		return nil, fmt.Errorf("cannot NewBridge: log2(Q)=%d must be larger than bitWidth=%d", Q.BitLen(), bitWidth)
	}

	b = &Bridge{
		n:        params.N(),
		logN:     params.LogN(),
		bitWidth: bitWidth,
		moduli:   append([]uint64{}, moduli...),
		mask:     utils.Mask128(bitWidth),
		half:     uint128.From64(1).Lsh(uint(bitWidth - 1)),
	}

	L := len(moduli)

	pow2 := new(big.Int).Lsh(big.NewInt(1), uint(bitWidth))
	mask := new(big.Int).Sub(pow2, big.NewInt(1))

	tmp := new(big.Int).Rsh(Q, uint(bitWidth))
	b.qModPow2 = uint128.FromBig(new(big.Int).And(Q, mask))

	b.qDivPow2ModQi = make([]uint64, L)
	b.qHatInvModQi = make([]uint64, L)
	b.pow2DivQi = make([]uint128.Uint128, L)
	b.pow2ModQi = make([]uint64, L)
	b.bredConstants = make([][2]uint64, L)

	subRings := params.RingQ().SubRings

	bqi := new(big.Int)
	qHat := new(big.Int)
	quo, rem := new(big.Int), new(big.Int)

	for i, qi := range moduli {

		bqi.SetUint64(qi)

		b.bredConstants[i] = subRings[i].BRedConstant

		b.qDivPow2ModQi[i] = new(big.Int).Mod(tmp, bqi).Uint64()

		qHat.Quo(Q, bqi)
		qHat.Mod(qHat, bqi)
		b.qHatInvModQi[i] = ring.ModExp(qHat.Uint64(), qi-2, qi)

		quo.QuoRem(pow2, bqi, rem)
		b.pow2DivQi[i] = uint128.FromBig(quo.And(quo, mask))
		b.pow2ModQi[i] = rem.Uint64()
	}

	b.logQ = log2(Q)
	b.id = paramsID(b.n, bitWidth, b.moduli)

	return
}

// N returns the ring degree.
func (b Bridge) N() int {
	return b.n
}

// LogN returns log2 of the ring degree.
func (b Bridge) LogN() int {
	return b.logN
}

// BitWidth returns k, the bit-width of the small modulus 2^k.
func (b Bridge) BitWidth() int {
	return b.bitWidth
}

// Level returns the level of the RNS representation, i.e. the number of moduli minus one.
func (b Bridge) Level() int {
	return len(b.moduli) - 1
}

// Moduli returns a copy of the moduli chain.
func (b Bridge) Moduli() []uint64 {
	return append([]uint64{}, b.moduli...)
}

// Mask returns 2^k - 1.
func (b Bridge) Mask() uint128.Uint128 {
	return b.mask
}

// LogQ returns log2(Q).
func (b Bridge) LogQ() float64 {
	return b.logQ
}

// Headroom returns log2(Q) - (2k + logN), the number of bits of Q that remain
// once a product of two k-bit values summed over N terms has been accounted for.
// A plaintext-ciphertext product followed by a rounding to 2^k is only correct
// when the headroom is positive and covers the encryption noise.
func (b Bridge) Headroom() float64 {
	return b.logQ - float64(2*b.bitWidth+b.logN)
}

// ID returns a digest of (N, k, q_0, ..., q_{L-1}) identifying the parameters of the bridge.
func (b Bridge) ID() [32]byte {
	return b.id
}

// CheckParameters returns an error if params does not have the same ring degree and
// the same moduli chain as the bridge.
func (b Bridge) CheckParameters(params rlwe.Parameters) error {

	if params.N() != b.n {
		return fmt.Errorf("ring degree mismatch: %d != %d", params.N(), b.n)
	}

	moduli := params.Q()

	if moduli[0] != b.moduli[0] {
		return fmt.Errorf("first modulus mismatch: %d != %d", moduli[0], b.moduli[0])
	}

	if !cmp.Equal(moduli, b.moduli) {
		return fmt.Errorf("moduli chain mismatch: %v != %v", moduli, b.moduli)
	}

	return nil
}

func log2(x *big.Int) float64 {
	xf := new(big.Float).SetPrec(128).SetInt(x)
	ln, _ := bigfloat.Log(xf).Float64()
	return ln / math.Ln2
}

func paramsID(n, bitWidth int, moduli []uint64) [32]byte {
	buf := make([]byte, 8*(len(moduli)+2))
	binary.LittleEndian.PutUint64(buf[0:], uint64(n))
	binary.LittleEndian.PutUint64(buf[8:], uint64(bitWidth))
	for i, qi := range moduli {
		binary.LittleEndian.PutUint64(buf[8*(i+2):], qi)
	}
	return blake3.Sum256(buf)
}
