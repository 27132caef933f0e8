package utils

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
)

func TestBitCeil(t *testing.T) {
	require.Equal(t, uint64(1), BitCeil(0))
	require.Equal(t, uint64(1), BitCeil(1))
	require.Equal(t, uint64(2), BitCeil(2))
	require.Equal(t, uint64(8), BitCeil(5))
	require.Equal(t, uint64(8), BitCeil(8))
	require.Equal(t, uint64(4096), BitCeil(4095))
	require.Equal(t, uint64(4), BitFloor(7))
	require.Equal(t, uint64(0), BitFloor(0))
	require.True(t, IsPow2(uint64(1024)))
	require.False(t, IsPow2(uint64(1023)))
	require.False(t, IsPow2(uint32(0)))
	require.Equal(t, 3, CeilDiv(9, 4))
	require.Equal(t, 2, CeilDiv(8, 4))
}

func TestWord(t *testing.T) {

	t.Run("BitSize", func(t *testing.T) {
		require.Equal(t, 32, BitSize[uint32]())
		require.Equal(t, 64, BitSize[uint64]())
		require.Equal(t, 128, BitSize[uint128.Uint128]())
	})

	t.Run("Conversions", func(t *testing.T) {
		x := uint128.New(0x0123456789abcdef, 0xfedcba9876543210)
		require.Equal(t, uint32(0x89abcdef), FromUint128[uint32](x))
		require.Equal(t, uint64(0x0123456789abcdef), FromUint128[uint64](x))
		require.Equal(t, x, FromUint128[uint128.Uint128](x))
		require.Equal(t, uint128.From64(7), ToUint128(uint32(7)))
	})

	t.Run("Mask", func(t *testing.T) {
		require.Equal(t, uint32(0xffffffff), MaskWord[uint32](32))
		require.Equal(t, uint64(1<<60-1), MaskWord[uint64](60))
		require.Equal(t, uint128.Max, Mask128(128))
		require.Equal(t, uint128.New(^uint64(0), 1<<56-1), Mask128(120))
	})

	t.Run("Arithmetic", func(t *testing.T) {
		require.Equal(t, uint32(1), AddMod(uint32(1<<30-1), uint32(2), 30))
		require.Equal(t, uint64(1<<60-1), SubMod(uint64(0), uint64(1), 60))
		require.Equal(t, uint64(1<<60-3), NegMod(uint64(3), 60))
		require.Equal(t, uint64(30), DotMod([]uint64{1, 2, 3, 4}, []uint64{1, 2, 3, 4}, 64))
		require.Equal(t, uint128.Zero, MulMod(uint128.New(0, 1), uint128.New(0, 1), 128))
		require.True(t, IsZeroWord(uint128.Zero))
	})

	t.Run("Zeroize", func(t *testing.T) {
		s := []uint64{1, 2, 3}
		Zeroize(s)
		require.Equal(t, []uint64{0, 0, 0}, s)
	})
}

func TestUint256(t *testing.T) {

	toBig := func(x Uint256) *big.Int {
		r := new(big.Int)
		for i := 3; i >= 0; i-- {
			r.Lsh(r, 64)
			r.Add(r, new(big.Int).SetUint64(x[i]))
		}
		return r
	}

	values := []uint128.Uint128{
		uint128.Zero,
		uint128.From64(1),
		uint128.Max,
		uint128.New(0xdeadbeefcafebabe, 0x0123456789abcdef),
		uint128.New(^uint64(0), 0),
	}

	for _, a := range values {
		for _, b := range values {

			p := Mul128(a, b)

			want := new(big.Int).Mul(a.Big(), b.Big())
			require.Zero(t, want.Cmp(toBig(p)))

			for _, k := range []int{0, 1, 63, 64, 100, 128} {

				round := new(big.Int).Add(want, new(big.Int).Lsh(big.NewInt(1), 200))
				round.Mod(round, new(big.Int).Lsh(big.NewInt(1), 256))
				require.Zero(t, round.Cmp(toBig(p.AddPow2(200))))

				shifted := new(big.Int).Rsh(want, uint(k))
				shifted.Mod(shifted, new(big.Int).Lsh(big.NewInt(1), 128))
				require.Zero(t, shifted.Cmp(p.Rsh128(k).Big()))
			}
		}
	}
}
