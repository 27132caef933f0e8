package sharing

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"

	"github.com/tuneinsight/gemini-rlwe/lwe"
	"github.com/tuneinsight/gemini-rlwe/modswitch"
	"github.com/tuneinsight/gemini-rlwe/utils"
	"github.com/tuneinsight/gemini-rlwe/utils/sampling"
)

var flagParamString = flag.String("params", "", "specify the test cryptographic parameters as a JSON string. Replaces the default test parameters.")

type testParametersLiteral struct {
	BitWidth int
	rlwe.ParametersLiteral
}

// testInsecure are insecure parameters used for the sole purpose of fast testing.
var testInsecure = []testParametersLiteral{
	{
		BitWidth:          32,
		ParametersLiteral: rlwe.ParametersLiteral{LogN: 11, LogQ: []int{59, 30}},
	},
	{
		BitWidth:          64,
		ParametersLiteral: rlwe.ParametersLiteral{LogN: 11, LogQ: []int{59, 50, 30}},
	},
	{
		BitWidth:          128,
		ParametersLiteral: rlwe.ParametersLiteral{LogN: 11, LogQ: []int{59, 59, 59, 59, 59, 59, 59}},
	},
	// bit-widths that are not a word size
	{
		BitWidth:          30,
		ParametersLiteral: rlwe.ParametersLiteral{LogN: 11, LogQ: []int{59, 30}},
	},
	{
		BitWidth:          60,
		ParametersLiteral: rlwe.ParametersLiteral{LogN: 11, LogQ: []int{59, 50, 30}},
	},
	{
		BitWidth:          120,
		ParametersLiteral: rlwe.ParametersLiteral{LogN: 11, LogQ: []int{59, 59, 59, 59, 59, 59}},
	},
}

func testString(params rlwe.Parameters, k int, opname string) string {
	return fmt.Sprintf("%s/logN=%d/#Qi=%d/k=%d",
		opname,
		params.LogN(),
		params.QCount(),
		k)
}

type testContext struct {
	params rlwe.Parameters
	bridge *modswitch.Bridge
	enc    *rlwe.Encryptor
	dec    *rlwe.Decryptor
	lweDec *lwe.Decryptor
	prng   sampling.PRNG
}

func TestSharing(t *testing.T) {

	var err error

	paramsLiterals := testInsecure

	if *flagParamString != "" {
		var jsonParams testParametersLiteral
		if err = json.Unmarshal([]byte(*flagParamString), &jsonParams); err != nil {
			t.Fatal(err)
		}
		paramsLiterals = []testParametersLiteral{jsonParams} // the custom test suite reads the parameters from the -params flag
	}

	prng, err := sampling.NewKeyedPRNG([]byte{'s', 'h', 'a', 'r', 'e'})
	require.NoError(t, err)

	for _, paramsLit := range paramsLiterals {

		var params rlwe.Parameters
		if params, err = rlwe.NewParametersFromLiteral(paramsLit.ParametersLiteral); err != nil {
			t.Fatal(err)
		}

		bridge, err := modswitch.NewBridge(params, paramsLit.BitWidth)
		require.NoError(t, err)

		sk := rlwe.NewKeyGenerator(params).GenSecretKeyNew()

		tc := &testContext{
			params: params,
			bridge: bridge,
			enc:    rlwe.NewEncryptor(params, sk),
			dec:    rlwe.NewDecryptor(params, sk),
			lweDec: lwe.NewDecryptor(params, sk),
			prng:   prng,
		}

		switch {
		case paramsLit.BitWidth <= 32:
			testShareConverter[uint32](tc, t)
		case paramsLit.BitWidth <= 64:
			testShareConverter[uint64](tc, t)
		default:
			testShareConverter[uint128.Uint128](tc, t)
		}
	}
}

func testShareConverter[T utils.Word](tc *testContext, t *testing.T) {

	params := tc.params
	bridge := tc.bridge
	k := bridge.BitWidth()
	N := params.N()

	sc, err := NewShareConverter[T](params, bridge)
	require.NoError(t, err)

	// encrypt returns an encryption of Q/2^k * x in the coefficient domain.
	encrypt := func(t *testing.T, x []T) *rlwe.Ciphertext {
		pt, err := sc.encoder.ForwardNew(x, true)
		require.NoError(t, err)
		ct, err := tc.enc.EncryptNew(pt)
		require.NoError(t, err)
		require.False(t, ct.IsNTT)
		return ct
	}

	random := func(t *testing.T, n int) []T {
		x := make([]T, n)
		require.NoError(t, sampling.RandomWords(tc.prng, k, x))
		return x
	}

	t.Run(testString(params, k, "H2A"), func(t *testing.T) {

		x := random(t, 8)
		ct := encrypt(t, x)

		for i := range x {

			ctLWE, err := lwe.ExtractNew(params, ct, i)
			require.NoError(t, err)

			revealed, err := sc.H2A(ctLWE, tc.prng)
			require.NoError(t, err)
			require.True(t, utils.ToUint128(revealed).Cmp(bridge.Mask()) <= 0)

			local, err := sc.DecryptToShare(tc.lweDec, ctLWE)
			require.NoError(t, err)

			require.Equal(t, x[i], utils.AddMod(local, revealed, k))
		}
	})

	t.Run(testString(params, k, "H2AVector"), func(t *testing.T) {

		x := random(t, 5)
		ct := encrypt(t, x)

		cts := make([]*lwe.Ciphertext, len(x))
		for i := range cts {
			cts[i], err = lwe.ExtractNew(params, ct, i)
			require.NoError(t, err)
		}

		revealed, err := sc.H2AVector(cts, tc.prng)
		require.NoError(t, err)

		local, err := sc.DecryptVectorToShares(tc.lweDec, cts)
		require.NoError(t, err)

		for i := range x {
			require.Equal(t, x[i], utils.AddMod(local[i], revealed[i], k))
		}
	})

	t.Run(testString(params, k, "A2H"), func(t *testing.T) {

		for _, n := range []int{1, N / 2, N} {

			x0 := random(t, n)
			x1 := random(t, n)

			ct := encrypt(t, x0)
			require.NoError(t, sc.A2H(ct, x1))

			have := decode[T](t, tc, tc.dec.DecryptNew(ct), n)

			for i := range have {
				require.Equal(t, utils.AddMod(x0[i], x1[i], k), have[i])
			}
		}
	})

	t.Run(testString(params, k, "RLWEToShares"), func(t *testing.T) {

		x := random(t, N/3)
		ct := encrypt(t, x)

		revealed, err := sc.RLWEToShares(ct, tc.prng)
		require.NoError(t, err)
		require.Len(t, revealed, N)

		local, err := sc.DecryptRLWEToShares(tc.dec, ct)
		require.NoError(t, err)

		for i := 0; i < N; i++ {
			var want T
			if i < len(x) {
				want = x[i]
			}
			require.Equal(t, want, utils.AddMod(local[i], revealed[i], k))
		}

		for _, v := range sc.buffQ {
			require.Zero(t, v)
		}

		for _, coeffs := range sc.buffPt.Value.Coeffs {
			for _, v := range coeffs {
				require.Zero(t, v)
			}
		}
	})

	t.Run(testString(params, k, "RLWEToShares/ShortRead"), func(t *testing.T) {

		ct := encrypt(t, random(t, 4))
		ctCpy := ct.CopyNew()

		// enough randomness for at most one limb
		_, err := sc.RLWEToShares(ct, &limitedReader{r: tc.prng, n: 8 * N})
		require.Error(t, err)
		require.True(t, ct.Equal(ctCpy))

		for _, coeffs := range sc.buffPt.Value.Coeffs {
			for _, v := range coeffs {
				require.Zero(t, v)
			}
		}
	})

	t.Run(testString(params, k, "ShallowCopy"), func(t *testing.T) {

		scCpy := sc.ShallowCopy()
		require.True(t, scCpy.Bridge() == sc.Bridge())
		require.False(t, scCpy.buffPt == sc.buffPt)

		x0 := random(t, 3)
		x1 := random(t, 3)

		ct := encrypt(t, x0)
		require.NoError(t, scCpy.A2H(ct, x1))

		have := decode[T](t, tc, tc.dec.DecryptNew(ct), 3)
		for i := range have {
			require.Equal(t, utils.AddMod(x0[i], x1[i], k), have[i])
		}
	})

	t.Run(testString(params, k, "Errors"), func(t *testing.T) {

		ct := encrypt(t, random(t, 4))

		require.Error(t, sc.A2H(ct, []T{}))
		require.Error(t, sc.A2H(ct, make([]T, N+1)))

		ctNTT := ct.CopyNew()
		ctNTT.IsNTT = true
		require.Error(t, sc.A2H(ctNTT, make([]T, 1)))

		_, err := sc.RLWEToShares(ctNTT, tc.prng)
		require.Error(t, err)

		_, err = sc.H2A(nil, tc.prng)
		require.Error(t, err)

		if params.MaxLevel() > 0 {

			ctLow := rlwe.NewCiphertext(params, 1, 0)
			ctLow.IsNTT = false
			require.Error(t, sc.A2H(ctLow, make([]T, 1)))

			_, err = sc.H2A(lwe.NewCiphertext(params, 0), tc.prng)
			require.Error(t, err)
		}

		if k > 32 {
			_, err = NewShareConverter[uint32](params, bridge)
			require.Error(t, err)
		}
	})
}

// limitedReader reads at most n bytes from r.
type limitedReader struct {
	r io.Reader
	n int
}

func (lr *limitedReader) Read(p []byte) (n int, err error) {
	if lr.n <= 0 {
		return 0, io.EOF
	}
	if len(p) > lr.n {
		p = p[:lr.n]
	}
	n, err = lr.r.Read(p)
	lr.n -= n
	return
}

// decode returns the first n coefficients of pt switched to 2^k.
func decode[T utils.Word](t *testing.T, tc *testContext, pt *rlwe.Plaintext, n int) []T {

	rns := make([]uint64, n*len(pt.Value.Coeffs))
	for l, coeffs := range pt.Value.Coeffs {
		copy(rns[l*n:(l+1)*n], coeffs[:n])
	}

	out := make([]T, n)
	require.NoError(t, modswitch.LowerFromRns(tc.bridge, rns, out))

	return out
}
