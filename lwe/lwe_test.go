package lwe

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"

	"github.com/tuneinsight/gemini-rlwe/utils/sampling"
)

var flagParamString = flag.String("params", "", "specify the test cryptographic parameters as a JSON string. Replaces the default test parameters.")

// testInsecure are insecure parameters used for the sole purpose of fast testing.
var testInsecure = []rlwe.ParametersLiteral{
	{LogN: 10, LogQ: []int{59, 30}},
	{LogN: 10, LogQ: []int{59, 59, 50}},
}

func testString(params rlwe.Parameters, opname string) string {
	return fmt.Sprintf("%s/logN=%d/#Qi=%d",
		opname,
		params.LogN(),
		params.QCount())
}

type testContext struct {
	params rlwe.Parameters
	sk     *rlwe.SecretKey
	enc    *rlwe.Encryptor
	dec    *rlwe.Decryptor
	lweDec *Decryptor
	prng   sampling.PRNG
}

func newTestContext(params rlwe.Parameters) (tc *testContext, err error) {

	sk := rlwe.NewKeyGenerator(params).GenSecretKeyNew()

	prng, err := sampling.NewKeyedPRNG([]byte{'l', 'w', 'e'})
	if err != nil {
		return nil, err
	}

	return &testContext{
		params: params,
		sk:     sk,
		enc:    rlwe.NewEncryptor(params, sk),
		dec:    rlwe.NewDecryptor(params, sk),
		lweDec: NewDecryptor(params, sk),
		prng:   prng,
	}, nil
}

// newCiphertext returns a fresh encryption, in the coefficient domain, of a uniform plaintext.
func (tc *testContext) newCiphertext(t *testing.T) *rlwe.Ciphertext {

	params := tc.params

	pt := rlwe.NewPlaintext(params, params.MaxLevel())
	pt.IsNTT = false

	for l, q := range params.Q() {
		require.NoError(t, sampling.UniformMod(tc.prng, q, pt.Value.Coeffs[l]))
	}

	ct, err := tc.enc.EncryptNew(pt)
	require.NoError(t, err)
	require.False(t, ct.IsNTT)

	return ct
}

// phase returns the coefficients at the given index of the decryption of ct.
func (tc *testContext) phase(ct *rlwe.Ciphertext, index int) (rns []uint64) {
	pt := tc.dec.DecryptNew(ct)
	rns = make([]uint64, ct.Level()+1)
	for l := range rns {
		rns[l] = pt.Value.Coeffs[l][index]
	}
	return
}

func TestLWE(t *testing.T) {

	var err error

	paramsLiterals := testInsecure

	if *flagParamString != "" {
		var jsonParams rlwe.ParametersLiteral
		if err = json.Unmarshal([]byte(*flagParamString), &jsonParams); err != nil {
			t.Fatal(err)
		}
		paramsLiterals = []rlwe.ParametersLiteral{jsonParams} // the custom test suite reads the parameters from the -params flag
	}

	for _, paramsLit := range paramsLiterals {

		var params rlwe.Parameters
		if params, err = rlwe.NewParametersFromLiteral(paramsLit); err != nil {
			t.Fatal(err)
		}

		tc, err := newTestContext(params)
		require.NoError(t, err)

		for _, testSet := range []func(tc *testContext, t *testing.T){
			testExtract,
			testArithmetic,
			testCoefficients,
			testSerialization,
		} {
			testSet(tc, t)
			runtime.GC()
		}
	}
}

func testExtract(tc *testContext, t *testing.T) {

	params := tc.params
	N := params.N()

	ct := tc.newCiphertext(t)

	t.Run(testString(params, "Extract"), func(t *testing.T) {

		for _, index := range []int{0, 1, N / 2, N - 1} {

			lwe, err := ExtractNew(params, ct, index)
			require.NoError(t, err)
			require.Equal(t, N, lwe.N())
			require.Equal(t, ct.Level(), lwe.Level())
			require.True(t, lwe.IsReduced())

			have, err := tc.lweDec.DecryptNew(lwe)
			require.NoError(t, err)
			require.Equal(t, tc.phase(ct, index), have)
		}
	})

	t.Run(testString(params, "Extract/Errors"), func(t *testing.T) {

		_, err := ExtractNew(params, ct, N)
		require.Error(t, err)

		_, err = ExtractNew(params, ct, -1)
		require.Error(t, err)

		ctNTT := ct.CopyNew()
		ctNTT.IsNTT = true
		_, err = ExtractNew(params, ctNTT, 0)
		require.Error(t, err)

		require.Error(t, Extract(params, ct, 0, nil))
	})

	t.Run(testString(params, "Decrypt/Errors"), func(t *testing.T) {

		lwe, err := ExtractNew(params, ct, 0)
		require.NoError(t, err)

		require.Error(t, tc.lweDec.Decrypt(lwe, make([]uint64, lwe.Level())))

		lwe.Moduli[0]++
		_, err = tc.lweDec.DecryptNew(lwe)
		require.Error(t, err)
	})
}

func testArithmetic(tc *testContext, t *testing.T) {

	params := tc.params
	N := params.N()

	ct0 := tc.newCiphertext(t)
	ct1 := tc.newCiphertext(t)

	index := N/2 + 3

	m0 := tc.phase(ct0, index)
	m1 := tc.phase(ct1, index)

	lwe0, err := ExtractNew(params, ct0, index)
	require.NoError(t, err)

	lwe1, err := ExtractNew(params, ct1, index)
	require.NoError(t, err)

	subRings := params.RingQ().SubRings

	// want[l] = (c0 * m0 + c1 * m1) mod q_l
	combination := func(c0, c1 uint64) (want []uint64) {
		want = make([]uint64, len(m0))
		for l, q := range params.Q() {
			brc := subRings[l].BRedConstant
			want[l] = ring.CRed(ring.BRed(m0[l], c0%q, q, brc)+ring.BRed(m1[l], c1%q, q, brc), q)
		}
		return
	}

	decrypt := func(t *testing.T, ct *Ciphertext) []uint64 {
		have, err := tc.lweDec.DecryptNew(ct)
		require.NoError(t, err)
		return have
	}

	t.Run(testString(params, "Add"), func(t *testing.T) {
		ct := lwe0.CopyNew()
		require.NoError(t, ct.Add(lwe1))
		require.True(t, ct.IsReduced())
		require.Equal(t, combination(1, 1), decrypt(t, ct))
	})

	t.Run(testString(params, "Add/LazyOperand"), func(t *testing.T) {

		other := lwe1.CopyNew()
		require.NoError(t, other.AddLazy(lwe1))
		require.False(t, other.IsReduced())

		ct := lwe0.CopyNew()
		require.NoError(t, ct.Add(other))
		require.True(t, ct.IsReduced())
		require.False(t, other.IsReduced())
		require.Equal(t, combination(1, 2), decrypt(t, ct))
	})

	t.Run(testString(params, "Sub"), func(t *testing.T) {
		ct := lwe0.CopyNew()
		require.NoError(t, ct.Sub(lwe1))
		require.True(t, ct.IsReduced())

		want := make([]uint64, len(m0))
		for l, q := range params.Q() {
			want[l] = ring.CRed(m0[l]+q-m1[l], q)
		}

		require.Equal(t, want, decrypt(t, ct))
	})

	t.Run(testString(params, "Negate"), func(t *testing.T) {
		ct := lwe0.CopyNew()
		ct.Negate()

		want := make([]uint64, len(m0))
		for l, q := range params.Q() {
			want[l] = ring.CRed(q-m0[l], q)
		}

		require.Equal(t, want, decrypt(t, ct))

		ct.Negate()
		require.True(t, ct.Equal(lwe0))
	})

	t.Run(testString(params, "Negate/Zero"), func(t *testing.T) {
		ct := NewCiphertext(params, params.MaxLevel())
		ct.Negate()
		for l := range ct.Moduli {
			for _, v := range ct.Value[l] {
				require.Zero(t, v)
			}
		}
	})

	t.Run(testString(params, "AddLazy"), func(t *testing.T) {

		// enough additions to exceed 64 bits without reduction
		const n = 100

		ct := lwe0.CopyNew()
		for i := 0; i < n; i++ {
			require.NoError(t, ct.AddLazy(lwe1))
		}

		require.Equal(t, combination(1, n), decrypt(t, ct))

		ct.Reduce()
		require.True(t, ct.IsReduced())
		require.Equal(t, combination(1, n), decrypt(t, ct))
	})

	t.Run(testString(params, "SubLazy"), func(t *testing.T) {

		const n = 3

		ct := lwe0.CopyNew()
		for i := 0; i < n; i++ {
			require.NoError(t, ct.SubLazy(lwe1))
		}

		require.False(t, ct.IsReduced())

		want := make([]uint64, len(m0))
		for l, q := range params.Q() {
			want[l] = ring.CRed(m0[l]+q-ring.BRed(m1[l], n, q, subRings[l].BRedConstant), q)
		}

		require.Equal(t, want, decrypt(t, ct))
	})

	t.Run(testString(params, "AddLazyAt"), func(t *testing.T) {

		ct := lwe0.CopyNew()
		require.NoError(t, ct.AddLazyAt(ct1, index))
		require.False(t, ct.IsReduced())
		require.Equal(t, combination(1, 1), decrypt(t, ct))

		require.Error(t, ct.AddLazyAt(ct1, N))
	})

	t.Run(testString(params, "AddPlain"), func(t *testing.T) {

		rns := make([]uint64, params.MaxLevel()+1)
		for l, q := range params.Q() {
			rns[l] = q - 1
		}

		ct := lwe0.CopyNew()
		require.NoError(t, ct.AddPlain(rns))

		want := make([]uint64, len(m0))
		for l, q := range params.Q() {
			want[l] = ring.CRed(m0[l]+q-1, q)
		}

		require.Equal(t, want, decrypt(t, ct))

		// lazy b-part
		lazy := lwe0.CopyNew()
		require.NoError(t, lazy.AddLazy(lwe1))
		require.NoError(t, lazy.AddPlain(rns))
		for l, q := range params.Q() {
			require.Less(t, lazy.B(l), 2*q)
		}
		require.Equal(t, combination(1, 1), func() []uint64 {
			have := decrypt(t, lazy)
			for l, q := range params.Q() {
				have[l] = ring.CRed(have[l]+1, q)
			}
			return have
		}())

		require.Error(t, ct.AddPlain(rns[:1]))
	})

	t.Run(testString(params, "Arithmetic/Errors"), func(t *testing.T) {

		other := lwe1.CopyNew()
		other.Moduli[0]++

		ct := lwe0.CopyNew()
		require.Error(t, ct.Add(other))
		require.Error(t, ct.Sub(other))
		require.Error(t, ct.AddLazy(other))
		require.Error(t, ct.SubLazy(other))
	})

	t.Run(testString(params, "Arithmetic/Dimension=13"), func(t *testing.T) {

		const n = 13

		random := func() *Ciphertext {
			ct := &Ciphertext{
				Value:  make([][]uint64, len(params.Q())),
				Moduli: append([]uint64{}, params.Q()...),
			}
			for l, q := range ct.Moduli {
				ct.Value[l] = make([]uint64, n+1)
				require.NoError(t, sampling.UniformMod(tc.prng, q, ct.Value[l]))
			}
			return ct
		}

		ct0 := random()

		data, err := random().MarshalBinary()
		require.NoError(t, err)
		ct1 := new(Ciphertext)
		require.NoError(t, ct1.UnmarshalBinary(data))
		require.Equal(t, n, ct1.N())

		sum := ct0.CopyNew()
		require.NoError(t, sum.Add(ct1))
		for l, q := range params.Q() {
			for j := range sum.Value[l] {
				require.Equal(t, ring.CRed(ct0.Value[l][j]+ct1.Value[l][j], q), sum.Value[l][j])
			}
		}

		require.NoError(t, sum.Sub(ct1))
		require.True(t, sum.Equal(ct0))

		require.NoError(t, sum.AddLazy(ct1))
		require.NoError(t, sum.AddLazy(ct1))
		require.NoError(t, sum.SubLazy(ct1))
		sum.Reduce()
		for l, q := range params.Q() {
			for j := range sum.Value[l] {
				require.Equal(t, ring.CRed(ct0.Value[l][j]+ct1.Value[l][j], q), sum.Value[l][j])
			}
		}

		neg := ct0.CopyNew()
		neg.Negate()
		require.NoError(t, neg.Add(ct0))
		for l := range neg.Value {
			for _, v := range neg.Value[l] {
				require.Zero(t, v)
			}
		}

		bad := random()
		bad.Moduli[0] = 4
		data, err = bad.MarshalBinary()
		require.NoError(t, err)
		require.Error(t, new(Ciphertext).UnmarshalBinary(data))
	})
}

func testCoefficients(tc *testContext, t *testing.T) {

	params := tc.params
	N := params.N()

	t.Run(testString(params, "RemoveCoefficients"), func(t *testing.T) {

		ct := tc.newCiphertext(t)
		want := ct.CopyNew()

		indices := []int{0, 5, 5, N - 1}

		require.NoError(t, RemoveCoefficients(params, ct, indices))

		for l, c0 := range ct.Value[0].Coeffs {
			for i := range c0 {
				switch i {
				case 0, 5, N - 1:
					require.Zero(t, c0[i])
				default:
					require.Equal(t, want.Value[0].Coeffs[l][i], c0[i])
				}
			}
		}

		require.Equal(t, want.Value[1].Coeffs, ct.Value[1].Coeffs)
	})

	t.Run(testString(params, "KeepCoefficients"), func(t *testing.T) {

		ct := tc.newCiphertext(t)
		want := ct.CopyNew()

		require.NoError(t, KeepCoefficients(params, ct, []int{1, 2}))

		for l, c0 := range ct.Value[0].Coeffs {
			for i := range c0 {
				if i == 1 || i == 2 {
					require.Equal(t, want.Value[0].Coeffs[l][i], c0[i])
				} else {
					require.Zero(t, c0[i])
				}
			}
		}

		ct = tc.newCiphertext(t)
		want = ct.CopyNew()

		all := make([]int, N)
		for i := range all {
			all[i] = i
		}

		require.NoError(t, KeepCoefficients(params, ct, all))
		require.True(t, want.Equal(ct))
	})

	t.Run(testString(params, "Coefficients/Errors"), func(t *testing.T) {

		ct := tc.newCiphertext(t)

		require.Error(t, RemoveCoefficients(params, ct, []int{N}))
		require.Error(t, KeepCoefficients(params, ct, []int{-1}))
		require.Error(t, KeepCoefficients(params, ct, nil))

		all := make([]int, N)
		for i := range all {
			all[i] = i
		}

		require.Error(t, RemoveCoefficients(params, ct, all))

		ct.IsNTT = true
		require.Error(t, RemoveCoefficients(params, ct, []int{0}))
		require.Error(t, KeepCoefficients(params, ct, []int{0}))
	})
}

func testSerialization(tc *testContext, t *testing.T) {

	params := tc.params

	ct := tc.newCiphertext(t)

	lwe, err := ExtractNew(params, ct, 7)
	require.NoError(t, err)

	require.NoError(t, lwe.AddLazy(lwe.CopyNew()))

	t.Run(testString(params, "Serialization/MarshalBinary"), func(t *testing.T) {

		data, err := lwe.MarshalBinary()
		require.NoError(t, err)
		require.Len(t, data, lwe.BinarySize())

		have := new(Ciphertext)
		require.NoError(t, have.UnmarshalBinary(data))
		require.True(t, cmp.Equal(lwe, have))
		require.False(t, have.IsReduced())
	})

	t.Run(testString(params, "Serialization/WriterTo"), func(t *testing.T) {

		buf := new(bytes.Buffer)

		n, err := lwe.WriteTo(buf)
		require.NoError(t, err)
		require.Equal(t, int64(lwe.BinarySize()), n)

		have := new(Ciphertext)
		n, err = have.ReadFrom(buf)
		require.NoError(t, err)
		require.Equal(t, int64(lwe.BinarySize()), n)
		require.True(t, lwe.Equal(have))
	})
}
