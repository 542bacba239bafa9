// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

type testContext struct {
	params Parameters
	keys   *KeyBundle
	enc    *Encryptor
	dec    *Decryptor
	eval   *Evaluator
}

func newTestContext(t testing.TB, lit ParametersLiteral, seed string) *testContext {
	t.Helper()

	params, err := NewParametersFromLiteral(lit)
	require.NoError(t, err)

	kgPRNG, err := NewKeyedPRNG([]byte("keygen/" + seed))
	require.NoError(t, err)
	encPRNG, err := NewKeyedPRNG([]byte("encrypt/" + seed))
	require.NoError(t, err)

	keys := NewKeyGeneratorWithPRNG(params, kgPRNG).GenKeyBundle()

	return &testContext{
		params: params,
		keys:   keys,
		enc:    NewEncryptorWithPRNG(params, keys.PublicKey, encPRNG),
		dec:    NewDecryptor(params, keys.SecretKey),
		eval:   NewEvaluator(params, keys.EvaluationKeySet()),
	}
}

func TestRoundTrip(t *testing.T) {
	for _, lit := range []ParametersLiteral{PN64Q12289, PN256Q40961} {
		tc := newTestContext(t, lit, "roundtrip")

		t.Run(fmt.Sprintf("Hi/N=%d", lit.N), func(t *testing.T) {
			cts, err := tc.enc.EncryptString("Hi")
			require.NoError(t, err)
			require.Len(t, cts, 16)
			for _, ct := range cts {
				require.Equal(t, tc.params.N(), ct.N())
				require.Equal(t, tc.keys.ID, ct.KeyID)
			}

			msg, err := tc.dec.DecryptString(cts)
			require.NoError(t, err)
			require.Equal(t, "Hi", msg)
		})

		t.Run(fmt.Sprintf("Bits/N=%d", lit.N), func(t *testing.T) {
			const trials = 512
			correct := 0
			for i := 0; i < trials; i++ {
				m := uint64(i & 1)
				got, err := tc.dec.DecryptBit(tc.enc.EncryptBit(m))
				require.NoError(t, err)
				if got == m {
					correct++
				}
			}
			require.GreaterOrEqual(t, float64(correct)/trials, 0.99)
		})

		t.Run(fmt.Sprintf("Latin1/N=%d", lit.N), func(t *testing.T) {
			cts, err := tc.enc.EncryptString("café!")
			require.NoError(t, err)
			require.Len(t, cts, 40)

			msg, err := tc.dec.DecryptString(cts)
			require.NoError(t, err)
			require.Equal(t, "café!", msg)
		})
	}
}

func TestEncryptUnrepresentable(t *testing.T) {
	tc := newTestContext(t, PN64Q12289, "unrepresentable")

	_, err := tc.enc.EncryptString("π")
	require.ErrorIs(t, err, ErrUnrepresentable)
}

func TestDecryptTruncatesTrailingBits(t *testing.T) {
	tc := newTestContext(t, PN64Q12289, "truncate")

	cts, err := tc.enc.EncryptString("ok")
	require.NoError(t, err)

	msg, err := tc.dec.DecryptString(cts[:13])
	require.NoError(t, err)
	require.Equal(t, "o", msg)

	msg, err = tc.dec.DecryptString(cts[:7])
	require.NoError(t, err)
	require.Equal(t, "", msg)
}

func TestFreshNoise(t *testing.T) {
	tc := newTestContext(t, PN256Q40961, "fresh")

	cts := make([]*Ciphertext, 256)
	msgs := make([]uint64, len(cts))
	for i := range cts {
		msgs[i] = uint64(i % 2)
		cts[i] = tc.enc.EncryptBit(msgs[i])
		require.Equal(t, tc.params.FreshNoiseBound(), cts[i].NoiseBound)
	}

	ns, err := tc.dec.NoiseStats(cts, msgs)
	require.NoError(t, err)
	require.Less(t, ns.Max, tc.params.FreshNoiseBound())
	require.Less(t, ns.Max, tc.params.NoiseThreshold())
	require.GreaterOrEqual(t, ns.Max, ns.Mean)

	_, err = tc.dec.NoiseStats(cts, msgs[:1])
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestAdd(t *testing.T) {
	tc := newTestContext(t, PN256Q40961, "add")

	testCases := []struct {
		a, b, want uint64
	}{
		{0, 0, 0},
		{0, 1, 1},
		{1, 0, 1},
		{1, 1, 0},
	}

	for _, c := range testCases {
		t.Run(fmt.Sprintf("%d+%d", c.a, c.b), func(t *testing.T) {
			ctA := tc.enc.EncryptBit(c.a)
			ctB := tc.enc.EncryptBit(c.b)

			sum, err := tc.eval.Add(ctA, ctB)
			require.NoError(t, err)
			require.Equal(t, tc.keys.ID, sum.KeyID)

			got, err := tc.dec.DecryptBit(sum)
			require.NoError(t, err)
			require.Equal(t, c.want, got)

			// Noise of a sum never exceeds the sum of the operands' noise.
			noiseA, err := tc.dec.Noise(ctA, c.a)
			require.NoError(t, err)
			noiseB, err := tc.dec.Noise(ctB, c.b)
			require.NoError(t, err)
			noiseSum, err := tc.dec.Noise(sum, c.a+c.b)
			require.NoError(t, err)
			require.LessOrEqual(t, noiseSum, noiseA+noiseB)
			require.LessOrEqual(t, noiseSum, sum.NoiseBound)
			require.Equal(t, ctA.NoiseBound+ctB.NoiseBound+float64(tc.params.RoundingSlack()), sum.NoiseBound)
		})
	}

	t.Run("Chain", func(t *testing.T) {
		acc := tc.enc.EncryptBit(0)
		want := uint64(0)
		for i := 0; i < 16; i++ {
			m := uint64(i*7) % 2
			var err error
			acc, err = tc.eval.Add(acc, tc.enc.EncryptBit(m))
			require.NoError(t, err)
			want ^= m
		}
		got, err := tc.dec.DecryptBit(acc)
		require.NoError(t, err)
		require.Equal(t, want, got)
	})

	t.Run("BudgetExhausted", func(t *testing.T) {
		ct := tc.enc.EncryptBit(1)
		ct.NoiseBound = tc.params.NoiseThreshold()
		_, err := tc.dec.DecryptBit(ct)
		require.ErrorIs(t, err, ErrNoiseBudgetExhausted)
	})

	t.Run("NaNBound", func(t *testing.T) {
		ct := tc.enc.EncryptBit(1)
		ct.NoiseBound = math.NaN()
		_, err := tc.dec.DecryptBit(ct)
		require.ErrorIs(t, err, ErrNoiseBudgetExhausted)
	})
}

func TestAddStream(t *testing.T) {
	tc := newTestContext(t, PN64Q12289, "addstream")

	a, err := tc.enc.EncryptString("ab")
	require.NoError(t, err)
	b, err := tc.enc.EncryptString("  ")
	require.NoError(t, err)

	sum, err := tc.eval.AddStream(a, b)
	require.NoError(t, err)

	msg, err := tc.dec.DecryptString(sum)
	require.NoError(t, err)
	// XOR with 0x20 flips the case of ASCII letters.
	require.Equal(t, "AB", msg)

	_, err = tc.eval.AddStream(a, b[:8])
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestMul(t *testing.T) {
	tc := newTestContext(t, PN64Q12289, "mul")

	a := tc.enc.EncryptBit(1)
	b := tc.enc.EncryptBit(1)
	aCopy, bCopy := a.CopyNew(), b.CopyNew()

	t.Run("Tensor", func(t *testing.T) {
		tensor, err := tc.eval.Tensor(a, b)
		require.NoError(t, err)
		width := tc.params.N() + 1
		require.Len(t, tensor.Value, width*width)

		mod := tc.params.Modulus()
		va, vb := a.Vector(), b.Vector()
		for _, idx := range [][2]int{{0, 0}, {3, 5}, {width - 1, width - 1}, {width - 1, 0}} {
			require.Equal(t, mod.Mul(va[idx[0]], vb[idx[1]]), tensor.Value[idx[0]*width+idx[1]])
		}
	})

	t.Run("Shape", func(t *testing.T) {
		prod, err := tc.eval.Mul(a, b)
		require.NoError(t, err)
		require.Equal(t, tc.params.N(), prod.N())
		require.Len(t, prod.Vector(), tc.params.N()+1)
		require.Equal(t, tc.keys.ID, prod.KeyID)
		for _, c := range prod.Vector() {
			require.Less(t, c, tc.params.Q())
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		p0, err := tc.eval.Mul(a, b)
		require.NoError(t, err)
		p1, err := tc.eval.Mul(a, b)
		require.NoError(t, err)
		require.Equal(t, p0, p1)
		require.Equal(t, aCopy, a)
		require.Equal(t, bCopy, b)
	})

	t.Run("NoiseBudget", func(t *testing.T) {
		prod, err := tc.eval.Mul(a, b)
		require.NoError(t, err)
		require.GreaterOrEqual(t, prod.NoiseBound, tc.params.NoiseThreshold())

		_, err = tc.dec.DecryptBit(prod)
		require.ErrorIs(t, err, ErrNoiseBudgetExhausted)
	})

	t.Run("Stream", func(t *testing.T) {
		xs, err := tc.enc.EncryptString("x")
		require.NoError(t, err)
		ys, err := tc.enc.EncryptString("y")
		require.NoError(t, err)

		prods, err := tc.eval.MulStream(xs, ys)
		require.NoError(t, err)
		require.Len(t, prods, 8)

		_, err = tc.eval.MulStream(xs, ys[:1])
		require.ErrorIs(t, err, ErrShapeMismatch)
	})
}

func TestBootstrap(t *testing.T) {
	tc := newTestContext(t, PN64Q12289, "bootstrap")

	t.Run("Pure", func(t *testing.T) {
		ct := tc.enc.EncryptBit(1)
		orig := ct.CopyNew()

		b0, err := tc.eval.Bootstrap(ct)
		require.NoError(t, err)
		b1, err := tc.eval.Bootstrap(ct)
		require.NoError(t, err)

		require.Equal(t, b0, b1)
		require.Equal(t, orig, ct)
		require.Equal(t, tc.params.N(), b0.N())
		require.Equal(t, tc.eval.rescale(ct.V), b0.V)
		require.Less(t, b0.V, uint64(1)<<tc.params.BootstrapPrecision())
	})

	t.Run("ZeroMask", func(t *testing.T) {
		ct := NewCiphertext(tc.params.N())
		ct.V = tc.params.Scale()

		out, err := tc.eval.Bootstrap(ct)
		require.NoError(t, err)
		require.Equal(t, make([]uint64, tc.params.N()), out.U)
		// floor(6144·256/12289) = 127
		require.Equal(t, uint64(127), out.V)
		require.Equal(t, float64(uint64(1)<<tc.params.BootstrapPrecision()), out.NoiseBound)
	})

	t.Run("Rescale", func(t *testing.T) {
		q := tc.params.Q()
		require.Equal(t, uint64(0), tc.eval.rescale(0))
		require.Equal(t, uint64(255), tc.eval.rescale(q-1))
		require.Equal(t, uint64(128), tc.eval.rescale(q/2+1))
	})

	t.Run("Reference", func(t *testing.T) {
		q := tc.params.Q()
		n := tc.params.N()
		p := uint(tc.params.BootstrapPrecision())
		rescale := func(x uint64) uint64 { return (x << p) / q % (1 << p) }

		reference := func(mask []uint64, body uint64) ([]uint64, uint64) {
			acc := make([]uint64, n)
			for i := 0; i < n; i++ {
				c := rescale(mask[i])
				for k := range acc {
					acc[k] = (acc[k] + tc.keys.BootstrapKey.Value[i][k]*c) % q
				}
			}
			u := make([]uint64, n)
			for i, a := range acc {
				for j := 0; j < tc.params.DecompositionBits(); j++ {
					if a>>j&1 == 1 {
						for k := range u {
							u[k] = (u[k] + tc.keys.EvaluationKey.Value[i][j][k]) % q
						}
					}
				}
			}
			return u, rescale(body)
		}

		for _, m := range []uint64{0, 1, 1, 0} {
			ct := tc.enc.EncryptBit(m)
			out, err := tc.eval.Bootstrap(ct)
			require.NoError(t, err)
			u, v := reference(ct.U, ct.V)
			require.Equal(t, u, out.U)
			require.Equal(t, v, out.V)
		}

		prod, err := tc.eval.Tensor(tc.enc.EncryptBit(1), tc.enc.EncryptBit(1))
		require.NoError(t, err)
		out, err := tc.eval.BootstrapTensor(prod)
		require.NoError(t, err)
		u, v := reference(prod.Value[:n], prod.Value[len(prod.Value)-1])
		require.Equal(t, u, out.U)
		require.Equal(t, v, out.V)
	})

	t.Run("HandBuilt", func(t *testing.T) {
		params, err := NewParameters(2, 17, 2, 1, 2)
		require.NoError(t, err)
		require.Equal(t, 5, params.DecompositionBits())

		evk := &EvaluationKey{Value: make([][][]uint64, 2)}
		for i := range evk.Value {
			evk.Value[i] = make([][]uint64, 5)
			for j := range evk.Value[i] {
				evk.Value[i][j] = []uint64{uint64(5*i + j), uint64(j)}
			}
		}
		eks := &EvaluationKeySet{
			EvaluationKey: evk,
			BootstrapKey:  &BootstrapKey{Value: [][]uint64{{1, 2}, {3, 4}}},
		}
		require.NoError(t, eks.Check(params))

		// rescale: 9 -> 2, 13 -> 3, 5 -> 1. acc = 2·(1,2) + 3·(3,4) = (11,16).
		// 11 sets bits 0, 1 and 3 of row 0; 16 sets bit 4 of row 1.
		ct := &Ciphertext{U: []uint64{9, 13}, V: 5}
		out, err := NewEvaluator(params, eks).Bootstrap(ct)
		require.NoError(t, err)
		require.Equal(t, []uint64{13, 8}, out.U)
		require.Equal(t, uint64(1), out.V)
		require.Equal(t, 8.5, out.NoiseBound)
	})

	t.Run("Stream", func(t *testing.T) {
		cts, err := tc.enc.EncryptString("Hello")
		require.NoError(t, err)

		out, err := tc.eval.BootstrapStream(cts[:8])
		require.NoError(t, err)
		require.Len(t, out, 8)
	})

	t.Run("TensorShape", func(t *testing.T) {
		_, err := tc.eval.BootstrapTensor(&TensorCiphertext{Value: make([]uint64, 10)})
		require.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("MissingKeys", func(t *testing.T) {
		eval := NewEvaluator(tc.params, nil)
		_, err := eval.Bootstrap(tc.enc.EncryptBit(0))
		require.ErrorIs(t, err, ErrMissingEvaluationKeys)

		_, err = eval.Mul(tc.enc.EncryptBit(0), tc.enc.EncryptBit(1))
		require.ErrorIs(t, err, ErrMissingEvaluationKeys)

		// Addition needs no evaluation keys.
		_, err = eval.Add(tc.enc.EncryptBit(0), tc.enc.EncryptBit(1))
		require.NoError(t, err)
	})
}

func TestKeyIndependence(t *testing.T) {
	tc0 := newTestContext(t, PN256Q40961, "independence/0")
	tc1 := newTestContext(t, PN256Q40961, "independence/1")

	require.NotEqual(t, tc0.keys.SecretKey.Value, tc1.keys.SecretKey.Value)
	require.NotEqual(t, tc0.keys.ID, tc1.keys.ID)

	// Decryption does not check the bundle: a foreign key yields bits that
	// agree with the plaintext about half the time.
	const trials = 200
	agree := 0
	for i := 0; i < trials; i++ {
		m := uint64(i & 1)
		got, err := tc1.dec.DecryptBit(tc0.enc.EncryptBit(m))
		require.NoError(t, err)
		if got == m {
			agree++
		}
	}
	require.Greater(t, agree, trials*3/10)
	require.Less(t, agree, trials*7/10)
}

func TestOperandChecks(t *testing.T) {
	tc0 := newTestContext(t, PN64Q12289, "checks/0")
	tc1 := newTestContext(t, PN64Q12289, "checks/1")
	big := newTestContext(t, PN256Q40961, "checks/big")

	t.Run("KeyMismatch", func(t *testing.T) {
		_, err := tc0.eval.Add(tc0.enc.EncryptBit(0), tc1.enc.EncryptBit(0))
		require.ErrorIs(t, err, ErrKeyMismatch)

		_, err = tc0.eval.Bootstrap(tc1.enc.EncryptBit(0))
		require.ErrorIs(t, err, ErrKeyMismatch)

		_, err = NewEvaluator(tc0.params, nil).Add(tc0.enc.EncryptBit(0), tc1.enc.EncryptBit(0))
		require.ErrorIs(t, err, ErrKeyMismatch)
	})

	t.Run("UnknownKeyID", func(t *testing.T) {
		ct := tc1.enc.EncryptBit(1)
		ct.KeyID = KeyID{}
		_, err := tc0.eval.Add(tc0.enc.EncryptBit(0), ct)
		require.NoError(t, err)
	})

	t.Run("ShapeMismatch", func(t *testing.T) {
		_, err := tc0.eval.Add(tc0.enc.EncryptBit(0), big.enc.EncryptBit(0))
		require.ErrorIs(t, err, ErrShapeMismatch)

		_, err = tc0.dec.DecryptBit(big.enc.EncryptBit(0))
		require.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("OutOfRange", func(t *testing.T) {
		ct := tc0.enc.EncryptBit(0)
		ct.V = tc0.params.Q()
		_, err := tc0.eval.Bootstrap(ct)
		require.ErrorIs(t, err, ErrOutOfRange)

		_, err = tc0.dec.Phase(ct)
		require.ErrorIs(t, err, ErrOutOfRange)
	})
}
