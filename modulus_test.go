// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"fmt"
	"math/bits"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModulus(t *testing.T) {
	for _, q := range []uint64{12289, 40961, 1<<61 - 1} {
		t.Run(fmt.Sprintf("Q=%d", q), func(t *testing.T) {
			mod := NewModulus(q)
			require.Equal(t, q, mod.Q())

			prng, err := NewKeyedPRNG([]byte(fmt.Sprintf("modulus/%d", q)))
			require.NoError(t, err)
			params, err := NewParameters(8, q, 2, 3.2, 4)
			require.NoError(t, err)
			s := NewSampler(params, prng)

			mulRef := func(a, b uint64) uint64 {
				hi, lo := bits.Mul64(a, b)
				_, rem := bits.Div64(hi, lo, q)
				return rem
			}

			for i := 0; i < 1000; i++ {
				a, b := s.Uniform(), s.Uniform()
				require.Equal(t, (a+b)%q, mod.Add(a, b))
				require.Equal(t, (a+q-b)%q, mod.Sub(a, b))
				require.Equal(t, mulRef(a, b), mod.Mul(a, b))
				require.Equal(t, uint64(0), mod.Add(a, mod.Neg(a)))
			}

			require.Equal(t, uint64(0), mod.Neg(0))
			require.Equal(t, q-1, mod.FromInt64(-1))
			require.Equal(t, uint64(5), mod.FromInt64(5))
			require.Equal(t, int64(-1), mod.Centered(q-1))
			require.Equal(t, int64(q>>1), mod.Centered(q>>1))
			require.Equal(t, uint64(7)%q, mod.Reduce(7))
			require.Equal(t, ^uint64(0)%q, mod.Reduce(^uint64(0)))
		})
	}
}

func TestModulusVectors(t *testing.T) {
	mod := NewModulus(17)

	a := []uint64{1, 5, 16}
	b := []uint64{16, 12, 2}

	out := make([]uint64, 3)
	mod.AddVec(a, b, out)
	require.Equal(t, []uint64{0, 0, 1}, out)

	mod.SubVec(a, b, out)
	require.Equal(t, []uint64{2, 10, 14}, out)

	mod.ScalarMulVec(a, 3, out)
	require.Equal(t, []uint64{3, 15, 14}, out)

	mod.ScalarMulAddVec(b, 2, out)
	require.Equal(t, []uint64{1, 5, 1}, out)

	// 1·16 + 5·12 + 16·2 = 108 = 6·17 + 6
	require.Equal(t, uint64(6), mod.Dot(a, b))
}
