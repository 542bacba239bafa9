// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"math"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/require"
)

func newTestSampler(t *testing.T, key string) (Parameters, *Sampler) {
	t.Helper()
	params, err := NewParametersFromLiteral(PN256Q40961)
	require.NoError(t, err)
	prng, err := NewKeyedPRNG([]byte(key))
	require.NoError(t, err)
	return params, NewSampler(params, prng)
}

func TestSamplerDeterminism(t *testing.T) {
	_, s0 := newTestSampler(t, "sampler")
	_, s1 := newTestSampler(t, "sampler")
	_, s2 := newTestSampler(t, "sampler/other")

	v0 := s0.UniformVec(64)
	require.Equal(t, v0, s1.UniformVec(64))
	require.NotEqual(t, v0, s2.UniformVec(64))
}

func TestSamplerRanges(t *testing.T) {
	params, s := newTestSampler(t, "ranges")
	q := params.Q()

	t.Run("Uniform", func(t *testing.T) {
		for _, v := range s.UniformVec(4096) {
			require.Less(t, v, q)
		}
	})

	t.Run("Bits", func(t *testing.T) {
		ones := 0
		for _, b := range s.Bits(4099) {
			require.LessOrEqual(t, b, uint64(1))
			ones += int(b)
		}
		require.InDelta(t, 2049, ones, 300)

		require.Empty(t, s.Bits(0))
		require.LessOrEqual(t, s.Bit(), uint64(1))
	})

	t.Run("Gaussian", func(t *testing.T) {
		bound := int64(math.Round(noiseTail * params.StdDev()))

		data := make(stats.Float64Data, 10000)
		for i := range data {
			x := s.Gaussian()
			require.LessOrEqual(t, x, bound)
			require.GreaterOrEqual(t, x, -bound)
			data[i] = float64(x)
		}

		mean, err := stats.Mean(data)
		require.NoError(t, err)
		require.InDelta(t, 0, mean, 0.2)

		stddev, err := stats.StandardDeviation(data)
		require.NoError(t, err)
		require.InDelta(t, params.StdDev(), stddev, 0.2)
	})

	t.Run("GaussianMod", func(t *testing.T) {
		mod := params.Modulus()
		for _, v := range s.GaussianVec(1024) {
			require.Less(t, v, q)
			c := mod.Centered(v)
			require.LessOrEqual(t, math.Abs(float64(c)), noiseTail*params.StdDev()+1)
		}
	})
}
