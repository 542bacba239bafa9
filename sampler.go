// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"encoding/binary"
	"io"
	"math"
	"math/bits"

	"github.com/luxfi/lattice/v7/utils/sampling"
)

// Sampler draws the uniform, binary and Gaussian values used by key
// generation and encryption from a PRNG.
// A Sampler is not safe for concurrent use.
type Sampler struct {
	prng  io.Reader
	mod   Modulus
	mask  uint64
	sigma float64
	bound float64
	buf   []byte
}

// NewPRNG returns a PRNG seeded from crypto/rand.
func NewPRNG() io.Reader {
	prng, err := sampling.NewPRNG()
	if err != nil {
		panic(err)
	}
	return prng
}

// NewKeyedPRNG returns a deterministic PRNG whose output is fully
// determined by key. Intended for tests and reproducible key generation.
func NewKeyedPRNG(key []byte) (io.Reader, error) {
	prng, err := sampling.NewKeyedPRNG(key)
	if err != nil {
		return nil, err
	}
	return prng, nil
}

// NewSampler creates a sampler for params drawing bytes from prng.
func NewSampler(params Parameters, prng io.Reader) *Sampler {
	q := params.Q()
	return &Sampler{
		prng:  prng,
		mod:   params.Modulus(),
		mask:  (uint64(1) << bits.Len64(q-1)) - 1,
		sigma: params.StdDev(),
		bound: noiseTail * params.StdDev(),
		buf:   make([]byte, 8),
	}
}

func (s *Sampler) read(p []byte) {
	if _, err := io.ReadFull(s.prng, p); err != nil {
		panic(err)
	}
}

func (s *Sampler) uint64() uint64 {
	s.read(s.buf)
	return binary.LittleEndian.Uint64(s.buf)
}

// float64 returns a uniform value in [0, 1).
func (s *Sampler) float64() float64 {
	return float64(s.uint64()>>11) / (1 << 53)
}

// Bit returns a uniform value in {0, 1}.
func (s *Sampler) Bit() uint64 {
	return s.uint64() & 1
}

// Bits returns n independent uniform bits.
func (s *Sampler) Bits(n int) []uint64 {
	raw := make([]byte, (n+7)/8)
	s.read(raw)
	out := make([]uint64, n)
	for i := range out {
		out[i] = uint64(raw[i>>3]>>(i&7)) & 1
	}
	return out
}

// Uniform returns a uniform value in [0, q).
func (s *Sampler) Uniform() uint64 {
	for {
		if v := s.uint64() & s.mask; v < s.mod.Q() {
			return v
		}
	}
}

// UniformVec returns n uniform values in [0, q).
func (s *Sampler) UniformVec(n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = s.Uniform()
	}
	return out
}

// Gaussian returns a sample of the centered normal distribution rounded to
// the nearest integer. Samples beyond noiseTail standard deviations are
// rejected.
func (s *Sampler) Gaussian() int64 {
	for {
		// Box-Muller; 1-u lies in (0, 1] so the logarithm is finite.
		u1 := 1 - s.float64()
		u2 := s.float64()
		x := s.sigma * math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
		if math.Abs(x) <= s.bound {
			return int64(math.Round(x))
		}
	}
}

// GaussianMod returns a rounded Gaussian sample reduced into [0, q).
func (s *Sampler) GaussianMod() uint64 {
	return s.mod.FromInt64(s.Gaussian())
}

// GaussianVec returns n rounded Gaussian samples reduced into [0, q).
func (s *Sampler) GaussianVec(n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = s.GaussianMod()
	}
	return out
}
