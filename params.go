// Package lwe implements a bit-wise Learning-With-Errors homomorphic
// encryption scheme.
//
// Each plaintext bit is encrypted into an LWE sample [u | v] over Z_q under a
// public key (A, A·s + e). Ciphertexts support homomorphic addition and a
// tensor-product multiplication that is always followed by a
// bootstrap/key-switch step built from two evaluation keys:
//   - the bootstrap key, noisy encodings of scale·s_i·s
//   - the evaluation key, noisy encodings of 2^j·s_i·s for every bit position j
//
// The bootstrap is the simplified accumulate-then-key-switch gadget; it is not
// a blind rotation and gives no correctness guarantee on its output.
//
// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause
package lwe

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"
)

// maxLogQ bounds the modulus so that sums of two canonical values and
// Barrett reductions stay within uint64.
const maxLogQ = 61

// noiseTail is the number of standard deviations used for the fresh noise bound.
const noiseTail = 6.0

// ParametersLiteral is a user-friendly description of a parameter set
type ParametersLiteral struct {
	// N is the lattice dimension
	N int `json:"n" yaml:"n"`
	// Q is the prime ciphertext modulus
	Q uint64 `json:"q" yaml:"q"`
	// T is the plaintext modulus (2 for bits)
	T uint64 `json:"t" yaml:"t"`
	// StdDev is the standard deviation of the error distribution
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	// BootstrapPrecision is the bit-width the bootstrap rescales to
	BootstrapPrecision int `json:"bootstrap_precision" yaml:"bootstrap_precision"`
}

// Parameters is a validated, immutable parameter set.
type Parameters struct {
	n         int
	q         uint64
	t         uint64
	stdDev    float64
	scale     uint64
	precision int
	mod       Modulus
}

// NewParameters validates the given values and returns the parameter set.
func NewParameters(n int, q, t uint64, stdDev float64, bootstrapPrecision int) (Parameters, error) {
	return NewParametersFromLiteral(ParametersLiteral{
		N:                  n,
		Q:                  q,
		T:                  t,
		StdDev:             stdDev,
		BootstrapPrecision: bootstrapPrecision,
	})
}

// NewParametersFromLiteral creates Parameters from a literal
func NewParametersFromLiteral(lit ParametersLiteral) (params Parameters, err error) {
	if err = lit.validate(); err != nil {
		return Parameters{}, err
	}

	return Parameters{
		n:         lit.N,
		q:         lit.Q,
		t:         lit.T,
		stdDev:    lit.StdDev,
		scale:     lit.Q / lit.T,
		precision: lit.BootstrapPrecision,
		mod:       NewModulus(lit.Q),
	}, nil
}

func (lit ParametersLiteral) validate() error {
	switch {
	case lit.N <= 0:
		return fmt.Errorf("%w: n=%d must be positive", ErrInvalidParameters, lit.N)
	case lit.Q < 3 || bits.Len64(lit.Q) > maxLogQ:
		return fmt.Errorf("%w: q=%d must be in [3, 2^%d)", ErrInvalidParameters, lit.Q, maxLogQ)
	case !new(big.Int).SetUint64(lit.Q).ProbablyPrime(20):
		return fmt.Errorf("%w: q=%d is not prime", ErrInvalidParameters, lit.Q)
	case lit.T < 2 || lit.T >= lit.Q:
		return fmt.Errorf("%w: t=%d must be in [2, q)", ErrInvalidParameters, lit.T)
	case !(lit.StdDev > 0) || math.IsInf(lit.StdDev, 0):
		return fmt.Errorf("%w: std_dev=%v must be positive and finite", ErrInvalidParameters, lit.StdDev)
	case lit.BootstrapPrecision <= 0 || lit.BootstrapPrecision >= bits.Len64(lit.Q):
		return fmt.Errorf("%w: q=%d must exceed 2^bootstrap_precision (precision=%d)",
			ErrInvalidParameters, lit.Q, lit.BootstrapPrecision)
	}
	return nil
}

// N returns the lattice dimension.
func (p Parameters) N() int {
	return p.n
}

// Q returns the ciphertext modulus.
func (p Parameters) Q() uint64 {
	return p.q
}

// T returns the plaintext modulus.
func (p Parameters) T() uint64 {
	return p.t
}

// StdDev returns the standard deviation of the error distribution.
func (p Parameters) StdDev() float64 {
	return p.stdDev
}

// Scale returns floor(q/t), the factor a plaintext is multiplied by before
// being embedded in a ciphertext.
func (p Parameters) Scale() uint64 {
	return p.scale
}

// BootstrapPrecision returns the bit-width used to rescale ciphertexts
// during bootstrapping.
func (p Parameters) BootstrapPrecision() int {
	return p.precision
}

// DecompositionBits returns floor(log2 q)+1, the number of binary digits
// of the key-switching decomposition.
func (p Parameters) DecompositionBits() int {
	return bits.Len64(p.q)
}

// Modulus returns the modular arithmetic context for q.
func (p Parameters) Modulus() Modulus {
	return p.mod
}

// NoiseThreshold returns q/(2t). Decryption is correct while the noise
// magnitude stays strictly below it.
func (p Parameters) NoiseThreshold() float64 {
	return float64(p.q) / (2 * float64(p.t))
}

// FreshNoiseBound returns the noise bound assigned to a fresh encryption:
// noiseTail standard deviations of r·e + e2 - e1·s.
func (p Parameters) FreshNoiseBound() float64 {
	return noiseTail * p.stdDev * math.Sqrt(float64(2*p.n+1))
}

// RoundingSlack returns q - t·scale, the offset introduced each time a sum of
// plaintexts wraps around t.
func (p Parameters) RoundingSlack() uint64 {
	return p.q - p.t*p.scale
}

// Literal returns the literal the parameters were built from.
func (p Parameters) Literal() ParametersLiteral {
	return ParametersLiteral{
		N:                  p.n,
		Q:                  p.q,
		T:                  p.t,
		StdDev:             p.stdDev,
		BootstrapPrecision: p.precision,
	}
}

// Equal reports whether two parameter sets are identical.
func (p Parameters) Equal(other Parameters) bool {
	return p.Literal() == other.Literal()
}

// String implements fmt.Stringer.
func (p Parameters) String() string {
	return fmt.Sprintf("n=%d q=%d t=%d std_dev=%g p=%d", p.n, p.q, p.t, p.stdDev, p.precision)
}
