// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"github.com/luxfi/lattice/v7/ring"
)

// Modulus performs arithmetic in Z_q. Every method takes canonical
// representatives in [0, q) and returns a canonical representative.
type Modulus struct {
	q    uint64
	bred [2]uint64
}

// NewModulus returns the arithmetic context for q.
func NewModulus(q uint64) Modulus {
	return Modulus{q: q, bred: ring.GenBRedConstant(q)}
}

// Q returns the modulus.
func (m Modulus) Q() uint64 {
	return m.q
}

// Reduce returns x mod q for any 64-bit x.
func (m Modulus) Reduce(x uint64) uint64 {
	return ring.BRedAdd(x, m.q, m.bred)
}

// Add returns a + b mod q.
func (m Modulus) Add(a, b uint64) uint64 {
	return ring.CRed(a+b, m.q)
}

// Sub returns a - b mod q.
func (m Modulus) Sub(a, b uint64) uint64 {
	return ring.CRed(a+m.q-b, m.q)
}

// Neg returns -a mod q.
func (m Modulus) Neg(a uint64) uint64 {
	if a == 0 {
		return 0
	}
	return m.q - a
}

// Mul returns a * b mod q.
func (m Modulus) Mul(a, b uint64) uint64 {
	return ring.BRed(a, b, m.q, m.bred)
}

// FromInt64 maps a signed integer to its canonical representative.
func (m Modulus) FromInt64(x int64) uint64 {
	if x >= 0 {
		return m.Reduce(uint64(x))
	}
	return m.Neg(m.Reduce(uint64(-x)))
}

// Centered returns the representative of a in (-q/2, q/2].
func (m Modulus) Centered(a uint64) int64 {
	if a > m.q>>1 {
		return int64(a) - int64(m.q)
	}
	return int64(a)
}

// AddVec sets out = a + b mod q. out may alias a or b.
func (m Modulus) AddVec(a, b, out []uint64) {
	for i := range out {
		out[i] = m.Add(a[i], b[i])
	}
}

// SubVec sets out = a - b mod q. out may alias a or b.
func (m Modulus) SubVec(a, b, out []uint64) {
	for i := range out {
		out[i] = m.Sub(a[i], b[i])
	}
}

// ScalarMulVec sets out = c·a mod q. out may alias a.
func (m Modulus) ScalarMulVec(a []uint64, c uint64, out []uint64) {
	for i := range out {
		out[i] = m.Mul(a[i], c)
	}
}

// ScalarMulAddVec sets out = out + c·a mod q.
func (m Modulus) ScalarMulAddVec(a []uint64, c uint64, out []uint64) {
	for i := range out {
		out[i] = m.Add(out[i], m.Mul(a[i], c))
	}
}

// Dot returns <a, b> mod q.
func (m Modulus) Dot(a, b []uint64) (r uint64) {
	for i := range a {
		r = m.Add(r, m.Mul(a[i], b[i]))
	}
	return
}
