// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"fmt"
	"slices"
)

// Ciphertext is an LWE encryption [U | V] of one plaintext bit.
type Ciphertext struct {
	// U is the length-n mask
	U []uint64
	// V is the body
	V uint64
	// KeyID is the bundle the ciphertext was encrypted under
	KeyID KeyID
	// NoiseBound is an upper estimate of |V - <U, s> - scale·m|
	NoiseBound float64
}

// NewCiphertext allocates a zero ciphertext of dimension n.
func NewCiphertext(n int) *Ciphertext {
	return &Ciphertext{U: make([]uint64, n)}
}

// N returns the dimension of the mask.
func (ct *Ciphertext) N() int {
	return len(ct.U)
}

// check verifies that ct has dimension n and canonical values mod q.
func (ct *Ciphertext) check(params Parameters) error {
	if ct.N() != params.N() {
		return fmt.Errorf("%w: got dimension %d, want %d", ErrShapeMismatch, ct.N(), params.N())
	}
	q := params.Q()
	if ct.V >= q {
		return fmt.Errorf("%w: body %d >= q=%d", ErrOutOfRange, ct.V, q)
	}
	for i, c := range ct.U {
		if c >= q {
			return fmt.Errorf("%w: mask[%d]=%d >= q=%d", ErrOutOfRange, i, c, q)
		}
	}
	return nil
}

// Vector returns the flat length-(n+1) layout [u | v].
func (ct *Ciphertext) Vector() []uint64 {
	return append(slices.Clone(ct.U), ct.V)
}

// CopyNew returns a deep copy of ct.
func (ct *Ciphertext) CopyNew() *Ciphertext {
	return &Ciphertext{
		U:          slices.Clone(ct.U),
		V:          ct.V,
		KeyID:      ct.KeyID,
		NoiseBound: ct.NoiseBound,
	}
}

// CiphertextFromVector builds a ciphertext from the flat layout [u | v].
// The noise bound of the result is unknown and set to zero.
func CiphertextFromVector(vec []uint64, id KeyID) (*Ciphertext, error) {
	if len(vec) < 2 {
		return nil, fmt.Errorf("%w: vector of length %d", ErrShapeMismatch, len(vec))
	}
	return &Ciphertext{
		U:     slices.Clone(vec[:len(vec)-1]),
		V:     vec[len(vec)-1],
		KeyID: id,
	}, nil
}

// TensorCiphertext is the flattened outer product of two ciphertext vectors,
// of length (n+1)^2. It only exists between the tensor product and the
// bootstrap of a multiplication.
type TensorCiphertext struct {
	Value []uint64
	KeyID KeyID
}

// mask returns every coordinate but the last.
func (tc *TensorCiphertext) mask() []uint64 {
	return tc.Value[:len(tc.Value)-1]
}

// body returns the last coordinate.
func (tc *TensorCiphertext) body() uint64 {
	return tc.Value[len(tc.Value)-1]
}
