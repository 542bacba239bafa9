// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"fmt"
)

// Evaluator evaluates homomorphic operations on ciphertexts.
// It only holds public evaluation material and is safe for concurrent use.
type Evaluator struct {
	params Parameters
	mod    Modulus
	keys   *EvaluationKeySet
}

// NewEvaluator creates a new evaluator. keys may be nil for an evaluator
// that only performs additions.
func NewEvaluator(params Parameters, keys *EvaluationKeySet) *Evaluator {
	return &Evaluator{
		params: params,
		mod:    params.Modulus(),
		keys:   keys,
	}
}

func (eval *Evaluator) checkOperand(ct *Ciphertext) error {
	if err := ct.check(eval.params); err != nil {
		return err
	}
	if eval.keys != nil && !ct.KeyID.compatible(eval.keys.ID) {
		return fmt.Errorf("%w: ciphertext %s, evaluation keys %s", ErrKeyMismatch, ct.KeyID, eval.keys.ID)
	}
	return nil
}

func (eval *Evaluator) checkPair(a, b *Ciphertext) error {
	if err := eval.checkOperand(a); err != nil {
		return err
	}
	if err := eval.checkOperand(b); err != nil {
		return err
	}
	if !a.KeyID.compatible(b.KeyID) {
		return fmt.Errorf("%w: operands %s and %s", ErrKeyMismatch, a.KeyID, b.KeyID)
	}
	return nil
}

func mergeKeyID(a, b KeyID) KeyID {
	if a.IsZero() {
		return b
	}
	return a
}

// Add returns a + b mod q. The noise bound of the result is the sum of the
// operands' bounds plus the rounding slack q - t·scale.
func (eval *Evaluator) Add(a, b *Ciphertext) (*Ciphertext, error) {
	if err := eval.checkPair(a, b); err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}

	out := NewCiphertext(eval.params.N())
	eval.mod.AddVec(a.U, b.U, out.U)
	out.V = eval.mod.Add(a.V, b.V)
	out.KeyID = mergeKeyID(a.KeyID, b.KeyID)
	out.NoiseBound = a.NoiseBound + b.NoiseBound + float64(eval.params.RoundingSlack())

	return out, nil
}

// Tensor returns the flattened outer product [u|v]_a ⊗ [u|v]_b mod q.
func (eval *Evaluator) Tensor(a, b *Ciphertext) (*TensorCiphertext, error) {
	if err := eval.checkPair(a, b); err != nil {
		return nil, fmt.Errorf("tensor: %w", err)
	}

	va, vb := a.Vector(), b.Vector()
	width := len(vb)

	out := &TensorCiphertext{
		Value: make([]uint64, len(va)*width),
		KeyID: mergeKeyID(a.KeyID, b.KeyID),
	}
	for i, x := range va {
		eval.mod.ScalarMulVec(vb, x, out.Value[i*width:(i+1)*width])
	}
	return out, nil
}

// Mul multiplies two ciphertexts: tensor product followed by a mandatory
// bootstrap back to dimension n.
func (eval *Evaluator) Mul(a, b *Ciphertext) (*Ciphertext, error) {
	tc, err := eval.Tensor(a, b)
	if err != nil {
		return nil, fmt.Errorf("mul: %w", err)
	}

	out, err := eval.BootstrapTensor(tc)
	if err != nil {
		return nil, fmt.Errorf("mul: %w", err)
	}
	return out, nil
}

// AddStream adds two ciphertext sequences position by position.
func (eval *Evaluator) AddStream(a, b []*Ciphertext) ([]*Ciphertext, error) {
	return eval.zipStream(a, b, eval.Add)
}

// MulStream multiplies two ciphertext sequences position by position.
func (eval *Evaluator) MulStream(a, b []*Ciphertext) ([]*Ciphertext, error) {
	return eval.zipStream(a, b, eval.Mul)
}

// BootstrapStream bootstraps every ciphertext of a sequence.
func (eval *Evaluator) BootstrapStream(cts []*Ciphertext) ([]*Ciphertext, error) {
	out := make([]*Ciphertext, len(cts))
	for i, ct := range cts {
		res, err := eval.Bootstrap(ct)
		if err != nil {
			return nil, fmt.Errorf("ciphertext %d: %w", i, err)
		}
		out[i] = res
	}
	return out, nil
}

func (eval *Evaluator) zipStream(a, b []*Ciphertext, op func(a, b *Ciphertext) (*Ciphertext, error)) ([]*Ciphertext, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: streams of length %d and %d", ErrShapeMismatch, len(a), len(b))
	}

	out := make([]*Ciphertext, len(a))
	for i := range a {
		res, err := op(a[i], b[i])
		if err != nil {
			return nil, fmt.Errorf("ciphertext %d: %w", i, err)
		}
		out[i] = res
	}
	return out, nil
}
