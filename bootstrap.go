// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"fmt"
	"math/bits"
)

// Bootstrap refreshes a ciphertext with the bootstrap and evaluation keys.
//
// The procedure rescales the ciphertext to BootstrapPrecision bits,
// accumulates bootstrap_key[i]·u_scaled[i] over the mask, key-switches the
// accumulator through its binary decomposition and appends the rescaled
// body. It is a pure function of its inputs.
//
// The output mask is a sum of evaluation-key rows, each masked by a uniform
// term that no party knows; whenever at least one row is added the phase of
// the output is uniform, and the returned ciphertext carries an exhausted
// noise budget.
func (eval *Evaluator) Bootstrap(ct *Ciphertext) (*Ciphertext, error) {
	if err := eval.checkOperand(ct); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return eval.bootstrap(ct.U, ct.V, ct.KeyID)
}

// BootstrapTensor bootstraps the output of a tensor product back to a
// ciphertext of dimension n. Only the first n mask coordinates take part in
// the accumulation.
func (eval *Evaluator) BootstrapTensor(tc *TensorCiphertext) (*Ciphertext, error) {
	if width := eval.params.N() + 1; len(tc.Value) != width*width {
		return nil, fmt.Errorf("bootstrap: %w: tensor of length %d, want %d",
			ErrShapeMismatch, len(tc.Value), width*width)
	}
	return eval.bootstrap(tc.mask(), tc.body(), tc.KeyID)
}

func (eval *Evaluator) bootstrap(mask []uint64, body uint64, id KeyID) (*Ciphertext, error) {
	if eval.keys == nil {
		return nil, fmt.Errorf("bootstrap: %w", ErrMissingEvaluationKeys)
	}
	if !id.compatible(eval.keys.ID) {
		return nil, fmt.Errorf("bootstrap: %w: ciphertext %s, evaluation keys %s", ErrKeyMismatch, id, eval.keys.ID)
	}

	acc := eval.accumulate(mask)
	u, touched := eval.keySwitch(acc)

	out := &Ciphertext{
		U:     u,
		V:     eval.rescale(body),
		KeyID: eval.keys.ID,
	}
	if touched {
		out.NoiseBound = float64(eval.params.Q()) / 2
	} else {
		out.NoiseBound = float64(uint64(1) << eval.params.BootstrapPrecision())
	}
	return out, nil
}

// rescale returns floor(x·2^p/q) mod 2^p.
func (eval *Evaluator) rescale(x uint64) uint64 {
	p := uint(eval.params.BootstrapPrecision())
	hi, lo := bits.Mul64(x, uint64(1)<<p)
	quo, _ := bits.Div64(hi, lo, eval.params.Q())
	return quo & (uint64(1)<<p - 1)
}

// accumulate returns sum_i bootstrap_key[i]·rescale(mask[i]) over i < n.
func (eval *Evaluator) accumulate(mask []uint64) []uint64 {
	n := eval.params.N()
	bsk := eval.keys.BootstrapKey.Value

	acc := make([]uint64, n)
	for i := 0; i < n; i++ {
		if c := eval.rescale(mask[i]); c != 0 {
			eval.mod.ScalarMulAddVec(bsk[i], c, acc)
		}
	}
	return acc
}

// keySwitch decomposes every accumulator entry into DecompositionBits
// binary digits, least significant first, and sums the evaluation-key slice
// of every set digit. It reports whether any slice was added.
func (eval *Evaluator) keySwitch(acc []uint64) (out []uint64, touched bool) {
	evk := eval.keys.EvaluationKey
	logQ := eval.params.DecompositionBits()

	out = make([]uint64, eval.params.N())
	for i, a := range acc {
		for j := 0; j < logQ; j++ {
			if (a>>j)&1 == 1 {
				eval.mod.AddVec(out, evk.Slice(i, j), out)
				touched = true
			}
		}
	}
	return out, touched
}
