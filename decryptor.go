// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"fmt"
	"math/bits"
)

// Decryptor decrypts ciphertexts with the secret key.
// Decryptor is safe for concurrent use.
type Decryptor struct {
	params Parameters
	mod    Modulus
	sk     *SecretKey
}

// NewDecryptor creates a new decryptor from secret key
func NewDecryptor(params Parameters, sk *SecretKey) *Decryptor {
	return &Decryptor{
		params: params,
		mod:    params.Modulus(),
		sk:     sk,
	}
}

// Phase returns v - <u, s> mod q.
func (dec *Decryptor) Phase(ct *Ciphertext) (uint64, error) {
	if err := ct.check(dec.params); err != nil {
		return 0, err
	}
	return dec.mod.Sub(ct.V, dec.mod.Dot(ct.U, dec.sk.Value)), nil
}

// decode returns round(phase·t/q) mod t.
func (dec *Decryptor) decode(phase uint64) uint64 {
	q, t := dec.params.Q(), dec.params.T()
	hi, lo := bits.Mul64(phase, t)
	lo, carry := bits.Add64(lo, q>>1, 0)
	quo, _ := bits.Div64(hi+carry, lo, q)
	return quo % t
}

// DecryptBit decrypts a single ciphertext. It fails with
// ErrNoiseBudgetExhausted when the tracked noise bound no longer guarantees
// a correct result.
func (dec *Decryptor) DecryptBit(ct *Ciphertext) (uint64, error) {
	// Written negated so that a NaN bound is rejected.
	if !(ct.NoiseBound < dec.params.NoiseThreshold()) {
		return 0, fmt.Errorf("%w: bound %.1f, threshold %.1f",
			ErrNoiseBudgetExhausted, ct.NoiseBound, dec.params.NoiseThreshold())
	}

	phase, err := dec.Phase(ct)
	if err != nil {
		return 0, err
	}
	return dec.decode(phase), nil
}

// DecryptBytes decrypts a ciphertext sequence 8 bits per byte. Trailing
// bits that do not form a whole byte are dropped.
func (dec *Decryptor) DecryptBytes(cts []*Ciphertext) ([]byte, error) {
	values := make([]uint64, len(cts))
	for i, ct := range cts {
		v, err := dec.DecryptBit(ct)
		if err != nil {
			return nil, fmt.Errorf("ciphertext %d: %w", i, err)
		}
		values[i] = v
	}
	return BitsToBytes(values), nil
}

// DecryptString decrypts a ciphertext sequence back to text.
func (dec *Decryptor) DecryptString(cts []*Ciphertext) (string, error) {
	data, err := dec.DecryptBytes(cts)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return DecodeText(data), nil
}
