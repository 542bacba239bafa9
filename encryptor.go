// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"fmt"
	"io"
)

// Encryptor encrypts bits under a public key.
// An Encryptor is not safe for concurrent use; see ShallowCopy.
type Encryptor struct {
	params  Parameters
	mod     Modulus
	pk      *PublicKey
	keyID   KeyID
	sampler *Sampler
}

// NewEncryptor creates a new encryptor from a public key
func NewEncryptor(params Parameters, pk *PublicKey) *Encryptor {
	return NewEncryptorWithPRNG(params, pk, NewPRNG())
}

// NewEncryptorWithPRNG creates a new encryptor drawing randomness from prng.
func NewEncryptorWithPRNG(params Parameters, pk *PublicKey, prng io.Reader) *Encryptor {
	return &Encryptor{
		params:  params,
		mod:     params.Modulus(),
		pk:      pk,
		keyID:   pk.ID(),
		sampler: NewSampler(params, prng),
	}
}

// ShallowCopy returns an encryptor sharing the public key but with its own
// PRNG, safe to use concurrently with enc.
func (enc *Encryptor) ShallowCopy() *Encryptor {
	return &Encryptor{
		params:  enc.params,
		mod:     enc.mod,
		pk:      enc.pk,
		keyID:   enc.keyID,
		sampler: NewSampler(enc.params, NewPRNG()),
	}
}

// EncryptBit encrypts m mod t:
// u = r·A + e1, v = r·b + e2 + scale·m, with r binary and e1, e2 Gaussian.
func (enc *Encryptor) EncryptBit(m uint64) *Ciphertext {
	n := enc.params.N()

	e1 := enc.sampler.GaussianVec(n)
	e2 := enc.sampler.GaussianMod()
	r := enc.sampler.Bits(n)

	ct := &Ciphertext{
		U:          e1,
		KeyID:      enc.keyID,
		NoiseBound: enc.params.FreshNoiseBound(),
	}

	v := enc.mod.Add(e2, enc.mod.Mul(enc.params.Scale(), m%enc.params.T()))
	for i, ri := range r {
		if ri == 0 {
			continue
		}
		enc.mod.AddVec(ct.U, enc.pk.A[i], ct.U)
		v = enc.mod.Add(v, enc.pk.B[i])
	}
	ct.V = v

	return ct
}

// EncryptBytes encrypts data bit by bit, 8 ciphertexts per byte, most
// significant bit first.
func (enc *Encryptor) EncryptBytes(data []byte) []*Ciphertext {
	bits := BytesToBits(data)
	cts := make([]*Ciphertext, len(bits))
	for i, bit := range bits {
		cts[i] = enc.EncryptBit(bit)
	}
	return cts
}

// EncryptString encrypts a text message, one ciphertext per bit in message order.
func (enc *Encryptor) EncryptString(msg string) ([]*Ciphertext, error) {
	data, err := EncodeText(msg)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return enc.EncryptBytes(data), nil
}
