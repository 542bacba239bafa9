// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"io"
)

// KeyGenerator generates key bundles.
// A KeyGenerator is not safe for concurrent use.
type KeyGenerator struct {
	params  Parameters
	mod     Modulus
	sampler *Sampler
}

// NewKeyGenerator creates a key generator drawing randomness from crypto/rand.
func NewKeyGenerator(params Parameters) *KeyGenerator {
	return NewKeyGeneratorWithPRNG(params, NewPRNG())
}

// NewKeyGeneratorWithPRNG creates a key generator drawing randomness from prng.
func NewKeyGeneratorWithPRNG(params Parameters, prng io.Reader) *KeyGenerator {
	return &KeyGenerator{
		params:  params,
		mod:     params.Modulus(),
		sampler: NewSampler(params, prng),
	}
}

// GenKeyBundle generates a secret key and every key derived from it.
// Each call draws fresh randomness; nothing is cached between calls.
func (kg *KeyGenerator) GenKeyBundle() *KeyBundle {
	sk := kg.GenSecretKey()
	pk := kg.GenPublicKey(sk)
	return &KeyBundle{
		ID:            pk.ID(),
		SecretKey:     sk,
		PublicKey:     pk,
		EvaluationKey: kg.GenEvaluationKey(sk),
		BootstrapKey:  kg.GenBootstrapKey(sk),
	}
}

// GenSecretKey samples n uniform bits.
func (kg *KeyGenerator) GenSecretKey() *SecretKey {
	return &SecretKey{Value: kg.sampler.Bits(kg.params.N())}
}

// GenPublicKey samples A uniformly and computes b = A·s + e.
func (kg *KeyGenerator) GenPublicKey(sk *SecretKey) *PublicKey {
	n := kg.params.N()

	A := make([][]uint64, n)
	for i := range A {
		A[i] = kg.sampler.UniformVec(n)
	}

	e := kg.sampler.GaussianVec(n)

	b := make([]uint64, n)
	for i := range b {
		b[i] = kg.mod.Add(kg.mod.Dot(A[i], sk.Value), e[i])
	}

	return &PublicKey{A: A, B: b}
}

// GenEvaluationKey generates Value[i][j] = r + 2^j·s_i·s for every secret
// bit i and every bit position j < DecompositionBits, with fresh uniform r.
func (kg *KeyGenerator) GenEvaluationKey(sk *SecretKey) *EvaluationKey {
	n := kg.params.N()
	logQ := kg.params.DecompositionBits()

	evk := &EvaluationKey{Value: make([][][]uint64, n)}
	for i := 0; i < n; i++ {
		evk.Value[i] = make([][]uint64, logQ)
		for j := 0; j < logQ; j++ {
			power := kg.mod.Reduce(uint64(1) << j)
			evk.Value[i][j] = kg.maskedProduct(sk, i, power)
		}
	}
	return evk
}

// GenBootstrapKey generates Value[i] = r + scale·s_i·s with fresh uniform r.
func (kg *KeyGenerator) GenBootstrapKey(sk *SecretKey) *BootstrapKey {
	n := kg.params.N()

	bsk := &BootstrapKey{Value: make([][]uint64, n)}
	for i := 0; i < n; i++ {
		bsk.Value[i] = kg.maskedProduct(sk, i, kg.params.Scale())
	}
	return bsk
}

// maskedProduct returns r + c·s_i·s mod q for a fresh uniform r.
func (kg *KeyGenerator) maskedProduct(sk *SecretKey, i int, c uint64) []uint64 {
	r := kg.sampler.UniformVec(kg.params.N())
	if sk.Value[i] != 0 {
		kg.mod.ScalarMulAddVec(sk.Value, c, r)
	}
	return r
}
