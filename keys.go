// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// KeyID identifies the key bundle a ciphertext or key set belongs to.
// The zero KeyID means "unknown" and is never checked.
type KeyID [32]byte

// IsZero reports whether id is the zero KeyID.
func (id KeyID) IsZero() bool {
	return id == KeyID{}
}

// String returns the hex encoding of id.
func (id KeyID) String() string {
	return hex.EncodeToString(id[:])
}

// compatible reports whether two ids may be combined.
func (id KeyID) compatible(other KeyID) bool {
	return id.IsZero() || other.IsZero() || id == other
}

// SecretKey is a binary vector of length n.
// It must stay with the decrypting party.
type SecretKey struct {
	Value []uint64
}

// PublicKey is the LWE public key (A, b = A·s + e).
type PublicKey struct {
	// A is the n×n uniform matrix
	A [][]uint64
	// B is A·s + e mod q
	B []uint64
}

// ID returns the blake2b-256 fingerprint of the public key.
func (pk *PublicKey) ID() KeyID {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}

	buf := make([]byte, 8)
	write := func(v uint64) {
		binary.LittleEndian.PutUint64(buf, v)
		h.Write(buf)
	}

	write(uint64(len(pk.B)))
	for _, row := range pk.A {
		for _, c := range row {
			write(c)
		}
	}
	for _, c := range pk.B {
		write(c)
	}

	var id KeyID
	copy(id[:], h.Sum(nil))
	return id
}

// EvaluationKey holds noisy encodings of 2^j·s_i·s.
// Value[i][j] is the length-n vector for secret bit i and power 2^j.
type EvaluationKey struct {
	Value [][][]uint64
}

// Slice returns the vector for secret bit i and bit position j.
func (evk *EvaluationKey) Slice(i, j int) []uint64 {
	return evk.Value[i][j]
}

// BootstrapKey holds noisy encodings of scale·s_i·s, one row per secret bit.
type BootstrapKey struct {
	Value [][]uint64
}

// EvaluationKeySet is the public evaluation material of a bundle.
type EvaluationKeySet struct {
	ID            KeyID
	EvaluationKey *EvaluationKey
	BootstrapKey  *BootstrapKey
}

// Check reports whether the key set has the shape params requires:
// n×DecompositionBits evaluation-key slices and n bootstrap rows, each of
// length n.
func (eks *EvaluationKeySet) Check(params Parameters) error {
	n, logQ := params.N(), params.DecompositionBits()
	if eks.EvaluationKey == nil || eks.BootstrapKey == nil {
		return ErrMissingEvaluationKeys
	}
	if len(eks.EvaluationKey.Value) != n || len(eks.BootstrapKey.Value) != n {
		return fmt.Errorf("%w: key set of dimension %d, want %d", ErrShapeMismatch, len(eks.BootstrapKey.Value), n)
	}
	for i := 0; i < n; i++ {
		if len(eks.BootstrapKey.Value[i]) != n {
			return fmt.Errorf("%w: bootstrap key row %d", ErrShapeMismatch, i)
		}
		if len(eks.EvaluationKey.Value[i]) != logQ {
			return fmt.Errorf("%w: evaluation key row %d has %d slices, want %d",
				ErrShapeMismatch, i, len(eks.EvaluationKey.Value[i]), logQ)
		}
		for _, slice := range eks.EvaluationKey.Value[i] {
			if len(slice) != n {
				return fmt.Errorf("%w: evaluation key row %d", ErrShapeMismatch, i)
			}
		}
	}
	return nil
}

// KeyBundle aggregates all key material produced by one key generation.
// A bundle is never mutated after creation.
type KeyBundle struct {
	ID            KeyID
	SecretKey     *SecretKey
	PublicKey     *PublicKey
	EvaluationKey *EvaluationKey
	BootstrapKey  *BootstrapKey
}

// EvaluationKeySet returns the evaluation material of the bundle, without
// the secret key.
func (kb *KeyBundle) EvaluationKeySet() *EvaluationKeySet {
	return &EvaluationKeySet{
		ID:            kb.ID,
		EvaluationKey: kb.EvaluationKey,
		BootstrapKey:  kb.BootstrapKey,
	}
}
