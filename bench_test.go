// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"testing"
)

var benchPresets = []struct {
	name string
	lit  ParametersLiteral
}{
	{"PN64Q12289", PN64Q12289},
	{"PN256Q40961", PN256Q40961},
}

// BenchmarkParameters benchmarks parameter set initialization
func BenchmarkParameters(b *testing.B) {
	for _, p := range benchPresets {
		b.Run(p.name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := NewParametersFromLiteral(p.lit); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkKeyGeneration benchmarks key generation
func BenchmarkKeyGeneration(b *testing.B) {
	for _, p := range benchPresets {
		params, err := NewParametersFromLiteral(p.lit)
		if err != nil {
			b.Fatal(err)
		}
		kg := NewKeyGenerator(params)
		sk := kg.GenSecretKey()

		b.Run(p.name+"/PublicKey", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				kg.GenPublicKey(sk)
			}
		})

		b.Run(p.name+"/EvaluationKey", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				kg.GenEvaluationKey(sk)
			}
		})

		b.Run(p.name+"/BootstrapKey", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				kg.GenBootstrapKey(sk)
			}
		})
	}
}

// BenchmarkEncryption benchmarks encryption and decryption
func BenchmarkEncryption(b *testing.B) {
	for _, p := range benchPresets {
		tc := newTestContext(b, p.lit, "bench")
		ct := tc.enc.EncryptBit(1)

		b.Run(p.name+"/EncryptBit", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				tc.enc.EncryptBit(1)
			}
		})

		b.Run(p.name+"/DecryptBit", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := tc.dec.DecryptBit(ct); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkEvaluator benchmarks homomorphic operations
func BenchmarkEvaluator(b *testing.B) {
	for _, p := range benchPresets {
		tc := newTestContext(b, p.lit, "bench")
		ct0 := tc.enc.EncryptBit(0)
		ct1 := tc.enc.EncryptBit(1)

		b.Run(p.name+"/Add", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := tc.eval.Add(ct0, ct1); err != nil {
					b.Fatal(err)
				}
			}
		})

		b.Run(p.name+"/Tensor", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := tc.eval.Tensor(ct0, ct1); err != nil {
					b.Fatal(err)
				}
			}
		})

		b.Run(p.name+"/Bootstrap", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := tc.eval.Bootstrap(ct1); err != nil {
					b.Fatal(err)
				}
			}
		})

		b.Run(p.name+"/Mul", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := tc.eval.Mul(ct0, ct1); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSerialization benchmarks stream encoding
func BenchmarkSerialization(b *testing.B) {
	tc := newTestContext(b, PN256Q40961, "bench")
	cts, err := tc.enc.EncryptString("Hello")
	if err != nil {
		b.Fatal(err)
	}
	data, err := MarshalStream(cts)
	if err != nil {
		b.Fatal(err)
	}

	b.Run("MarshalStream", func(b *testing.B) {
		b.SetBytes(int64(len(data)))
		for i := 0; i < b.N; i++ {
			if _, err := MarshalStream(cts); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("UnmarshalStream", func(b *testing.B) {
		b.SetBytes(int64(len(data)))
		for i := 0; i < b.N; i++ {
			if _, err := UnmarshalStream(data); err != nil {
				b.Fatal(err)
			}
		}
	})
}
