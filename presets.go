// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

// Standard parameter sets.
//
// None of these targets a concrete security level: the dimensions are small
// enough for the dense n×n public matrix and the n·n·(log2 q + 1) evaluation
// key to be generated in memory.
var (
	// PN256Q40961 is the reference parameter set.
	// N=256, Q=40961, T=2, sigma=3.2, bootstrap precision 8 bits.
	// Evaluation key: 256·256·16 words (~8 MiB).
	PN256Q40961 = ParametersLiteral{
		N:                  256,
		Q:                  40961,
		T:                  2,
		StdDev:             3.2,
		BootstrapPrecision: 8,
	}

	// PN64Q12289 is a toy set for tests and demos.
	// N=64, Q=12289, T=2, sigma=3.2.
	PN64Q12289 = ParametersLiteral{
		N:                  64,
		Q:                  12289,
		T:                  2,
		StdDev:             3.2,
		BootstrapPrecision: 8,
	}

	// PN512Q40961 doubles the dimension of the reference set.
	// Evaluation key: 512·512·16 words (~32 MiB).
	PN512Q40961 = ParametersLiteral{
		N:                  512,
		Q:                  40961,
		T:                  2,
		StdDev:             3.2,
		BootstrapPrecision: 8,
	}
)

// DefaultParametersLiteral is the parameter set used when none is given.
var DefaultParametersLiteral = PN256Q40961

// Presets maps parameter set names to their literal.
var Presets = map[string]ParametersLiteral{
	"PN64Q12289":  PN64Q12289,
	"PN256Q40961": PN256Q40961,
	"PN512Q40961": PN512Q40961,
}
