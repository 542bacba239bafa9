// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// Noise returns |v - <u, s> - scale·m| with the difference centered in
// (-q/2, q/2]. m is the integer plaintext the ciphertext is expected to
// hold; it is not reduced mod t, so the sum of two encryptions of 1 is
// measured against m = 2.
func (dec *Decryptor) Noise(ct *Ciphertext, m uint64) (float64, error) {
	phase, err := dec.Phase(ct)
	if err != nil {
		return 0, err
	}

	delta := dec.mod.Mul(dec.params.Scale(), dec.mod.Reduce(m))
	e := dec.mod.Centered(dec.mod.Sub(phase, delta))
	if e < 0 {
		e = -e
	}
	return float64(e), nil
}

// NoiseStats summarizes the measured noise of a ciphertext sequence.
type NoiseStats struct {
	Mean   float64
	StdDev float64
	Max    float64
}

// String implements fmt.Stringer.
func (ns NoiseStats) String() string {
	return fmt.Sprintf("mean=%.2f stddev=%.2f max=%.0f", ns.Mean, ns.StdDev, ns.Max)
}

// NoiseStats measures the noise of every ciphertext in cts against the
// matching plaintext in msgs.
func (dec *Decryptor) NoiseStats(cts []*Ciphertext, msgs []uint64) (NoiseStats, error) {
	if len(cts) != len(msgs) {
		return NoiseStats{}, fmt.Errorf("%w: %d ciphertexts, %d plaintexts", ErrShapeMismatch, len(cts), len(msgs))
	}
	if len(cts) == 0 {
		return NoiseStats{}, nil
	}

	data := make(stats.Float64Data, len(cts))
	for i, ct := range cts {
		e, err := dec.Noise(ct, msgs[i])
		if err != nil {
			return NoiseStats{}, fmt.Errorf("ciphertext %d: %w", i, err)
		}
		data[i] = e
	}

	var ns NoiseStats
	var err error
	if ns.Mean, err = stats.Mean(data); err != nil {
		return NoiseStats{}, err
	}
	if ns.StdDev, err = stats.StandardDeviation(data); err != nil {
		return NoiseStats{}, err
	}
	if ns.Max, err = stats.Max(data); err != nil {
		return NoiseStats{}, err
	}
	return ns, nil
}
