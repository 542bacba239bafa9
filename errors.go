// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import "errors"

var (
	// ErrInvalidParameters is returned when a parameter set cannot support
	// correct encryption, decryption or bootstrapping.
	ErrInvalidParameters = errors.New("lwe: invalid parameters")

	// ErrNoiseBudgetExhausted is returned when the tracked noise bound of a
	// ciphertext reaches q/(2t) and the decrypted bit can no longer be trusted.
	ErrNoiseBudgetExhausted = errors.New("lwe: noise budget exhausted")

	// ErrShapeMismatch is returned when operands do not have the dimension
	// of the parameter set or of each other.
	ErrShapeMismatch = errors.New("lwe: ciphertext shape mismatch")

	// ErrOutOfRange is returned when a ciphertext holds a value outside [0, q).
	ErrOutOfRange = errors.New("lwe: ciphertext value out of range")

	// ErrKeyMismatch is returned when operands or evaluation keys come from
	// different key bundles.
	ErrKeyMismatch = errors.New("lwe: key bundle mismatch")

	// ErrMissingEvaluationKeys is returned when a bootstrap is requested from
	// an evaluator built without evaluation keys.
	ErrMissingEvaluationKeys = errors.New("lwe: evaluator has no evaluation keys")

	// ErrMalformed is returned when binary data cannot be decoded.
	ErrMalformed = errors.New("lwe: malformed encoding")

	// ErrUnrepresentable is returned when a message holds characters that
	// do not fit the 8-bit-per-character encoding.
	ErrUnrepresentable = errors.New("lwe: message not representable in 8-bit encoding")
)
