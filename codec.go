// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"fmt"
	"strings"
)

// EncodeText maps a message to one byte per character.
// Characters above U+00FF do not fit and are rejected.
func EncodeText(msg string) ([]byte, error) {
	out := make([]byte, 0, len(msg))
	for i, r := range msg {
		if r > 0xFF {
			return nil, fmt.Errorf("%w: %q at byte offset %d", ErrUnrepresentable, r, i)
		}
		out = append(out, byte(r))
	}
	return out, nil
}

// DecodeText maps every byte back to the character with that code point.
func DecodeText(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data))
	for _, b := range data {
		sb.WriteRune(rune(b))
	}
	return sb.String()
}

// BytesToBits expands data into 8 bits per byte, most significant bit first.
func BytesToBits(data []byte) []uint64 {
	out := make([]uint64, 0, 8*len(data))
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			out = append(out, uint64(b>>i)&1)
		}
	}
	return out
}

// BitsToBytes packs bits into bytes, most significant bit first. Only the
// parity of each value is used. Trailing bits that do not fill a whole byte
// are dropped.
func BitsToBytes(bits []uint64) []byte {
	out := make([]byte, len(bits)/8)
	for i := range out {
		var b byte
		for _, bit := range bits[8*i : 8*i+8] {
			b = b<<1 | byte(bit&1)
		}
		out[i] = b
	}
	return out
}
