// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package lwe

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// All encodings are little-endian. Vectors are prefixed by their uint32
// length; ciphertext records carry KeyID, NoiseBound, then u and v.

type encoder struct {
	buf []byte
}

func (e *encoder) uint32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *encoder) uint64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *encoder) float64(v float64) {
	e.uint64(math.Float64bits(v))
}

func (e *encoder) keyID(id KeyID) {
	e.buf = append(e.buf, id[:]...)
}

func (e *encoder) vector(v []uint64) {
	e.uint32(uint32(len(v)))
	for _, c := range v {
		e.uint64(c)
	}
}

type decoder struct {
	data []byte
	err  error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.data) < n {
		d.err = fmt.Errorf("%w: %w", ErrMalformed, io.ErrUnexpectedEOF)
		return nil
	}
	b := d.data[:n]
	d.data = d.data[n:]
	return b
}

func (d *decoder) uint32() uint32 {
	if b := d.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) uint64() uint64 {
	if b := d.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (d *decoder) float64() float64 {
	return math.Float64frombits(d.uint64())
}

func (d *decoder) keyID() (id KeyID) {
	if b := d.take(len(id)); b != nil {
		copy(id[:], b)
	}
	return
}

// length reads a uint32 count of items of itemSize bytes and checks that
// the remaining data can hold them.
func (d *decoder) length(itemSize int) int {
	n := int(d.uint32())
	if d.err == nil && n*itemSize > len(d.data) {
		d.err = fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrMalformed, n, len(d.data))
		return 0
	}
	return n
}

func (d *decoder) values(n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = d.uint64()
	}
	return out
}

func (d *decoder) vector() []uint64 {
	return d.values(d.length(8))
}

func (d *decoder) finish() error {
	if d.err == nil && len(d.data) != 0 {
		d.err = fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(d.data))
	}
	return d.err
}

// ========== Parameters ==========

// MarshalBinary encodes the parameter literal.
func (lit ParametersLiteral) MarshalBinary() ([]byte, error) {
	var e encoder
	e.uint64(uint64(lit.N))
	e.uint64(lit.Q)
	e.uint64(lit.T)
	e.float64(lit.StdDev)
	e.uint64(uint64(lit.BootstrapPrecision))
	return e.buf, nil
}

// UnmarshalBinary decodes a parameter literal. The literal is not validated.
func (lit *ParametersLiteral) UnmarshalBinary(data []byte) error {
	d := decoder{data: data}
	n := d.uint64()
	q := d.uint64()
	t := d.uint64()
	sigma := d.float64()
	p := d.uint64()
	if err := d.finish(); err != nil {
		return err
	}
	if n > math.MaxInt32 || p > math.MaxInt32 {
		return fmt.Errorf("%w: parameter out of range", ErrMalformed)
	}
	*lit = ParametersLiteral{N: int(n), Q: q, T: t, StdDev: sigma, BootstrapPrecision: int(p)}
	return nil
}

// MarshalBinary encodes the parameters.
func (p Parameters) MarshalBinary() ([]byte, error) {
	return p.Literal().MarshalBinary()
}

// UnmarshalBinary decodes and validates parameters.
func (p *Parameters) UnmarshalBinary(data []byte) error {
	var lit ParametersLiteral
	if err := lit.UnmarshalBinary(data); err != nil {
		return err
	}
	params, err := NewParametersFromLiteral(lit)
	if err != nil {
		return err
	}
	*p = params
	return nil
}

// ========== Secret Key ==========

// MarshalBinary encodes the secret key.
func (sk *SecretKey) MarshalBinary() ([]byte, error) {
	var e encoder
	e.vector(sk.Value)
	return e.buf, nil
}

// UnmarshalBinary decodes a secret key.
func (sk *SecretKey) UnmarshalBinary(data []byte) error {
	d := decoder{data: data}
	value := d.vector()
	if err := d.finish(); err != nil {
		return fmt.Errorf("secret key: %w", err)
	}
	for i, c := range value {
		if c > 1 {
			return fmt.Errorf("secret key: %w: entry %d is %d, want 0 or 1", ErrMalformed, i, c)
		}
	}
	sk.Value = value
	return nil
}

// ========== Public Key ==========

// MarshalBinary encodes the public key.
func (pk *PublicKey) MarshalBinary() ([]byte, error) {
	var e encoder
	e.uint32(uint32(len(pk.A)))
	for _, row := range pk.A {
		e.vector(row)
	}
	e.vector(pk.B)
	return e.buf, nil
}

// UnmarshalBinary decodes a public key.
func (pk *PublicKey) UnmarshalBinary(data []byte) error {
	d := decoder{data: data}
	rows := d.length(4)
	a := make([][]uint64, rows)
	for i := range a {
		a[i] = d.vector()
	}
	b := d.vector()
	if err := d.finish(); err != nil {
		return fmt.Errorf("public key: %w", err)
	}
	if len(b) != rows {
		return fmt.Errorf("public key: %w: %d rows, body of length %d", ErrMalformed, rows, len(b))
	}
	for i, row := range a {
		if len(row) != rows {
			return fmt.Errorf("public key: %w: row %d has length %d, want %d", ErrMalformed, i, len(row), rows)
		}
	}
	pk.A, pk.B = a, b
	return nil
}

// ========== Evaluation and Bootstrap Keys ==========

func (evk *EvaluationKey) encode(e *encoder) {
	n, logQ := 0, 0
	if len(evk.Value) > 0 {
		n, logQ = len(evk.Value), len(evk.Value[0])
	}
	e.uint32(uint32(n))
	e.uint32(uint32(logQ))
	for _, row := range evk.Value {
		for _, v := range row {
			for _, c := range v {
				e.uint64(c)
			}
		}
	}
}

func (evk *EvaluationKey) decode(d *decoder) {
	n := int(d.uint32())
	logQ := int(d.uint32())
	if d.err == nil && (logQ > 64 || n > len(d.data) || n*n*logQ*8 > len(d.data)) {
		d.err = fmt.Errorf("%w: evaluation key of %d×%d×%d exceeds remaining %d bytes", ErrMalformed, n, logQ, n, len(d.data))
		return
	}
	evk.Value = make([][][]uint64, n)
	for i := range evk.Value {
		evk.Value[i] = make([][]uint64, logQ)
		for j := range evk.Value[i] {
			evk.Value[i][j] = d.values(n)
		}
	}
}

// MarshalBinary encodes the evaluation key.
func (evk *EvaluationKey) MarshalBinary() ([]byte, error) {
	var e encoder
	evk.encode(&e)
	return e.buf, nil
}

// UnmarshalBinary decodes an evaluation key.
func (evk *EvaluationKey) UnmarshalBinary(data []byte) error {
	d := decoder{data: data}
	evk.decode(&d)
	if err := d.finish(); err != nil {
		return fmt.Errorf("evaluation key: %w", err)
	}
	return nil
}

func (bsk *BootstrapKey) encode(e *encoder) {
	e.uint32(uint32(len(bsk.Value)))
	for _, row := range bsk.Value {
		for _, c := range row {
			e.uint64(c)
		}
	}
}

func (bsk *BootstrapKey) decode(d *decoder) {
	n := int(d.uint32())
	if d.err == nil && (n > len(d.data) || n*n*8 > len(d.data)) {
		d.err = fmt.Errorf("%w: bootstrap key of %d×%d exceeds remaining %d bytes", ErrMalformed, n, n, len(d.data))
		return
	}
	bsk.Value = make([][]uint64, n)
	for i := range bsk.Value {
		bsk.Value[i] = d.values(n)
	}
}

// MarshalBinary encodes the bootstrap key.
func (bsk *BootstrapKey) MarshalBinary() ([]byte, error) {
	var e encoder
	bsk.encode(&e)
	return e.buf, nil
}

// UnmarshalBinary decodes a bootstrap key.
func (bsk *BootstrapKey) UnmarshalBinary(data []byte) error {
	d := decoder{data: data}
	bsk.decode(&d)
	if err := d.finish(); err != nil {
		return fmt.Errorf("bootstrap key: %w", err)
	}
	return nil
}

// MarshalBinary encodes the evaluation key set: ID, evaluation key, then
// bootstrap key.
func (eks *EvaluationKeySet) MarshalBinary() ([]byte, error) {
	if eks.EvaluationKey == nil || eks.BootstrapKey == nil {
		return nil, fmt.Errorf("evaluation key set: %w", ErrMissingEvaluationKeys)
	}
	var e encoder
	e.keyID(eks.ID)
	eks.EvaluationKey.encode(&e)
	eks.BootstrapKey.encode(&e)
	return e.buf, nil
}

// UnmarshalBinary decodes an evaluation key set.
func (eks *EvaluationKeySet) UnmarshalBinary(data []byte) error {
	d := decoder{data: data}
	id := d.keyID()
	evk, bsk := new(EvaluationKey), new(BootstrapKey)
	evk.decode(&d)
	bsk.decode(&d)
	if err := d.finish(); err != nil {
		return fmt.Errorf("evaluation key set: %w", err)
	}
	if len(evk.Value) != len(bsk.Value) {
		return fmt.Errorf("evaluation key set: %w: evaluation key dimension %d, bootstrap key dimension %d",
			ErrMalformed, len(evk.Value), len(bsk.Value))
	}
	eks.ID, eks.EvaluationKey, eks.BootstrapKey = id, evk, bsk
	return nil
}

// ========== Ciphertexts ==========

func (ct *Ciphertext) encode(e *encoder) {
	e.keyID(ct.KeyID)
	e.float64(ct.NoiseBound)
	for _, c := range ct.U {
		e.uint64(c)
	}
	e.uint64(ct.V)
}

func (ct *Ciphertext) decode(d *decoder, n int) {
	ct.KeyID = d.keyID()
	ct.NoiseBound = d.float64()
	if b := ct.NoiseBound; d.err == nil && (math.IsNaN(b) || math.IsInf(b, 0) || b < 0) {
		d.err = fmt.Errorf("%w: noise bound %v", ErrMalformed, b)
	}
	ct.U = d.values(n)
	ct.V = d.uint64()
}

// recordSize returns the encoded size of a ciphertext of dimension n.
func recordSize(n int) int {
	return len(KeyID{}) + 8 + 8*(n+1)
}

// MarshalBinary encodes a single ciphertext: uint32 n, then the record.
func (ct *Ciphertext) MarshalBinary() ([]byte, error) {
	e := encoder{buf: make([]byte, 0, 4+recordSize(ct.N()))}
	e.uint32(uint32(ct.N()))
	ct.encode(&e)
	return e.buf, nil
}

// UnmarshalBinary decodes a single ciphertext.
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	d := decoder{data: data}
	n := d.length(8)
	if d.err == nil && len(d.data) != recordSize(n) {
		return fmt.Errorf("ciphertext: %w: %d bytes for dimension %d", ErrMalformed, len(d.data), n)
	}
	ct.decode(&d, n)
	if err := d.finish(); err != nil {
		return fmt.Errorf("ciphertext: %w", err)
	}
	return nil
}

// MarshalStream encodes a ciphertext sequence: uint32 count, uint32 n, then
// count records. Every ciphertext must have the same dimension.
func MarshalStream(cts []*Ciphertext) ([]byte, error) {
	n := 0
	if len(cts) > 0 {
		n = cts[0].N()
	}

	e := encoder{buf: make([]byte, 0, 8+len(cts)*recordSize(n))}
	e.uint32(uint32(len(cts)))
	e.uint32(uint32(n))
	for i, ct := range cts {
		if ct.N() != n {
			return nil, fmt.Errorf("ciphertext %d: %w: dimension %d, want %d", i, ErrShapeMismatch, ct.N(), n)
		}
		ct.encode(&e)
	}
	return e.buf, nil
}

// UnmarshalStream decodes a ciphertext sequence encoded by MarshalStream.
func UnmarshalStream(data []byte) ([]*Ciphertext, error) {
	d := decoder{data: data}
	count := int(d.uint32())
	n := int(d.uint32())
	if d.err != nil {
		return nil, fmt.Errorf("stream: %w", d.err)
	}
	if count > len(d.data) || n > len(d.data) {
		return nil, fmt.Errorf("stream: %w: header (%d, %d) exceeds %d bytes", ErrMalformed, count, n, len(d.data))
	}
	if want := count * recordSize(n); len(d.data) != want {
		return nil, fmt.Errorf("stream: %w: %d bytes for %d ciphertexts of dimension %d, want %d",
			ErrMalformed, len(d.data), count, n, want)
	}

	cts := make([]*Ciphertext, count)
	for i := range cts {
		cts[i] = new(Ciphertext)
		cts[i].decode(&d, n)
	}
	if err := d.finish(); err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}
	return cts, nil
}
