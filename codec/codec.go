// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package codec implements the deterministic wire encoding used across the
// consensus core: fixed-width big-endian integers, big-endian base-128
// varints for lengths, and a 16 MiB size cap on any single length-prefixed
// field or top-level message. Every wire type and every hashed/signed type
// encodes through this package so that two peers (and two runs of the same
// peer) always produce byte-identical output for the same value.
package codec

import (
	"bytes"
	"errors"
	"fmt"
)

// MaxSize is the hard cap on any single decoded message or length-prefixed
// byte field.
const MaxSize = 16 * 1024 * 1024

// ErrTooLarge is returned when a length prefix (or the overall message)
// would exceed MaxSize.
var ErrTooLarge = errors.New("codec: value exceeds 16 MiB limit")

// ErrTruncated is returned when a Reader runs out of bytes mid-decode.
var ErrTruncated = errors.New("codec: truncated input")

// Encoder is implemented by any type that can write itself deterministically.
type Encoder interface {
	Encode(w *Writer) error
}

// Decoder is implemented by any type that can read itself back.
type Decoder interface {
	Decode(r *Reader) error
}

// Writer accumulates a deterministic big-endian encoding.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// WriteRaw writes b verbatim, with no length prefix. Used for fixed-size
// fields (hashes, public keys, signatures, padding) whose length is part of
// the type, not the wire value.
func (w *Writer) WriteRaw(b []byte) error {
	_, err := w.buf.Write(b)
	return err
}

// WriteU8 writes a single byte.
func (w *Writer) WriteU8(v uint8) error {
	return w.buf.WriteByte(v)
}

// WriteBool writes a single byte, 0 or 1.
func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteU8(1)
	}
	return w.WriteU8(0)
}

// WriteU16 writes a fixed-width big-endian uint16.
func (w *Writer) WriteU16(v uint16) error {
	return w.WriteRaw([]byte{byte(v >> 8), byte(v)})
}

// WriteU32 writes a fixed-width big-endian uint32.
func (w *Writer) WriteU32(v uint32) error {
	return w.WriteRaw([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// WriteU64 writes a fixed-width big-endian uint64.
func (w *Writer) WriteU64(v uint64) error {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
	return w.WriteRaw(b)
}

// WriteVarUint writes v as a big-endian base-128 varint: each byte carries
// 7 bits of the value, most-significant group first, with the continuation
// bit (0x80) set on every byte but the last.
func (w *Writer) WriteVarUint(v uint64) error {
	var tmp [10]byte
	n := 0
	for {
		tmp[n] = byte(v & 0x7f)
		v >>= 7
		n++
		if v == 0 {
			break
		}
	}
	for i := n - 1; i >= 0; i-- {
		b := tmp[i]
		if i != 0 {
			b |= 0x80
		}
		if err := w.WriteU8(b); err != nil {
			return err
		}
	}
	return nil
}

// WriteBytes writes a varint length prefix followed by b. Enforces the
// 16 MiB cap on b itself.
func (w *Writer) WriteBytes(b []byte) error {
	if len(b) > MaxSize {
		return ErrTooLarge
	}
	if err := w.WriteVarUint(uint64(len(b))); err != nil {
		return err
	}
	return w.WriteRaw(b)
}

// Reader consumes a deterministic big-endian encoding produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for decoding. Rejects inputs larger than MaxSize up
// front.
func NewReader(b []byte) (*Reader, error) {
	if len(b) > MaxSize {
		return nil, ErrTooLarge
	}
	return &Reader{buf: b}, nil
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return ErrTruncated
	}
	return nil
}

// ReadRaw reads exactly n bytes verbatim.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.ReadRaw(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadBool reads a single byte as a bool (nonzero is true).
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	return v != 0, err
}

// ReadU16 reads a fixed-width big-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.ReadRaw(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

// ReadU32 reads a fixed-width big-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.ReadRaw(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// ReadU64 reads a fixed-width big-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.ReadRaw(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

// ReadVarUint reads a big-endian base-128 varint written by WriteVarUint.
func (r *Reader) ReadVarUint() (uint64, error) {
	var v uint64
	for {
		b, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		v = v<<7 | uint64(b&0x7f)
		if b&0x80 == 0 {
			return v, nil
		}
	}
}

// ReadBytes reads a varint length prefix followed by that many bytes,
// enforcing the 16 MiB cap.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadVarUint()
	if err != nil {
		return nil, err
	}
	if n > MaxSize {
		return nil, ErrTooLarge
	}
	return r.ReadRaw(int(n))
}

// Marshal encodes v with a fresh Writer.
func Marshal(v Encoder) ([]byte, error) {
	w := NewWriter()
	if err := v.Encode(w); err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return w.Bytes(), nil
}

// Unmarshal decodes v from b and requires every byte of b to be consumed.
func Unmarshal(b []byte, v Decoder) error {
	r, err := NewReader(b)
	if err != nil {
		return err
	}
	if err := v.Decode(r); err != nil {
		return fmt.Errorf("codec: decode: %w", err)
	}
	if r.Remaining() != 0 {
		return fmt.Errorf("codec: %d trailing bytes after decode", r.Remaining())
	}
	return nil
}
