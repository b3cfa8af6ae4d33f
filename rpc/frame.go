// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/luxfi/bfte/codec"
)

// ErrFrameTooLarge is returned when a frame's length prefix exceeds
// codec.MaxSize.
var ErrFrameTooLarge = errors.New("rpc: frame exceeds size limit")

// writeFrame writes b prefixed with its 4-byte big-endian length.
func writeFrame(w io.Writer, b []byte) error {
	if len(b) > codec.MaxSize {
		return ErrFrameTooLarge
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// readFrame reads a 4-byte big-endian length prefix followed by that many
// bytes.
func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > codec.MaxSize {
		return nil, ErrFrameTooLarge
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// writeRequest writes a request frame: RPC id (2 bytes) followed by the
// encoded body, all length-prefixed together.
func writeRequest(w io.Writer, id ID, body codec.Encoder) error {
	enc, err := codec.Marshal(body)
	if err != nil {
		return err
	}
	frame := make([]byte, 2+len(enc))
	binary.BigEndian.PutUint16(frame[:2], uint16(id))
	copy(frame[2:], enc)
	return writeFrame(w, frame)
}

// readRequestHeader reads a request frame and splits off its RPC id,
// returning the remaining bytes for the caller to decode as that id's
// request body.
func readRequestHeader(r io.Reader) (ID, []byte, error) {
	frame, err := readFrame(r)
	if err != nil {
		return 0, nil, err
	}
	if len(frame) < 2 {
		return 0, nil, codec.ErrTruncated
	}
	id := ID(binary.BigEndian.Uint16(frame[:2]))
	return id, frame[2:], nil
}

// writeResponse writes a response frame: just the encoded body,
// length-prefixed.
func writeResponse(w io.Writer, body codec.Encoder) error {
	enc, err := codec.Marshal(body)
	if err != nil {
		return err
	}
	return writeFrame(w, enc)
}

// readResponse reads a response frame and decodes it into body.
func readResponse(r io.Reader, body codec.Decoder) error {
	frame, err := readFrame(r)
	if err != nil {
		return err
	}
	return codec.Unmarshal(frame, body)
}
