// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/bfte/codec"
)

type namedRound struct {
	round uint64
}

func (r *namedRound) Encode(w *codec.Writer) error {
	return w.WriteU64(r.round)
}

func (r *namedRound) SignTag() Tag {
	return TagBlockHeader
}

func TestHashOfMatchesManualEncoding(t *testing.T) {
	a := &namedRound{round: 5}
	got, err := HashOf(a)
	require.NoError(t, err)

	w := codec.NewWriter()
	require.NoError(t, w.WriteU64(5))
	want := HashBytes(w.Bytes())
	require.Equal(t, want, got)
}

func TestSignHashOfIsDomainSeparatedFromPlainHash(t *testing.T) {
	a := &namedRound{round: 5}
	plain, err := HashOf(a)
	require.NoError(t, err)
	signed, err := SignHashOf(a)
	require.NoError(t, err)
	require.NotEqual(t, plain, signed)
}

func TestHashBytesDeterministic(t *testing.T) {
	a := HashBytes([]byte("consensus"))
	b := HashBytes([]byte("consensus"))
	require.Equal(t, a, b)
}

func TestHashBytesDistinguishesInput(t *testing.T) {
	a := HashBytes([]byte("round-0"))
	b := HashBytes([]byte("round-1"))
	require.NotEqual(t, a, b)
}

func TestDomainHashDependsOnTag(t *testing.T) {
	inner := HashBytes([]byte("payload"))
	a := DomainHash(TagBlockHeader, inner)
	b := DomainHash(TagFinalityVoteUpdate, inner)
	require.NotEqual(t, a, b)
}

func TestDomainHashDependsOnInner(t *testing.T) {
	a := DomainHash(TagBlockHeader, HashBytes([]byte("x")))
	b := DomainHash(TagBlockHeader, HashBytes([]byte("y")))
	require.NotEqual(t, a, b)
}

func TestZeroHash(t *testing.T) {
	var h Hash
	require.True(t, h.IsZero())
	h = HashBytes([]byte("not zero"))
	require.False(t, h.IsZero())
}

func TestHashEncodeDecode(t *testing.T) {
	h := HashBytes([]byte("round-trip"))
	w := newTestWriter()
	require.NoError(t, h.Encode(w))

	r := newTestReader(t, w.Bytes())
	var out Hash
	require.NoError(t, out.Decode(r))
	require.Equal(t, h, out)
}
