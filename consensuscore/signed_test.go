// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensuscore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/bfte/codec"
	"github.com/luxfi/bfte/crypto"
)

func TestSignedVerifiesAgainstCorrectPubkey(t *testing.T) {
	params, seckeys := genesisParams(t, 3)
	h := NewBlockHeader(nil, 0, params, BlockPayloadRaw{Bytes: []byte("x")})

	signed := SignNew[*BlockHeader](&h, seckeys[0])
	require.NoError(t, signed.VerifySigPeerPubkey(seckeys[0].Pubkey()))
}

func TestSignedRejectsWrongPubkey(t *testing.T) {
	params, seckeys := genesisParams(t, 3)
	h := NewBlockHeader(nil, 0, params, BlockPayloadRaw{Bytes: []byte("x")})

	signed := SignNew[*BlockHeader](&h, seckeys[0])
	require.Error(t, signed.VerifySigPeerPubkey(seckeys[1].Pubkey()))
}

func TestSignedEncodeDecodeRoundTrip(t *testing.T) {
	params, seckeys := genesisParams(t, 1)
	h := NewBlockHeader(nil, 0, params, BlockPayloadRaw{Bytes: []byte("x")})
	signed := SignNew[*BlockHeader](&h, seckeys[0])

	b, err := codec.Marshal(signed)
	require.NoError(t, err)

	r, err := codec.NewReader(b)
	require.NoError(t, err)
	out, err := DecodeSigned[*BlockHeader](r, func() *BlockHeader { return &BlockHeader{} })
	require.NoError(t, err)
	require.Equal(t, *signed.Inner, *out.Inner)
	require.Equal(t, signed.Sig, out.Sig)
}

func TestNotarizedRequiresThreshold(t *testing.T) {
	params, seckeys := genesisParams(t, 4) // threshold = 4 - 1 = 3
	h := NewBlockHeader(nil, 0, params, BlockPayloadRaw{Bytes: []byte("x")})

	sigs := map[PeerIdx]crypto.Signature{}
	for i := 0; i < 2; i++ {
		idx, ok := params.FindPeerIdx(seckeys[i].Pubkey())
		require.True(t, ok)
		sigs[idx] = seckeys[i].Sign(signHash(&h)[:])
	}
	n := NewNotarized[*BlockHeader](&h, sigs)
	require.ErrorIs(t, n.VerifySigs(params), ErrNotEnoughSignatures)
}

func TestNotarizedAcceptsEnoughValidSigs(t *testing.T) {
	params, seckeys := genesisParams(t, 4)
	h := NewBlockHeader(nil, 0, params, BlockPayloadRaw{Bytes: []byte("x")})

	sigs := map[PeerIdx]crypto.Signature{}
	for i := 0; i < 3; i++ {
		idx, ok := params.FindPeerIdx(seckeys[i].Pubkey())
		require.True(t, ok)
		sigs[idx] = seckeys[i].Sign(signHash(&h)[:])
	}
	n := NewNotarized[*BlockHeader](&h, sigs)
	require.NoError(t, n.VerifySigs(params))
}

func TestNotarizedRejectsBadSignature(t *testing.T) {
	params, seckeys := genesisParams(t, 4)
	h := NewBlockHeader(nil, 0, params, BlockPayloadRaw{Bytes: []byte("x")})

	otherSk, err := crypto.GenerateSeckey()
	require.NoError(t, err)

	sigs := map[PeerIdx]crypto.Signature{}
	for i := 0; i < 3; i++ {
		idx, ok := params.FindPeerIdx(seckeys[i].Pubkey())
		require.True(t, ok)
		sigs[idx] = otherSk.Sign(signHash(&h)[:])
	}
	n := NewNotarized[*BlockHeader](&h, sigs)
	require.Error(t, n.VerifySigs(params))
}
