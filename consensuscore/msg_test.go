// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensuscore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/bfte/codec"
	"github.com/luxfi/bfte/crypto"
)

func TestWaitVoteResponseProposalRoundTrip(t *testing.T) {
	params, seckeys := genesisParams(t, 2)
	h := NewBlockHeader(nil, 0, params, BlockPayloadRaw{Bytes: []byte("proposal")})
	resp := &WaitVoteResponse{
		Kind:    WaitVoteResponseProposal,
		Block:   SignNew[*BlockHeader](&h, seckeys[0]),
		Payload: BlockPayloadRaw{Bytes: []byte("proposal")},
	}

	b, err := codec.Marshal(resp)
	require.NoError(t, err)

	var out WaitVoteResponse
	require.NoError(t, codec.Unmarshal(b, &out))
	require.True(t, out.IsProposal())
	require.Equal(t, resp.Payload.Bytes, out.Payload.Bytes)
}

func TestWaitVoteResponseVoteRoundTrip(t *testing.T) {
	params, seckeys := genesisParams(t, 2)
	h := NewDummyBlockHeader(0, params)
	resp := &WaitVoteResponse{
		Kind:  WaitVoteResponseVote,
		Block: SignNew[*BlockHeader](&h, seckeys[1]),
	}

	b, err := codec.Marshal(resp)
	require.NoError(t, err)

	var out WaitVoteResponse
	require.NoError(t, codec.Unmarshal(b, &out))
	require.False(t, out.IsProposal())
}

func TestFinalityVoteUpdateSignAndVerify(t *testing.T) {
	sk, err := crypto.GenerateSeckey()
	require.NoError(t, err)
	update := NewFinalityVoteUpdate(42)
	signed := SignNew[*FinalityVoteUpdate](&update, sk)
	require.NoError(t, signed.VerifySigPeerPubkey(sk.Pubkey()))
}

func TestAddressUpdateSignAndVerify(t *testing.T) {
	sk, err := crypto.GenerateSeckey()
	require.NoError(t, err)
	update := NewAddressUpdate(1234, sk.Pubkey(), "127.0.0.1:9000")
	signed := SignNew[*AddressUpdate](&update, sk)
	require.NoError(t, signed.VerifySigPeerPubkey(sk.Pubkey()))

	b, err := codec.Marshal(signed)
	require.NoError(t, err)
	r, err := codec.NewReader(b)
	require.NoError(t, err)
	out, err := DecodeSigned[*AddressUpdate](r, func() *AddressUpdate { return &AddressUpdate{} })
	require.NoError(t, err)
	require.Equal(t, update, *out.Inner)
}

func TestGetPeerAddrResponseRoundTripNotFound(t *testing.T) {
	resp := &GetPeerAddrResponse{Found: false}
	b, err := codec.Marshal(resp)
	require.NoError(t, err)

	var out GetPeerAddrResponse
	require.NoError(t, codec.Unmarshal(b, &out))
	require.False(t, out.Found)
}

func TestGetPeerAddrResponseRoundTripFound(t *testing.T) {
	sk, err := crypto.GenerateSeckey()
	require.NoError(t, err)
	update := NewAddressUpdate(1, sk.Pubkey(), "10.0.0.1:1234")
	resp := &GetPeerAddrResponse{
		Found:  true,
		Update: SignNew[*AddressUpdate](&update, sk),
	}

	b, err := codec.Marshal(resp)
	require.NoError(t, err)

	var out GetPeerAddrResponse
	require.NoError(t, codec.Unmarshal(b, &out))
	require.True(t, out.Found)
	require.Equal(t, update, *out.Update.Inner)
}

func TestPushPeerAddrUpdateRoundTrip(t *testing.T) {
	sk, err := crypto.GenerateSeckey()
	require.NoError(t, err)
	update := NewAddressUpdate(2, sk.Pubkey(), "10.0.0.2:4321")
	push := &PushPeerAddrUpdate{Update: SignNew[*AddressUpdate](&update, sk)}

	b, err := codec.Marshal(push)
	require.NoError(t, err)

	var out PushPeerAddrUpdate
	require.NoError(t, codec.Unmarshal(b, &out))
	require.Equal(t, update, *out.Update.Inner)
}

func TestGetBlockResponseRoundTripNotFound(t *testing.T) {
	resp := &GetBlockResponse{Found: false}
	b, err := codec.Marshal(resp)
	require.NoError(t, err)

	var out GetBlockResponse
	require.NoError(t, codec.Unmarshal(b, &out))
	require.False(t, out.Found)
}

func TestGetBlockResponseRoundTripFound(t *testing.T) {
	params, seckeys := genesisParams(t, 2)
	h := NewBlockHeader(nil, 0, params, BlockPayloadRaw{Bytes: []byte("payload")})
	sig := seckeys[0].Sign(signHash(&h)[:])
	notarized := NewNotarized[*BlockHeader](&h, map[PeerIdx]crypto.Signature{0: sig})
	resp := &GetBlockResponse{Found: true, Block: notarized}

	b, err := codec.Marshal(resp)
	require.NoError(t, err)

	var out GetBlockResponse
	require.NoError(t, codec.Unmarshal(b, &out))
	require.True(t, out.Found)
	require.Equal(t, h.Hash(), out.Block.Inner.Hash())
	require.Len(t, out.Block.Sigs, 1)
}

func TestGetConsensusParamsResponseRoundTrip(t *testing.T) {
	params, _ := genesisParams(t, 3)
	raw, err := params.ToRaw()
	require.NoError(t, err)
	resp := &GetConsensusParamsResponse{Found: true, Raw: raw}

	b, err := codec.Marshal(resp)
	require.NoError(t, err)

	var out GetConsensusParamsResponse
	require.NoError(t, codec.Unmarshal(b, &out))
	require.True(t, out.Found)
	require.Equal(t, raw.Bytes, out.Raw.Bytes)
}

func TestGetConsensusVersionRoundTrip(t *testing.T) {
	req := &GetConsensusVersionRequest{}
	b, err := codec.Marshal(req)
	require.NoError(t, err)
	var outReq GetConsensusVersionRequest
	require.NoError(t, codec.Unmarshal(b, &outReq))

	resp := &GetConsensusVersionResponse{Version: NewConsensusVersion(1, 2)}
	b, err = codec.Marshal(resp)
	require.NoError(t, err)
	var outResp GetConsensusVersionResponse
	require.NoError(t, codec.Unmarshal(b, &outResp))
	require.Equal(t, resp.Version, outResp.Version)
}
