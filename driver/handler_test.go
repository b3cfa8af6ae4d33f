// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package driver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/bfte/consensus"
	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/crypto"
	"github.com/luxfi/bfte/driver"
	"github.com/luxfi/bfte/gossip"
	"github.com/luxfi/bfte/store"
	"github.com/luxfi/bfte/store/memdb"
)

func newSinglePeerFixture(t *testing.T) (*consensus.Machine, *store.Store, crypto.PeerSeckey, crypto.PeerPubkey, *consensuscore.ConsensusParams) {
	t.Helper()
	sk, err := crypto.GenerateSeckey()
	require.NoError(t, err)
	pub := sk.Pubkey()
	genesis := &consensuscore.ConsensusParams{
		Version: consensuscore.NewConsensusVersion(0, 0),
		Peers:   consensuscore.NewPeerSet([]consensuscore.PeerPubkey{pub}),
	}
	s := store.Open(memdb.New())
	m := consensus.New(s, pub, nil)
	require.NoError(t, m.Init(genesis))
	return m, s, sk, pub, genesis
}

func TestHandlerWaitVoteReturnsOwnProposalWhenLeader(t *testing.T) {
	m, s, sk, pub, genesis := newSinglePeerFixture(t)
	book := gossip.NewBook(s)
	h := driver.NewHandler(m, pub, sk, book, nil)

	hdr0 := consensuscore.NewBlockHeader(nil, 0, genesis, consensuscore.BlockPayloadRaw{Bytes: []byte("x")})
	resp := &consensuscore.WaitVoteResponse{
		Kind:    consensuscore.WaitVoteResponseProposal,
		Block:   consensuscore.SignNew[*consensuscore.BlockHeader](&hdr0, sk),
		Payload: consensuscore.BlockPayloadRaw{Bytes: []byte("x")},
	}
	_, err := m.ProcessVote(0, resp)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := h.WaitVote(ctx, &consensuscore.WaitVoteRequest{Round: 0})
	require.NoError(t, err)
	require.Equal(t, consensuscore.WaitVoteResponseProposal, got.Kind)
	require.Equal(t, hdr0.Hash(), got.Block.Inner.Hash())
	require.Equal(t, []byte("x"), got.Payload.Bytes)
}

func TestHandlerWaitVoteBlocksUntilRoundReached(t *testing.T) {
	m, s, sk, pub, _ := newSinglePeerFixture(t)
	book := gossip.NewBook(s)
	h := driver.NewHandler(m, pub, sk, book, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := h.WaitVote(ctx, &consensuscore.WaitVoteRequest{Round: 5})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandlerWaitFinalityVoteReturnsOwnClaim(t *testing.T) {
	m, s, sk, pub, genesis := newSinglePeerFixture(t)
	book := gossip.NewBook(s)
	h := driver.NewHandler(m, pub, sk, book, nil)

	hdr0 := consensuscore.NewBlockHeader(nil, 0, genesis, consensuscore.BlockPayloadRaw{})
	resp := &consensuscore.WaitVoteResponse{
		Kind:  consensuscore.WaitVoteResponseProposal,
		Block: consensuscore.SignNew[*consensuscore.BlockHeader](&hdr0, sk),
	}
	_, err := m.ProcessVote(0, resp)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := h.WaitFinalityVote(ctx, &consensuscore.WaitFinalityVoteRequest{Round: 0})
	require.NoError(t, err)
	require.Equal(t, consensuscore.BlockRound(1), got.Update.Inner.Round)
	require.NoError(t, got.Update.VerifySigPeerPubkey(pub))
}

func TestHandlerGetConsensusVersionReportsGenesisVersion(t *testing.T) {
	m, s, sk, pub, genesis := newSinglePeerFixture(t)
	book := gossip.NewBook(s)
	h := driver.NewHandler(m, pub, sk, book, nil)

	got, err := h.GetConsensusVersion(context.Background(), &consensuscore.GetConsensusVersionRequest{})
	require.NoError(t, err)
	require.Equal(t, genesis.Version, got.Version)
}

func TestHandlerGetBlockNotFoundBeforeFinality(t *testing.T) {
	m, s, sk, pub, _ := newSinglePeerFixture(t)
	book := gossip.NewBook(s)
	h := driver.NewHandler(m, pub, sk, book, nil)

	got, err := h.GetBlock(context.Background(), &consensuscore.GetBlockRequest{Round: 0})
	require.NoError(t, err)
	require.False(t, got.Found)
}

func TestHandlerGetBlockFoundAfterFinality(t *testing.T) {
	m, s, sk, pub, genesis := newSinglePeerFixture(t)
	book := gossip.NewBook(s)
	h := driver.NewHandler(m, pub, sk, book, nil)

	hdr0 := consensuscore.NewBlockHeader(nil, 0, genesis, consensuscore.BlockPayloadRaw{})
	resp := &consensuscore.WaitVoteResponse{
		Kind:  consensuscore.WaitVoteResponseProposal,
		Block: consensuscore.SignNew[*consensuscore.BlockHeader](&hdr0, sk),
	}
	_, err := m.ProcessVote(0, resp)
	require.NoError(t, err)

	got, err := h.GetBlock(context.Background(), &consensuscore.GetBlockRequest{Round: 0})
	require.NoError(t, err)
	require.True(t, got.Found)
	require.Equal(t, hdr0.Hash(), got.Block.Inner.Hash())
}

func TestHandlerPushAndGetPeerAddrRoundTrip(t *testing.T) {
	m, s, sk, pub, _ := newSinglePeerFixture(t)
	book := gossip.NewBook(s)
	h := driver.NewHandler(m, pub, sk, book, nil)

	other, err := crypto.GenerateSeckey()
	require.NoError(t, err)
	update := consensuscore.NewAddressUpdate(1, other.Pubkey(), "127.0.0.1:9000")
	signed := consensuscore.SignNew[*consensuscore.AddressUpdate](&update, other)

	err = h.PushPeerAddr(context.Background(), &consensuscore.PushPeerAddrUpdate{Update: signed})
	require.NoError(t, err)

	got, err := h.GetPeerAddr(context.Background(), &consensuscore.GetPeerAddrRequest{Peer: other.Pubkey()})
	require.NoError(t, err)
	require.True(t, got.Found)
	require.Equal(t, "127.0.0.1:9000", got.Update.Inner.Addr)
}
