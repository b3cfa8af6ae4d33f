// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/crypto"
	"github.com/luxfi/bfte/store"
	"github.com/luxfi/bfte/store/memdb"
)

var errWriteFailed = errors.New("store_test: forced write failure")

func genesisParams(t *testing.T, n int) (*consensuscore.ConsensusParams, []crypto.PeerSeckey) {
	t.Helper()
	seckeys := make([]crypto.PeerSeckey, n)
	pubkeys := make([]consensuscore.PeerPubkey, n)
	for i := range seckeys {
		sk, err := crypto.GenerateSeckey()
		require.NoError(t, err)
		seckeys[i] = sk
		pubkeys[i] = sk.Pubkey()
	}
	return &consensuscore.ConsensusParams{
		Version: consensuscore.NewConsensusVersion(0, 0),
		Peers:   consensuscore.NewPeerSet(pubkeys),
	}, seckeys
}

func newTestStore() *store.Store {
	return store.Open(memdb.New())
}

func TestCurrentRoundDefaultsToZero(t *testing.T) {
	s := newTestStore()
	var got consensuscore.BlockRound
	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		var err error
		got, err = store.CurrentRound(tx)
		return err
	}))
	require.Equal(t, consensuscore.BlockRound(0), got)
}

func TestSetCurrentRoundNotifiesWatch(t *testing.T) {
	s := newTestStore()
	watch := s.WatchCurrentRound()

	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		return store.SetCurrentRound(tx, s, 7)
	}))

	select {
	case <-watch:
	default:
		t.Fatal("expected a current_round notification")
	}

	var got consensuscore.BlockRound
	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		var err error
		got, err = store.CurrentRound(tx)
		return err
	}))
	require.Equal(t, consensuscore.BlockRound(7), got)
}

func TestWriteRollsBackOnError(t *testing.T) {
	s := newTestStore()

	err := s.Write(func(tx *store.WriteTx) error {
		if putErr := store.SetCurrentRound(tx, s, 99); putErr != nil {
			return putErr
		}
		return errWriteFailed
	})
	require.ErrorIs(t, err, errWriteFailed)

	var got consensuscore.BlockRound
	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		var readErr error
		got, readErr = store.CurrentRound(tx)
		return readErr
	}))
	require.Equal(t, consensuscore.BlockRound(0), got, "rolled-back write must not be visible")
}

func TestParamsScheduleFindsLastEntryAtOrBelowRound(t *testing.T) {
	s := newTestStore()
	paramsA, _ := genesisParams(t, 2)
	paramsB, _ := genesisParams(t, 3)

	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		if err := store.ScheduleParams(tx, 0, paramsA.Hash()); err != nil {
			return err
		}
		return store.ScheduleParams(tx, 10, paramsB.Hash())
	}))

	var atFive, atTen, atTwenty consensuscore.ConsensusParamsHash
	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		var ok bool
		var err error
		atFive, ok, err = store.ParamsForRound(tx, 5)
		require.NoError(t, err)
		require.True(t, ok)
		atTen, ok, err = store.ParamsForRound(tx, 10)
		require.NoError(t, err)
		require.True(t, ok)
		atTwenty, ok, err = store.ParamsForRound(tx, 20)
		require.NoError(t, err)
		require.True(t, ok)
		return nil
	}))
	require.Equal(t, paramsA.Hash(), atFive)
	require.Equal(t, paramsB.Hash(), atTen)
	require.Equal(t, paramsB.Hash(), atTwenty)
}

func TestParamsForRoundBeforeAnyScheduleIsNotFound(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		params, _ := genesisParams(t, 1)
		return store.ScheduleParams(tx, 10, params.Hash())
	}))
	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		_, ok, err := store.ParamsForRound(tx, 5)
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))
}

func TestPutAndGetParams(t *testing.T) {
	s := newTestStore()
	params, _ := genesisParams(t, 4)
	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		return store.PutParams(tx, params)
	}))
	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		got, ok, err := store.GetParams(tx, params.Hash())
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, params.Peers.AsSlice(), got.Peers.AsSlice())
		return nil
	}))
}

func TestBlockProposalRoundTripAndWatch(t *testing.T) {
	s := newTestStore()
	params, seckeys := genesisParams(t, 1)
	_ = seckeys
	header := consensuscore.NewBlockHeader(nil, 0, params, consensuscore.BlockPayloadRaw{Bytes: []byte("hello")})

	watch := s.WatchBlocksProposal()
	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		return store.PutBlockProposal(tx, s, 0, &header)
	}))
	select {
	case <-watch:
	default:
		t.Fatal("expected a blocks_proposal notification")
	}

	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		got, ok, err := store.GetBlockProposal(tx, 0)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, header.Hash(), got.Hash())
		return nil
	}))
}

func TestBlockNotarizedRewind(t *testing.T) {
	s := newTestStore()
	params, _ := genesisParams(t, 1)
	h0 := consensuscore.NewBlockHeader(nil, 0, params, consensuscore.BlockPayloadRaw{})
	h1 := consensuscore.NewBlockHeader(&h0, 1, params, consensuscore.BlockPayloadRaw{})

	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		if err := store.PutBlockNotarized(tx, 0, &h0); err != nil {
			return err
		}
		return store.PutBlockNotarized(tx, 1, &h1)
	}))

	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		latest, ok, err := store.LatestNotarized(tx, 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, h1.Hash(), latest.Hash())
		return nil
	}))

	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		return store.DeleteBlockNotarized(tx, 1)
	}))
	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		latest, ok, err := store.LatestNotarized(tx, 1)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, h0.Hash(), latest.Hash())
		return nil
	}))
}

func TestBlockPayloadContentAddressed(t *testing.T) {
	s := newTestStore()
	payload := consensuscore.BlockPayloadRaw{Bytes: []byte("payload bytes")}
	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		return store.PutBlockPayload(tx, payload)
	}))
	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		got, ok, err := store.GetBlockPayload(tx, payload.Hash())
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, payload.Bytes, got.Bytes)
		return nil
	}))
}

func TestVotesBlockCountAndPrune(t *testing.T) {
	s := newTestStore()
	params, seckeys := genesisParams(t, 3)
	h := consensuscore.NewBlockHeader(nil, 0, params, consensuscore.BlockPayloadRaw{Bytes: []byte("p")})

	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		for i, sk := range seckeys {
			vote := consensuscore.SignNew[*consensuscore.BlockHeader](&h, sk)
			if err := store.PutVoteBlock(tx, s, 0, consensuscore.PeerIdx(i), vote); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		count, err := store.CountVotesBlockFor(tx, 0, h.Hash(), func() *consensuscore.BlockHeader { return &consensuscore.BlockHeader{} })
		require.NoError(t, err)
		require.Equal(t, 3, count)
		return nil
	}))

	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		return store.DeleteVotesBlockForRound(tx, 0)
	}))
	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		count, err := store.CountVotesBlockFor(tx, 0, h.Hash(), func() *consensuscore.BlockHeader { return &consensuscore.BlockHeader{} })
		require.NoError(t, err)
		require.Equal(t, 0, count)
		return nil
	}))
}

func TestVotesDummyCountAndPrune(t *testing.T) {
	s := newTestStore()
	_, seckeys := genesisParams(t, 3)

	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		for i, sk := range seckeys {
			sig := sk.Sign([]byte("dummy vote"))
			if err := store.PutVoteDummy(tx, s, 5, consensuscore.PeerIdx(i), sig); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		count, err := store.CountVotesDummy(tx, 5)
		require.NoError(t, err)
		require.Equal(t, 3, count)
		return nil
	}))

	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		return store.PruneVotesDummyBefore(tx, 6)
	}))
	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		count, err := store.CountVotesDummy(tx, 5)
		require.NoError(t, err)
		require.Equal(t, 0, count)
		return nil
	}))
}

func TestFinalityVoteAndConsensus(t *testing.T) {
	s := newTestStore()
	sk, err := crypto.GenerateSeckey()
	require.NoError(t, err)
	pub := sk.Pubkey()

	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		return store.SetFinalityVote(tx, s, pub, 42)
	}))
	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		round, err := store.GetFinalityVote(tx, pub)
		require.NoError(t, err)
		require.Equal(t, consensuscore.BlockRound(42), round)
		return nil
	}))

	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		return store.SetFinalityConsensus(tx, s, 41)
	}))
	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		round, err := store.GetFinalityConsensus(tx)
		require.NoError(t, err)
		require.Equal(t, consensuscore.BlockRound(41), round)
		return nil
	}))
}

func TestBlockPinnedRoundTrip(t *testing.T) {
	s := newTestStore()
	var hash consensuscore.BlockHash
	hash[0] = 0xab
	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		return store.PutBlockPinned(tx, 3, hash)
	}))
	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		got, ok, err := store.GetBlockPinned(tx, 3)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, hash, got)
		return nil
	}))
}

func TestPeerAddressRoundTrip(t *testing.T) {
	s := newTestStore()
	sk, err := crypto.GenerateSeckey()
	require.NoError(t, err)
	pub := sk.Pubkey()

	update := consensuscore.NewAddressUpdate(100, pub, "127.0.0.1:9000")
	signed := consensuscore.SignNew[*consensuscore.AddressUpdate](&update, sk)

	require.NoError(t, s.Write(func(tx *store.WriteTx) error {
		return store.PutPeerAddress(tx, pub, signed)
	}))

	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		got, ok, err := store.GetPeerAddress(tx, pub)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, update, *got.Inner)
		return nil
	}))

	_, err = crypto.GenerateSeckey()
	require.NoError(t, err)
	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		var missing consensuscore.PeerPubkey
		missing[0] = 0xff
		_, ok, err := store.GetPeerAddress(tx, missing)
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))
}

func TestIterPeerAddressesVisitsAll(t *testing.T) {
	s := newTestStore()
	const n = 3
	pubs := make([]consensuscore.PeerPubkey, n)
	for i := range pubs {
		sk, err := crypto.GenerateSeckey()
		require.NoError(t, err)
		pubs[i] = sk.Pubkey()
		update := consensuscore.NewAddressUpdate(uint64(i), sk.Pubkey(), "addr")
		signed := consensuscore.SignNew[*consensuscore.AddressUpdate](&update, sk)
		require.NoError(t, s.Write(func(tx *store.WriteTx) error {
			return store.PutPeerAddress(tx, pubs[i], signed)
		}))
	}

	seen := map[consensuscore.PeerPubkey]bool{}
	require.NoError(t, s.Read(func(tx *store.ReadTx) error {
		return store.IterPeerAddresses(tx, func(peer crypto.PeerPubkey, _ consensuscore.Signed[*consensuscore.AddressUpdate]) bool {
			seen[peer] = true
			return true
		})
	}))
	require.Len(t, seen, n)
	for _, p := range pubs {
		require.True(t, seen[p])
	}
}
