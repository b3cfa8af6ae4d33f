// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"encoding/binary"
	"fmt"

	"github.com/luxfi/bfte/codec"
	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/crypto"
)

// Table key prefixes. Each table occupies its own byte-prefixed region of
// the flat Engine keyspace so a single Engine can hold all of them without
// collision, and so range scans (params_schedule, votes_block) can bound
// themselves to one table by prefix.
const (
	prefixCurrentRound      byte = 0x01
	prefixParamsSchedule    byte = 0x02
	prefixParams            byte = 0x03
	prefixBlocksProposals   byte = 0x04
	prefixBlocksNotarized   byte = 0x05
	prefixBlocksPayloads    byte = 0x06
	prefixBlocksPinned      byte = 0x07
	prefixVotesBlock        byte = 0x08
	prefixVotesDummy        byte = 0x09
	prefixFinalityVotes     byte = 0x0a
	prefixFinalityConsensus byte = 0x0b
	prefixPeerAddresses     byte = 0x0c
)

func roundKeyBytes(r consensuscore.BlockRound) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(r))
	return b
}

func prefixedKey(prefix byte, parts ...[]byte) []byte {
	n := 1
	for _, p := range parts {
		n += len(p)
	}
	k := make([]byte, 0, n)
	k = append(k, prefix)
	for _, p := range parts {
		k = append(k, p...)
	}
	return k
}

func singletonKey(prefix byte) []byte {
	return []byte{prefix}
}

func encodeValue(v codec.Encoder) []byte {
	b, err := codec.Marshal(v)
	if err != nil {
		// Every table value is a fixed or length-prefixed encoding of an
		// in-memory value already validated on construction; it cannot
		// fail to marshal.
		panic(fmt.Errorf("store: encode table value: %w", err))
	}
	return b
}

func decodeValue(b []byte, v codec.Decoder) error {
	return codec.Unmarshal(b, v)
}

// reader is satisfied by both *ReadTx and *WriteTx, letting every Tables
// accessor work under either a read-only or a read-write transaction.
type reader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Iterate(lowerBound, upperBound []byte, fn func(key, value []byte) bool) error
}

// writer is satisfied by *WriteTx.
type writer interface {
	reader
	Put(key, value []byte) error
	Delete(key []byte) error
	OnCommit(fn func())
}

// CurrentRound returns the highest round the peer is in.
func CurrentRound(tx reader) (consensuscore.BlockRound, error) {
	b, err := tx.Get(singletonKey(prefixCurrentRound))
	if err != nil || b == nil {
		return 0, err
	}
	var r consensuscore.BlockRound
	return r, decodeValue(b, &r)
}

// SetCurrentRound advances the peer's current round and, on commit,
// notifies WatchCurrentRound.
func SetCurrentRound(tx writer, s *Store, r consensuscore.BlockRound) error {
	if err := tx.Put(singletonKey(prefixCurrentRound), encodeValue(r)); err != nil {
		return err
	}
	tx.OnCommit(func() { s.watches.notify(watchCurrentRound) })
	return nil
}

// ScheduleParams records that params identified by hash apply from
// appliedRound onward.
func ScheduleParams(tx writer, appliedRound consensuscore.BlockRound, hash consensuscore.ConsensusParamsHash) error {
	return tx.Put(prefixedKey(prefixParamsSchedule, roundKeyBytes(appliedRound)), hash[:])
}

// ParamsForRound returns the consensus-params hash in effect at round,
// i.e. the params_schedule entry with the greatest applied-round ≤ round.
func ParamsForRound(tx reader, round consensuscore.BlockRound) (consensuscore.ConsensusParamsHash, bool, error) {
	var found consensuscore.ConsensusParamsHash
	ok := false
	upper := prefixedKey(prefixParamsSchedule, roundKeyBytes(round.Next()))
	err := tx.Iterate(prefixedKey(prefixParamsSchedule), upper, func(_, value []byte) bool {
		copy(found[:], value)
		ok = true
		return true // keep scanning; the last entry ≤ round wins
	})
	return found, ok, err
}

// PutParams content-addresses a ConsensusParams value by its hash.
func PutParams(tx writer, params *consensuscore.ConsensusParams) error {
	hash := params.Hash()
	return tx.Put(prefixedKey(prefixParams, hash[:]), encodeValue(params))
}

// GetParams looks up a previously-stored ConsensusParams by hash.
func GetParams(tx reader, hash consensuscore.ConsensusParamsHash) (*consensuscore.ConsensusParams, bool, error) {
	b, err := tx.Get(prefixedKey(prefixParams, hash[:]))
	if err != nil || b == nil {
		return nil, false, err
	}
	var p consensuscore.ConsensusParams
	if err := decodeValue(b, &p); err != nil {
		return nil, false, err
	}
	return &p, true, nil
}

// PutBlockProposal records the first-accepted non-dummy proposal for round.
func PutBlockProposal(tx writer, s *Store, round consensuscore.BlockRound, header *consensuscore.BlockHeader) error {
	if err := tx.Put(prefixedKey(prefixBlocksProposals, roundKeyBytes(round)), encodeValue(header)); err != nil {
		return err
	}
	tx.OnCommit(func() { s.watches.notify(watchBlocksProposal) })
	return nil
}

// GetBlockProposal returns the proposal recorded for round, if any.
func GetBlockProposal(tx reader, round consensuscore.BlockRound) (*consensuscore.BlockHeader, bool, error) {
	b, err := tx.Get(prefixedKey(prefixBlocksProposals, roundKeyBytes(round)))
	if err != nil || b == nil {
		return nil, false, err
	}
	var h consensuscore.BlockHeader
	if err := decodeValue(b, &h); err != nil {
		return nil, false, err
	}
	return &h, true, nil
}

// PutBlockNotarized records the notarized non-dummy block at round.
func PutBlockNotarized(tx writer, round consensuscore.BlockRound, header *consensuscore.BlockHeader) error {
	return tx.Put(prefixedKey(prefixBlocksNotarized, roundKeyBytes(round)), encodeValue(header))
}

// DeleteBlockNotarized removes the notarized block at round, used for the
// single-step rewind when a higher notarized block supersedes it.
func DeleteBlockNotarized(tx writer, round consensuscore.BlockRound) error {
	return tx.Delete(prefixedKey(prefixBlocksNotarized, roundKeyBytes(round)))
}

// GetBlockNotarized returns the notarized block at round, if any.
func GetBlockNotarized(tx reader, round consensuscore.BlockRound) (*consensuscore.BlockHeader, bool, error) {
	b, err := tx.Get(prefixedKey(prefixBlocksNotarized, roundKeyBytes(round)))
	if err != nil || b == nil {
		return nil, false, err
	}
	var h consensuscore.BlockHeader
	if err := decodeValue(b, &h); err != nil {
		return nil, false, err
	}
	return &h, true, nil
}

// LatestNotarized returns the notarized non-dummy block with the greatest
// round ≤ atOrBelow, if any. Used to find "our_latest"/"our_second_latest"
// during fork resolution.
func LatestNotarized(tx reader, atOrBelow consensuscore.BlockRound) (*consensuscore.BlockHeader, bool, error) {
	var found *consensuscore.BlockHeader
	upper := prefixedKey(prefixBlocksNotarized, roundKeyBytes(atOrBelow.Next()))
	err := tx.Iterate(prefixedKey(prefixBlocksNotarized), upper, func(_, value []byte) bool {
		var h consensuscore.BlockHeader
		if decErr := decodeValue(value, &h); decErr == nil {
			found = &h
		}
		return true
	})
	return found, found != nil, err
}

// LatestNotarizedUnbounded returns the notarized non-dummy block with the
// greatest round over the whole table, if any.
func LatestNotarizedUnbounded(tx reader) (*consensuscore.BlockHeader, bool, error) {
	var found *consensuscore.BlockHeader
	lower := prefixedKey(prefixBlocksNotarized)
	upper := prefixedKey(prefixBlocksNotarized + 1)
	err := tx.Iterate(lower, upper, func(_, value []byte) bool {
		var h consensuscore.BlockHeader
		if decErr := decodeValue(value, &h); decErr == nil {
			found = &h
		}
		return true
	})
	return found, found != nil, err
}

// PutBlockPayload content-addresses a payload by its BLAKE3 hash.
func PutBlockPayload(tx writer, payload consensuscore.BlockPayloadRaw) error {
	hash := payload.Hash()
	return tx.Put(prefixedKey(prefixBlocksPayloads, hash[:]), encodeValue(payload))
}

// GetBlockPayload looks up previously-stored payload bytes by hash.
func GetBlockPayload(tx reader, hash consensuscore.BlockPayloadHash) (consensuscore.BlockPayloadRaw, bool, error) {
	b, err := tx.Get(prefixedKey(prefixBlocksPayloads, hash[:]))
	if err != nil || b == nil {
		return consensuscore.BlockPayloadRaw{}, false, err
	}
	var p consensuscore.BlockPayloadRaw
	if err := decodeValue(b, &p); err != nil {
		return consensuscore.BlockPayloadRaw{}, false, err
	}
	return p, true, nil
}

// PutBlockPinned externally pins the expected block hash at round, used
// by a joining peer to anchor against forks.
func PutBlockPinned(tx writer, round consensuscore.BlockRound, hash consensuscore.BlockHash) error {
	return tx.Put(prefixedKey(prefixBlocksPinned, roundKeyBytes(round)), hash[:])
}

// GetBlockPinned returns the pinned block hash at round, if any.
func GetBlockPinned(tx reader, round consensuscore.BlockRound) (consensuscore.BlockHash, bool, error) {
	b, err := tx.Get(prefixedKey(prefixBlocksPinned, roundKeyBytes(round)))
	if err != nil || b == nil {
		return consensuscore.BlockHash{}, false, err
	}
	var h consensuscore.BlockHash
	copy(h[:], b)
	return h, true, nil
}

func voteBlockKey(round consensuscore.BlockRound, idx consensuscore.PeerIdx) []byte {
	return prefixedKey(prefixVotesBlock, roundKeyBytes(round), []byte{byte(idx)})
}

// PutVoteBlock records peerIdx's signed vote for a proposal at round.
func PutVoteBlock(tx writer, s *Store, round consensuscore.BlockRound, idx consensuscore.PeerIdx, vote consensuscore.Signed[*consensuscore.BlockHeader]) error {
	if err := tx.Put(voteBlockKey(round, idx), encodeValue(vote)); err != nil {
		return err
	}
	tx.OnCommit(func() { s.watches.notify(watchVotesBlock) })
	return nil
}

// DeleteVotesBlockForRound purges every recorded block vote at round,
// used when a conflicting proposal supersedes a pinned one.
func DeleteVotesBlockForRound(tx writer, round consensuscore.BlockRound) error {
	lower := prefixedKey(prefixVotesBlock, roundKeyBytes(round))
	upper := prefixedKey(prefixVotesBlock, roundKeyBytes(round.Next()))
	var keys [][]byte
	if err := tx.Iterate(lower, upper, func(key, _ []byte) bool {
		keys = append(keys, append([]byte(nil), key...))
		return true
	}); err != nil {
		return err
	}
	for _, k := range keys {
		if err := tx.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// GetVoteBlock returns peerIdx's recorded block vote at round, if any.
func GetVoteBlock(tx reader, round consensuscore.BlockRound, idx consensuscore.PeerIdx, newInner func() *consensuscore.BlockHeader) (consensuscore.Signed[*consensuscore.BlockHeader], bool, error) {
	b, err := tx.Get(voteBlockKey(round, idx))
	if err != nil || b == nil {
		return consensuscore.Signed[*consensuscore.BlockHeader]{}, false, err
	}
	r, err := codec.NewReader(b)
	if err != nil {
		return consensuscore.Signed[*consensuscore.BlockHeader]{}, false, err
	}
	vote, err := consensuscore.DecodeSigned[*consensuscore.BlockHeader](r, newInner)
	if err != nil {
		return consensuscore.Signed[*consensuscore.BlockHeader]{}, false, err
	}
	return vote, true, nil
}

// CountVotesBlockFor returns how many distinct peers have voted for a
// block whose header hashes to want at round.
func CountVotesBlockFor(tx reader, round consensuscore.BlockRound, want consensuscore.BlockHash, newInner func() *consensuscore.BlockHeader) (int, error) {
	lower := prefixedKey(prefixVotesBlock, roundKeyBytes(round))
	upper := prefixedKey(prefixVotesBlock, roundKeyBytes(round.Next()))
	count := 0
	err := tx.Iterate(lower, upper, func(_, value []byte) bool {
		r, rErr := codec.NewReader(value)
		if rErr != nil {
			return true
		}
		vote, decErr := consensuscore.DecodeSigned[*consensuscore.BlockHeader](r, newInner)
		if decErr == nil && vote.Inner.Hash() == want {
			count++
		}
		return true
	})
	return count, err
}

func voteDummyKey(round consensuscore.BlockRound, idx consensuscore.PeerIdx) []byte {
	return prefixedKey(prefixVotesDummy, roundKeyBytes(round), []byte{byte(idx)})
}

// PutVoteDummy records peerIdx's dummy/timeout vote for round.
func PutVoteDummy(tx writer, s *Store, round consensuscore.BlockRound, idx consensuscore.PeerIdx, sig crypto.Signature) error {
	if err := tx.Put(voteDummyKey(round, idx), sig[:]); err != nil {
		return err
	}
	tx.OnCommit(func() { s.watches.notify(watchVotesDummy) })
	return nil
}

// GetVoteDummy returns peerIdx's recorded dummy-vote signature at round,
// if any.
func GetVoteDummy(tx reader, round consensuscore.BlockRound, idx consensuscore.PeerIdx) (crypto.Signature, bool, error) {
	b, err := tx.Get(voteDummyKey(round, idx))
	if err != nil || b == nil {
		return crypto.Signature{}, false, err
	}
	var sig crypto.Signature
	copy(sig[:], b)
	return sig, true, nil
}

// CountVotesDummy returns how many peers have voted dummy at round.
func CountVotesDummy(tx reader, round consensuscore.BlockRound) (int, error) {
	lower := prefixedKey(prefixVotesDummy, roundKeyBytes(round))
	upper := prefixedKey(prefixVotesDummy, roundKeyBytes(round.Next()))
	count := 0
	err := tx.Iterate(lower, upper, func(_, _ []byte) bool {
		count++
		return true
	})
	return count, err
}

// PruneVotesDummyBefore deletes every dummy vote at a round strictly
// below round, reclaiming space once those rounds are finalized.
func PruneVotesDummyBefore(tx writer, round consensuscore.BlockRound) error {
	upper := prefixedKey(prefixVotesDummy, roundKeyBytes(round))
	var keys [][]byte
	if err := tx.Iterate(prefixedKey(prefixVotesDummy), upper, func(key, _ []byte) bool {
		keys = append(keys, append([]byte(nil), key...))
		return true
	}); err != nil {
		return err
	}
	for _, k := range keys {
		if err := tx.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// SetFinalityVote records peer's first-unnotarized-round claim. Callers
// must enforce the monotonic (non-decreasing per peer) rule before
// calling; see consensus.ProcessFinalityVote.
func SetFinalityVote(tx writer, s *Store, peer crypto.PeerPubkey, round consensuscore.BlockRound) error {
	if err := tx.Put(prefixedKey(prefixFinalityVotes, peer[:]), encodeValue(round)); err != nil {
		return err
	}
	tx.OnCommit(func() { s.watches.notify(watchFinality) })
	return nil
}

// GetFinalityVote returns peer's last-recorded finality claim, defaulting
// to round zero if none has been recorded.
func GetFinalityVote(tx reader, peer crypto.PeerPubkey) (consensuscore.BlockRound, error) {
	b, err := tx.Get(prefixedKey(prefixFinalityVotes, peer[:]))
	if err != nil || b == nil {
		return 0, err
	}
	var r consensuscore.BlockRound
	return r, decodeValue(b, &r)
}

// SetFinalityConsensus records the federation-wide derived finality
// height.
func SetFinalityConsensus(tx writer, s *Store, round consensuscore.BlockRound) error {
	if err := tx.Put(singletonKey(prefixFinalityConsensus), encodeValue(round)); err != nil {
		return err
	}
	tx.OnCommit(func() { s.watches.notify(watchFinality) })
	return nil
}

// GetFinalityConsensus returns the current federation-wide finality
// height.
func GetFinalityConsensus(tx reader) (consensuscore.BlockRound, error) {
	b, err := tx.Get(singletonKey(prefixFinalityConsensus))
	if err != nil || b == nil {
		return 0, err
	}
	var r consensuscore.BlockRound
	return r, decodeValue(b, &r)
}

// PutPeerAddress records peer's signed address update, keyed by pubkey.
// Callers must enforce the "greatest timestamp wins, non-increasing
// timestamps discarded" rule before calling; see gossip.Book.
func PutPeerAddress(tx writer, peer crypto.PeerPubkey, update consensuscore.Signed[*consensuscore.AddressUpdate]) error {
	return tx.Put(prefixedKey(prefixPeerAddresses, peer[:]), encodeValue(update))
}

// GetPeerAddress returns peer's last-recorded signed address update, if
// any.
func GetPeerAddress(tx reader, peer crypto.PeerPubkey) (consensuscore.Signed[*consensuscore.AddressUpdate], bool, error) {
	b, err := tx.Get(prefixedKey(prefixPeerAddresses, peer[:]))
	if err != nil || b == nil {
		return consensuscore.Signed[*consensuscore.AddressUpdate]{}, false, err
	}
	r, err := codec.NewReader(b)
	if err != nil {
		return consensuscore.Signed[*consensuscore.AddressUpdate]{}, false, err
	}
	update, err := consensuscore.DecodeSigned[*consensuscore.AddressUpdate](r, func() *consensuscore.AddressUpdate { return &consensuscore.AddressUpdate{} })
	if err != nil {
		return consensuscore.Signed[*consensuscore.AddressUpdate]{}, false, err
	}
	return update, true, nil
}

// IterPeerAddresses visits every recorded address update, in ascending
// peer-pubkey order, until fn returns false.
func IterPeerAddresses(tx reader, fn func(peer crypto.PeerPubkey, update consensuscore.Signed[*consensuscore.AddressUpdate]) bool) error {
	lower := prefixedKey(prefixPeerAddresses)
	upper := prefixedKey(prefixPeerAddresses + 1)
	return tx.Iterate(lower, upper, func(key, value []byte) bool {
		var peer crypto.PeerPubkey
		copy(peer[:], key[1:])
		r, err := codec.NewReader(value)
		if err != nil {
			return true
		}
		update, err := consensuscore.DecodeSigned[*consensuscore.AddressUpdate](r, func() *consensuscore.AddressUpdate { return &consensuscore.AddressUpdate{} })
		if err != nil {
			return true
		}
		return fn(peer, update)
	})
}
