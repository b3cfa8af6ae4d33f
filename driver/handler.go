// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package driver

import (
	"context"
	"errors"

	"github.com/luxfi/bfte/consensus"
	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/crypto"
	"github.com/luxfi/bfte/gossip"
	"github.com/luxfi/bfte/log"
	"github.com/luxfi/bfte/rpc"
	"github.com/luxfi/bfte/store"
)

// ErrSelfNotInPeerSet is returned by the long-poll handlers when this
// peer's own pubkey is not present in the round's effective params; a
// node should never be asked to serve RPCs for a federation it isn't a
// member of.
var ErrSelfNotInPeerSet = errors.New("driver: this peer is not a member of the round's peer set")

func newBlockHeader() *consensuscore.BlockHeader { return &consensuscore.BlockHeader{} }

// Handler answers the peer RPC surface by reading directly from the
// store (and, for the two address RPCs, the gossip address book). The
// three Wait* calls long-poll on the store's watch channels instead of
// busy-polling, per the connection-pool/no-wall-clock-except-self-timeout
// concurrency rules.
type Handler struct {
	machine *consensus.Machine
	self    consensuscore.PeerPubkey
	seckey  crypto.PeerSeckey
	book    *gossip.Book
	log     log.Logger
}

var _ rpc.Handler = (*Handler)(nil)

// NewHandler builds a Handler serving machine's store as self, signing
// its own outgoing finality-vote claims with seckey.
func NewHandler(machine *consensus.Machine, self consensuscore.PeerPubkey, seckey crypto.PeerSeckey, book *gossip.Book, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Handler{machine: machine, self: self, seckey: seckey, book: book, log: logger}
}

func (h *Handler) store() *store.Store { return h.machine.Store() }

// waitForAny blocks until one of the watch channels fires or ctx is
// done, whichever comes first.
func waitForAny(ctx context.Context, chans ...<-chan struct{}) error {
	switch len(chans) {
	case 1:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-chans[0]:
			return nil
		}
	case 2:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-chans[0]:
			return nil
		case <-chans[1]:
			return nil
		}
	default:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-chans[0]:
			return nil
		case <-chans[1]:
			return nil
		case <-chans[2]:
			return nil
		}
	}
}

// WaitVote long-polls until the store reaches req.Round and this peer's
// own vote (or, if this peer is the round's leader, its own proposal)
// matching req.OnlyDummy is available.
func (h *Handler) WaitVote(ctx context.Context, req *consensuscore.WaitVoteRequest) (*consensuscore.WaitVoteResponse, error) {
	for {
		resp, ok, err := h.waitVoteOnce(req)
		if err != nil {
			return nil, err
		}
		if ok {
			return resp, nil
		}
		if err := waitForAny(ctx, h.store().WatchCurrentRound(), h.store().WatchVotesBlock(), h.store().WatchVotesDummy()); err != nil {
			return nil, err
		}
	}
}

func (h *Handler) waitVoteOnce(req *consensuscore.WaitVoteRequest) (*consensuscore.WaitVoteResponse, bool, error) {
	var resp *consensuscore.WaitVoteResponse
	err := h.store().Read(func(tx *store.ReadTx) error {
		cur, err := store.CurrentRound(tx)
		if err != nil {
			return err
		}
		if cur < req.Round {
			return nil
		}

		hash, ok, err := store.ParamsForRound(tx, req.Round)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		params, ok, err := store.GetParams(tx, hash)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		selfIdx, ok := params.FindPeerIdx(h.self)
		if !ok {
			return ErrSelfNotInPeerSet
		}

		if dummySig, ok, err := store.GetVoteDummy(tx, req.Round, selfIdx); err != nil {
			return err
		} else if ok {
			dummy := consensuscore.NewDummyBlockHeader(req.Round, params)
			resp = &consensuscore.WaitVoteResponse{
				Kind:  consensuscore.WaitVoteResponseVote,
				Block: consensuscore.NewSigned[*consensuscore.BlockHeader](&dummy, dummySig),
			}
			return nil
		}
		if req.OnlyDummy {
			return nil
		}

		vote, ok, err := store.GetVoteBlock(tx, req.Round, selfIdx, newBlockHeader)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		leaderIdx := params.LeaderIdx(req.Round)
		if selfIdx == leaderIdx {
			if proposal, ok, err := store.GetBlockProposal(tx, req.Round); err == nil && ok && proposal.Hash() == vote.Inner.Hash() {
				payload, ok, err := store.GetBlockPayload(tx, proposal.PayloadHash)
				if err != nil {
					return err
				}
				if ok {
					resp = &consensuscore.WaitVoteResponse{
						Kind:    consensuscore.WaitVoteResponseProposal,
						Block:   vote,
						Payload: payload,
					}
					return nil
				}
			}
		}

		resp = &consensuscore.WaitVoteResponse{Kind: consensuscore.WaitVoteResponseVote, Block: vote}
		return nil
	})
	return resp, resp != nil, err
}

// WaitNotarizedBlock long-polls until either a notarized non-dummy block
// at or after req.MinNotarizedRound, or any notarized block at exactly
// req.CurRound, is on file.
func (h *Handler) WaitNotarizedBlock(ctx context.Context, req *consensuscore.WaitNotarizedBlockRequest) (*consensuscore.WaitNotarizedBlockResponse, error) {
	for {
		resp, ok, err := h.waitNotarizedBlockOnce(req)
		if err != nil {
			return nil, err
		}
		if ok {
			return resp, nil
		}
		if err := waitForAny(ctx, h.store().WatchCurrentRound()); err != nil {
			return nil, err
		}
	}
}

func (h *Handler) waitNotarizedBlockOnce(req *consensuscore.WaitNotarizedBlockRequest) (*consensuscore.WaitNotarizedBlockResponse, bool, error) {
	var resp *consensuscore.WaitNotarizedBlockResponse
	err := h.store().Read(func(tx *store.ReadTx) error {
		if header, ok, err := store.GetBlockNotarized(tx, req.CurRound); err != nil {
			return err
		} else if ok {
			r, ok, err := h.notarizedResponseFor(tx, header)
			if err != nil || !ok {
				return err
			}
			resp = r
			return nil
		}

		latest, ok, err := store.LatestNotarizedUnbounded(tx)
		if err != nil || !ok {
			return err
		}
		if latest.Round < req.MinNotarizedRound {
			return nil
		}
		r, ok, err := h.notarizedResponseFor(tx, latest)
		if err != nil || !ok {
			return err
		}
		resp = r
		return nil
	})
	return resp, resp != nil, err
}

func (h *Handler) notarizedResponseFor(tx *store.ReadTx, header *consensuscore.BlockHeader) (*consensuscore.WaitNotarizedBlockResponse, bool, error) {
	sigs, err := votesForRound(tx, header.Round, header.Hash())
	if err != nil {
		return nil, false, err
	}
	var payload consensuscore.BlockPayloadRaw
	if !header.IsDummy() {
		p, ok, err := store.GetBlockPayload(tx, header.PayloadHash)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
		payload = p
	}
	return &consensuscore.WaitNotarizedBlockResponse{
		Block:   consensuscore.NewNotarized[*consensuscore.BlockHeader](header, sigs),
		Payload: payload,
	}, true, nil
}

func votesForRound(tx *store.ReadTx, round consensuscore.BlockRound, wantHash consensuscore.BlockHash) (map[consensuscore.PeerIdx]crypto.Signature, error) {
	sigs := make(map[consensuscore.PeerIdx]crypto.Signature)
	hash, ok, err := store.ParamsForRound(tx, round)
	if err != nil || !ok {
		return sigs, err
	}
	params, ok, err := store.GetParams(tx, hash)
	if err != nil || !ok {
		return sigs, err
	}
	for _, idx := range params.NumPeers().PeerIdxIter() {
		if dummySig, ok, err := store.GetVoteDummy(tx, round, idx); err != nil {
			return nil, err
		} else if ok {
			dummy := consensuscore.NewDummyBlockHeader(round, params)
			if dummy.Hash() == wantHash {
				sigs[idx] = dummySig
			}
			continue
		}
		if vote, ok, err := store.GetVoteBlock(tx, round, idx, newBlockHeader); err != nil {
			return nil, err
		} else if ok && vote.Inner.Hash() == wantHash {
			sigs[idx] = vote.Sig
		}
	}
	return sigs, nil
}

// WaitFinalityVote long-polls until this peer's own finality vote is
// strictly greater than req.Round.
func (h *Handler) WaitFinalityVote(ctx context.Context, req *consensuscore.WaitFinalityVoteRequest) (*consensuscore.WaitFinalityVoteResponse, error) {
	for {
		_, signed, ok, err := h.ownFinalityVote(req.Round)
		if err != nil {
			return nil, err
		}
		if ok {
			return &consensuscore.WaitFinalityVoteResponse{Update: signed}, nil
		}
		if err := waitForAny(ctx, h.store().WatchFinality()); err != nil {
			return nil, err
		}
	}
}

func (h *Handler) ownFinalityVote(round consensuscore.BlockRound) (consensuscore.BlockRound, consensuscore.Signed[*consensuscore.FinalityVoteUpdate], bool, error) {
	var ownRound consensuscore.BlockRound
	var ok bool
	err := h.store().Read(func(tx *store.ReadTx) error {
		r, err := store.GetFinalityVote(tx, h.self)
		if err != nil {
			return err
		}
		if r <= round {
			return nil
		}
		ownRound = r
		ok = true
		return nil
	})
	if err != nil || !ok {
		return 0, consensuscore.Signed[*consensuscore.FinalityVoteUpdate]{}, false, err
	}
	update := consensuscore.NewFinalityVoteUpdate(ownRound)
	signed := consensuscore.SignNew[*consensuscore.FinalityVoteUpdate](&update, h.seckey)
	return ownRound, signed, true, nil
}

// PushPeerAddr records an inbound signed address update into the gossip
// book.
func (h *Handler) PushPeerAddr(ctx context.Context, push *consensuscore.PushPeerAddrUpdate) error {
	_, err := h.book.Record(push.Update.Inner.Peer, push.Update)
	return err
}

// GetPeerAddr reports this node's most recent knowledge of want's address.
func (h *Handler) GetPeerAddr(ctx context.Context, req *consensuscore.GetPeerAddrRequest) (*consensuscore.GetPeerAddrResponse, error) {
	update, ok, err := h.book.Lookup(req.Peer)
	if err != nil {
		return nil, err
	}
	return &consensuscore.GetPeerAddrResponse{Found: ok, Update: update}, nil
}

// GetBlock returns the notarized block at req.Round, once finalized.
func (h *Handler) GetBlock(ctx context.Context, req *consensuscore.GetBlockRequest) (*consensuscore.GetBlockResponse, error) {
	var resp consensuscore.GetBlockResponse
	err := h.store().Read(func(tx *store.ReadTx) error {
		finalityConsensus, err := store.GetFinalityConsensus(tx)
		if err != nil {
			return err
		}
		if finalityConsensus <= req.Round {
			return nil
		}
		header, ok, err := store.GetBlockNotarized(tx, req.Round)
		if err != nil || !ok {
			return err
		}
		sigs, err := votesForRound(tx, req.Round, header.Hash())
		if err != nil {
			return err
		}
		resp = consensuscore.GetBlockResponse{Found: true, Block: consensuscore.NewNotarized[*consensuscore.BlockHeader](header, sigs)}
		return nil
	})
	return &resp, err
}

// GetConsensusParams returns the canonical encoding of the params
// content-addressed by req.Hash, if this node has them on file.
func (h *Handler) GetConsensusParams(ctx context.Context, req *consensuscore.GetConsensusParamsRequest) (*consensuscore.GetConsensusParamsResponse, error) {
	var resp consensuscore.GetConsensusParamsResponse
	err := h.store().Read(func(tx *store.ReadTx) error {
		params, ok, err := store.GetParams(tx, req.Hash)
		if err != nil || !ok {
			return err
		}
		raw, err := params.ToRaw()
		if err != nil {
			return err
		}
		resp = consensuscore.GetConsensusParamsResponse{Found: true, Raw: raw}
		return nil
	})
	return &resp, err
}

// GetConsensusVersion returns the version in effect at the current
// round.
func (h *Handler) GetConsensusVersion(ctx context.Context, req *consensuscore.GetConsensusVersionRequest) (*consensuscore.GetConsensusVersionResponse, error) {
	var resp consensuscore.GetConsensusVersionResponse
	err := h.store().Read(func(tx *store.ReadTx) error {
		cur, err := store.CurrentRound(tx)
		if err != nil {
			return err
		}
		hash, ok, err := store.ParamsForRound(tx, cur)
		if err != nil || !ok {
			return err
		}
		params, ok, err := store.GetParams(tx, hash)
		if err != nil || !ok {
			return err
		}
		resp = consensuscore.GetConsensusVersionResponse{Version: params.Version}
		return nil
	})
	return &resp, err
}
