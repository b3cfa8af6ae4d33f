// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package driver

import (
	"context"
	"time"

	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/store"
)

// proposalBatchWindow bounds how long the leader waits for the
// application layer to offer a payload before proposing whatever (even
// empty) payload it has on hand.
const proposalBatchWindow = 2 * time.Second

// leaderProposalTask builds and submits this node's own proposal for
// round, if it is the round's leader and has not already voted. It waits
// up to proposalBatchWindow for the application layer to offer a
// payload, except when the previous round ended in a dummy block, in
// which case it proposes immediately to help the federation recover.
func (d *Driver) leaderProposalTask(ctx context.Context, round consensuscore.BlockRound, params *consensuscore.ConsensusParams, selfIdx consensuscore.PeerIdx) error {
	if selfIdx != params.LeaderIdx(round) {
		return nil
	}

	alreadyVoted, prevNotarized, err := d.ownVoteAndPrev(round, selfIdx)
	if err != nil {
		return err
	}
	if alreadyVoted {
		return nil
	}

	window := proposalBatchWindow
	if prevNotarized == nil || prevNotarized.IsDummy() {
		window = 0
	}
	payloadCtx, cancel := context.WithTimeout(ctx, window)
	payload, err := d.payload.Propose(payloadCtx)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		payload = consensuscore.BlockPayloadRaw{}
	}

	header := consensuscore.NewBlockHeader(prevNotarized, round, params, payload)
	signed := consensuscore.SignNew[*consensuscore.BlockHeader](&header, d.seckey)
	resp := &consensuscore.WaitVoteResponse{
		Kind:    consensuscore.WaitVoteResponseProposal,
		Block:   signed,
		Payload: payload,
	}
	_, err = d.machine.ProcessVote(selfIdx, resp)
	return err
}

func (d *Driver) ownVoteAndPrev(round consensuscore.BlockRound, selfIdx consensuscore.PeerIdx) (bool, *consensuscore.BlockHeader, error) {
	var (
		voted bool
		prev  *consensuscore.BlockHeader
	)
	err := d.machine.Store().Read(func(tx *store.ReadTx) error {
		if _, ok, err := store.GetVoteDummy(tx, round, selfIdx); err != nil {
			return err
		} else if ok {
			voted = true
			return nil
		}
		if _, ok, err := store.GetVoteBlock(tx, round, selfIdx, newBlockHeader); err != nil {
			return err
		} else if ok {
			voted = true
			return nil
		}
		p, _, err := store.LatestNotarizedUnbounded(tx)
		prev = p
		return err
	})
	return voted, prev, err
}

// voteOnProposalTask waits for the round's leader to pin a proposal, then
// signs and submits this node's vote on it. It is a no-op for the
// round's own leader (whose proposal submission already counts as its
// vote) and for a node that has already voted this round.
func (d *Driver) voteOnProposalTask(ctx context.Context, round consensuscore.BlockRound, params *consensuscore.ConsensusParams, selfIdx consensuscore.PeerIdx) error {
	if selfIdx == params.LeaderIdx(round) {
		return nil
	}
	for {
		voted, header, err := d.proposalToVoteOn(round, selfIdx)
		if err != nil {
			return err
		}
		if voted {
			return nil
		}
		if header != nil {
			signed := consensuscore.SignNew[*consensuscore.BlockHeader](header, d.seckey)
			resp := &consensuscore.WaitVoteResponse{Kind: consensuscore.WaitVoteResponseVote, Block: signed}
			_, err := d.machine.ProcessVote(selfIdx, resp)
			return err
		}
		if err := waitForAny(ctx, d.machine.Store().WatchBlocksProposal()); err != nil {
			return nil
		}
	}
}

func (d *Driver) proposalToVoteOn(round consensuscore.BlockRound, selfIdx consensuscore.PeerIdx) (bool, *consensuscore.BlockHeader, error) {
	var (
		voted  bool
		header *consensuscore.BlockHeader
	)
	err := d.machine.Store().Read(func(tx *store.ReadTx) error {
		if _, ok, err := store.GetVoteDummy(tx, round, selfIdx); err != nil {
			return err
		} else if ok {
			voted = true
			return nil
		}
		if _, ok, err := store.GetVoteBlock(tx, round, selfIdx, newBlockHeader); err != nil {
			return err
		} else if ok {
			voted = true
			return nil
		}
		h, ok, err := store.GetBlockProposal(tx, round)
		if err != nil || !ok {
			return err
		}
		header = h
		return nil
	})
	return voted, header, err
}

// selfTimeoutTask arms the only wall-clock timer in the system: once
// round's state machine signals it needs a timeout, it counts down
// TimeoutPolicy and, if round still has not been voted on by then,
// submits a dummy vote so the federation can still make progress. The
// countdown does not start until needsTimeout first holds, matching the
// state machine's commit-time "(round, needs_timeout)" signal instead of
// racing a proposal that may still arrive.
func (d *Driver) selfTimeoutTask(ctx context.Context, round consensuscore.BlockRound) error {
	if err := d.waitNeedsTimeout(ctx, round); err != nil {
		return err
	}

	unfinalized, err := d.unfinalizedRounds(round)
	if err != nil {
		return err
	}

	timer := time.NewTimer(TimeoutPolicy(unfinalized))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
	}

	params, voted, selfIdx, err := d.timeoutReadState(round)
	if err != nil || voted || params == nil {
		return err
	}

	dummy := consensuscore.NewDummyBlockHeader(round, params)
	signed := consensuscore.SignNew[*consensuscore.BlockHeader](&dummy, d.seckey)
	resp := &consensuscore.WaitVoteResponse{Kind: consensuscore.WaitVoteResponseVote, Block: signed}
	_, err = d.machine.ProcessVote(selfIdx, resp)
	return err
}

// waitNeedsTimeout blocks until the machine reports round needs its
// self-timeout armed, re-checking on every store.WatchTimeout wakeup.
// Per the commit-time contract in Machine.checkRoundEnd, a round's
// needs-timeout condition is never unset once true, so this only ever
// waits once per round.
func (d *Driver) waitNeedsTimeout(ctx context.Context, round consensuscore.BlockRound) error {
	for {
		needs, err := d.machine.NeedsTimeout(round)
		if err != nil {
			return err
		}
		if needs {
			return nil
		}
		if err := waitForAny(ctx, d.machine.Store().WatchTimeout()); err != nil {
			return err
		}
	}
}

func (d *Driver) unfinalizedRounds(round consensuscore.BlockRound) (uint64, error) {
	var finality consensuscore.BlockRound
	err := d.machine.Store().Read(func(tx *store.ReadTx) error {
		f, err := store.GetFinalityConsensus(tx)
		finality = f
		return err
	})
	if err != nil {
		return 0, err
	}
	if round <= finality {
		return 0, nil
	}
	return uint64(round - finality), nil
}

func (d *Driver) timeoutReadState(round consensuscore.BlockRound) (*consensuscore.ConsensusParams, bool, consensuscore.PeerIdx, error) {
	var (
		params  *consensuscore.ConsensusParams
		voted   bool
		selfIdx consensuscore.PeerIdx
	)
	err := d.machine.Store().Read(func(tx *store.ReadTx) error {
		hash, ok, err := store.ParamsForRound(tx, round)
		if err != nil || !ok {
			return err
		}
		p, ok, err := store.GetParams(tx, hash)
		if err != nil || !ok {
			return err
		}
		params = p
		idx, ok := p.FindPeerIdx(d.self)
		if !ok {
			return nil
		}
		selfIdx = idx
		if _, ok, err := store.GetVoteDummy(tx, round, idx); err != nil {
			return err
		} else if ok {
			voted = true
			return nil
		}
		_, ok, err = store.GetVoteBlock(tx, round, idx, newBlockHeader)
		voted = ok
		return err
	})
	return params, voted, selfIdx, err
}
