// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

import (
	"fmt"
	"sort"

	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/crypto"
	"github.com/luxfi/bfte/store"
)

// Effect summarizes what a state-machine call changed, for the round
// driver to react to: restart its task group on a round change, arm or
// cancel a timeout timer, log forked-signature evidence.
type Effect struct {
	RoundAdvanced   bool
	NewRound        consensuscore.BlockRound
	NeedsTimeout    bool
	ForkedSignature bool
}

func newBlockHeader() *consensuscore.BlockHeader { return &consensuscore.BlockHeader{} }

// Machine is the consensus state machine for one peer. Each of its
// state-changing methods runs a single store.Write transaction; on error
// the transaction rolls back and nothing is observably changed.
// NeedsTimeout only reads, through store.Read.
type Machine struct {
	store *store.Store
	cache *store.ParamsCache // optional; nil disables the read-through cache
	self  consensuscore.PeerPubkey
}

// New builds a Machine for self (this peer's own pubkey, used to track
// its own finality-vote claim) over s. cache may be nil.
func New(s *store.Store, self consensuscore.PeerPubkey, cache *store.ParamsCache) *Machine {
	return &Machine{store: s, cache: cache, self: self}
}

// Store returns the underlying store, for read-only queries (the driver
// and RPC layer read current_round/params/proposals directly).
func (m *Machine) Store() *store.Store {
	return m.store
}

func (m *Machine) paramsFor(tx store.Reader, round consensuscore.BlockRound) (*consensuscore.ConsensusParams, error) {
	hash, ok, err := store.ParamsForRound(tx, round)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoParamsScheduled
	}
	if m.cache != nil {
		if p, ok, err := m.cache.Get(tx, hash); err != nil {
			return nil, err
		} else if ok {
			return p, nil
		}
	}
	p, ok, err := store.GetParams(tx, hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrParamsNotFound
	}
	return p, nil
}

// Init writes genesis params (applied at round 0) and seeds current_round
// at 0. Called once by the boot package when creating a brand-new
// federation.
func (m *Machine) Init(genesis *consensuscore.ConsensusParams) error {
	return m.store.Write(func(tx *store.WriteTx) error {
		if err := store.PutParams(tx, genesis); err != nil {
			return err
		}
		if err := store.ScheduleParams(tx, 0, genesis.Hash()); err != nil {
			return err
		}
		return store.SetCurrentRound(tx, m.store, 0)
	})
}

// ProcessVote handles a single peer's proposal-or-vote response for the
// current round.
func (m *Machine) ProcessVote(recvPeerIdx consensuscore.PeerIdx, resp *consensuscore.WaitVoteResponse) (Effect, error) {
	var effect Effect
	err := m.store.Write(func(tx *store.WriteTx) error {
		header := resp.Block.Inner
		round := header.Round

		currentRound, err := store.CurrentRound(tx)
		if err != nil {
			return err
		}
		if currentRound != round {
			return ErrInvalidRound
		}
		if _, ok, err := store.GetBlockNotarized(tx, currentRound); err != nil {
			return err
		} else if ok {
			return ErrRoundAlreadyNotarized
		}

		params, err := m.paramsFor(tx, currentRound)
		if err != nil {
			return err
		}

		if resp.IsProposal() {
			if recvPeerIdx != params.LeaderIdx(currentRound) {
				return ErrNotLeader
			}
			if header.IsDummy() {
				return ErrProposalMustBeNonDummy
			}
			paramsHash, paramsLen := params.HashAndLen()
			if err := header.VerifyContent(paramsHash, paramsLen, params.Version, resp.Payload); err != nil {
				return err
			}
			prevNotarized, _, err := store.LatestNotarizedUnbounded(tx)
			if err != nil {
				return err
			}
			if !header.DoesDirectlyExtend(prevNotarized) {
				return ErrWrongParent
			}
			existing, ok, err := store.GetBlockProposal(tx, currentRound)
			if err != nil {
				return err
			}
			if ok && existing.Hash() != header.Hash() {
				return ErrForkedProposal
			}
			if err := store.PutBlockProposal(tx, m.store, currentRound, header); err != nil {
				return err
			}
			if err := store.PutBlockPayload(tx, resp.Payload); err != nil {
				return err
			}
		}

		if err := resp.Block.VerifySigPeerIdx(recvPeerIdx, params.Peers.AsSlice()); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}

		if header.IsDummy() {
			expected := consensuscore.NewDummyBlockHeader(currentRound, params)
			if expected.Hash() != header.Hash() {
				return ErrInvalidDummyBlock
			}
			if forked, err := dummyVoteConflicts(tx, currentRound, recvPeerIdx, resp.Block.Sig); err != nil {
				return err
			} else if forked {
				effect.ForkedSignature = true
			}
			if err := store.PutVoteDummy(tx, m.store, currentRound, recvPeerIdx, resp.Block.Sig); err != nil {
				return err
			}
		} else {
			if pinnedHash, hasPinned, err := store.GetBlockPinned(tx, currentRound); err != nil {
				return err
			} else if hasPinned && pinnedHash != header.Hash() {
				return ErrVoteForADifferentProposal
			}
			if forked, err := blockVoteConflicts(tx, currentRound, recvPeerIdx, header.Hash()); err != nil {
				return err
			} else if forked {
				effect.ForkedSignature = true
			}
			if err := store.PutVoteBlock(tx, m.store, currentRound, recvPeerIdx, resp.Block); err != nil {
				return err
			}
		}

		e, err := m.checkRoundEnd(tx, currentRound)
		if err != nil {
			return err
		}
		e.ForkedSignature = effect.ForkedSignature
		effect = e
		return nil
	})
	return effect, err
}

func dummyVoteConflicts(tx *store.WriteTx, round consensuscore.BlockRound, idx consensuscore.PeerIdx, sig crypto.Signature) (bool, error) {
	existing, ok, err := store.GetVoteDummy(tx, round, idx)
	if err != nil || !ok {
		return false, err
	}
	return existing != sig, nil
}

func blockVoteConflicts(tx *store.WriteTx, round consensuscore.BlockRound, idx consensuscore.PeerIdx, wantHash consensuscore.BlockHash) (bool, error) {
	existing, ok, err := store.GetVoteBlock(tx, round, idx, newBlockHeader)
	if err != nil || !ok {
		return false, err
	}
	return existing.Inner.Hash() != wantHash, nil
}

// ProcessNotarizedBlock handles a peer's response to WaitNotarizedBlockRequest.
func (m *Machine) ProcessNotarizedBlock(resp *consensuscore.WaitNotarizedBlockResponse) (Effect, error) {
	var effect Effect
	err := m.store.Write(func(tx *store.WriteTx) error {
		header := resp.Block.Inner
		round := header.Round

		params, err := m.paramsFor(tx, round)
		if err != nil {
			return err
		}
		if err := resp.Block.VerifySigs(params); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
		paramsHash, paramsLen := params.HashAndLen()
		if err := header.VerifyContent(paramsHash, paramsLen, params.Version, resp.Payload); err != nil {
			return NewFatalError(fmt.Errorf("%w: %w", ErrInvalidNotarizedContent, err))
		}

		if header.IsDummy() {
			currentRound, err := store.CurrentRound(tx)
			if err != nil {
				return err
			}
			if round != currentRound {
				return ErrWrongRoundBlock
			}
			for idx, sig := range resp.Block.Sigs {
				if err := store.PutVoteDummy(tx, m.store, round, idx, sig); err != nil {
					return err
				}
			}
		} else {
			ourLatest, hasLatest, err := store.LatestNotarizedUnbounded(tx)
			if err != nil {
				return err
			}
			switch {
			case !hasLatest:
				if !header.DoesDirectlyExtend(nil) {
					return ErrWrongParent
				}
				if err := store.PutBlockNotarized(tx, round, header); err != nil {
					return err
				}
			case round == ourLatest.Round:
				if header.Hash() != ourLatest.Hash() {
					return NewFatalError(fmt.Errorf("%w: round %d", ErrDuplicateNotarization, round))
				}
			case round < ourLatest.Round:
				return ErrWrongRoundBlock
			default:
				if header.DoesDirectlyExtend(ourLatest) {
					if err := store.PutBlockNotarized(tx, round, header); err != nil {
						return err
					}
				} else {
					var ourSecondLatest *consensuscore.BlockHeader
					if ourLatest.Round > 0 {
						ourSecondLatest, _, err = store.LatestNotarized(tx, ourLatest.Round-1)
						if err != nil {
							return err
						}
					}
					if !header.DoesDirectlyExtend(ourSecondLatest) {
						return ErrWrongParent
					}
					if err := store.DeleteBlockNotarized(tx, ourLatest.Round); err != nil {
						return err
					}
					if err := store.PutBlockNotarized(tx, round, header); err != nil {
						return err
					}
				}
			}

			for idx, sig := range resp.Block.Sigs {
				vote := consensuscore.NewSigned[*consensuscore.BlockHeader](header, sig)
				if err := store.PutVoteBlock(tx, m.store, round, idx, vote); err != nil {
					return err
				}
			}
			if err := store.PutBlockPayload(tx, resp.Payload); err != nil {
				return err
			}
			if err := m.bumpOwnFinalityVote(tx, round, header); err != nil {
				return err
			}
		}

		currentRound, err := store.CurrentRound(tx)
		if err != nil {
			return err
		}
		e, err := m.checkRoundEnd(tx, currentRound)
		effect = e
		return err
	})
	return effect, err
}

// ProcessFinalityVote handles a peer's signed claim to have observed
// notarization through at least Round.
func (m *Machine) ProcessFinalityVote(peer consensuscore.PeerPubkey, signed consensuscore.Signed[*consensuscore.FinalityVoteUpdate]) error {
	return m.store.Write(func(tx *store.WriteTx) error {
		if err := signed.VerifySigPeerPubkey(peer); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
		round := signed.Inner.Round

		existing, err := store.GetFinalityVote(tx, peer)
		if err != nil {
			return err
		}
		if round <= existing {
			return nil // strictly-decreasing (or equal) claim: ignored
		}
		if err := store.SetFinalityVote(tx, m.store, peer, round); err != nil {
			return err
		}

		currentRound, err := store.CurrentRound(tx)
		if err != nil {
			return err
		}
		params, err := m.paramsFor(tx, currentRound)
		if err != nil {
			return err
		}
		return m.recomputeFinalityConsensus(tx, params)
	})
}

// bumpOwnFinalityVote records that this peer has itself observed round's
// notarization, claiming finality through round+1, and recomputes the
// federation-derived finality height. Dummy blocks confirm nothing about
// payload execution and do not advance a peer's own finality claim.
func (m *Machine) bumpOwnFinalityVote(tx *store.WriteTx, round consensuscore.BlockRound, notarized *consensuscore.BlockHeader) error {
	if notarized.IsDummy() {
		return nil
	}
	if err := store.SetFinalityVote(tx, m.store, m.self, round.Next()); err != nil {
		return err
	}
	params, err := m.paramsFor(tx, round)
	if err != nil {
		return err
	}
	return m.recomputeFinalityConsensus(tx, params)
}

func (m *Machine) recomputeFinalityConsensus(tx *store.WriteTx, params *consensuscore.ConsensusParams) error {
	peers := params.Peers.AsSlice()
	votes := make([]consensuscore.BlockRound, len(peers))
	for i, p := range peers {
		v, err := store.GetFinalityVote(tx, p)
		if err != nil {
			return err
		}
		votes[i] = v
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i] < votes[j] })

	maxFaulty := params.NumPeers().MaxFaulty()
	newConsensus := votes[maxFaulty]

	cur, err := store.GetFinalityConsensus(tx)
	if err != nil {
		return err
	}
	if newConsensus < cur {
		return NewFatalError(ErrFinalityRegression)
	}
	if newConsensus == cur {
		return nil
	}
	return store.SetFinalityConsensus(tx, m.store, newConsensus)
}

// CheckRoundEnd re-runs the round-advancement sweep starting at
// startRound in its own transaction. ProcessVote and ProcessNotarizedBlock
// already run the sweep internally (ProcessFinalityVote does not); driver
// code calls it directly after a bare timeout fires with no new vote.
func (m *Machine) CheckRoundEnd(startRound consensuscore.BlockRound) (Effect, error) {
	var effect Effect
	err := m.store.Write(func(tx *store.WriteTx) error {
		e, err := m.checkRoundEnd(tx, startRound)
		effect = e
		return err
	})
	return effect, err
}

func (m *Machine) checkRoundEnd(tx *store.WriteTx, startRound consensuscore.BlockRound) (Effect, error) {
	round := startRound
	for {
		if notarized, ok, err := store.GetBlockNotarized(tx, round); err != nil {
			return Effect{}, err
		} else if ok {
			if err := m.advancePastNotarizedRound(tx, round, notarized); err != nil {
				return Effect{}, err
			}
			round = round.Next()
			continue
		}

		params, err := m.paramsFor(tx, round)
		if err != nil {
			return Effect{}, err
		}
		threshold := params.NumPeers().Threshold()

		if promoted, err := m.tryPromotePinnedProposal(tx, round, threshold); err != nil {
			return Effect{}, err
		} else if promoted != nil {
			if err := m.advancePastNotarizedRound(tx, round, promoted); err != nil {
				return Effect{}, err
			}
			if err := m.bumpOwnFinalityVote(tx, round, promoted); err != nil {
				return Effect{}, err
			}
			round = round.Next()
			continue
		}

		dummyCount, err := store.CountVotesDummy(tx, round)
		if err != nil {
			return Effect{}, err
		}
		if dummyCount >= threshold {
			round = round.Next()
			continue
		}

		break
	}

	if err := store.SetCurrentRound(tx, m.store, round); err != nil {
		return Effect{}, err
	}

	needsTimeout, err := m.needsTimeout(tx, round)
	if err != nil {
		return Effect{}, err
	}
	if round != startRound || needsTimeout {
		store.NotifyTimeout(tx, m.store)
	}

	return Effect{RoundAdvanced: round != startRound, NewRound: round, NeedsTimeout: needsTimeout}, nil
}

// tryPromotePinnedProposal promotes round's recorded proposal to
// notarized if it has reached threshold votes, matching either an
// externally-pinned hash (join anti-fork) or, absent a pin, simply
// itself.
func (m *Machine) tryPromotePinnedProposal(tx *store.WriteTx, round consensuscore.BlockRound, threshold int) (*consensuscore.BlockHeader, error) {
	proposal, ok, err := store.GetBlockProposal(tx, round)
	if err != nil || !ok {
		return nil, err
	}
	if pinnedHash, hasPinned, err := store.GetBlockPinned(tx, round); err != nil {
		return nil, err
	} else if hasPinned && pinnedHash != proposal.Hash() {
		return nil, nil
	}
	count, err := store.CountVotesBlockFor(tx, round, proposal.Hash(), newBlockHeader)
	if err != nil {
		return nil, err
	}
	if count < threshold {
		return nil, nil
	}
	if err := store.PutBlockNotarized(tx, round, proposal); err != nil {
		return nil, err
	}
	return proposal, nil
}

func (m *Machine) advancePastNotarizedRound(tx *store.WriteTx, round consensuscore.BlockRound, notarized *consensuscore.BlockHeader) error {
	if pinnedHash, hasPinned, err := store.GetBlockPinned(tx, round); err != nil {
		return err
	} else if hasPinned && pinnedHash != notarized.Hash() {
		return NewFatalError(fmt.Errorf("%w: round %d", ErrPinnedMismatch, round))
	}
	return nil
}

// NeedsTimeout reports whether round currently needs its self-timeout
// armed, re-deriving the same condition checkRoundEnd computes on every
// commit. Callers (selfTimeoutTask) use this after waking on
// store.WatchTimeout to decide whether to (re)arm or leave the timer
// canceled.
func (m *Machine) NeedsTimeout(round consensuscore.BlockRound) (bool, error) {
	var needs bool
	err := m.store.Read(func(tx *store.ReadTx) error {
		n, err := m.needsTimeout(tx, round)
		needs = n
		return err
	})
	return needs, err
}

func (m *Machine) needsTimeout(tx store.Reader, round consensuscore.BlockRound) (bool, error) {
	params, err := m.paramsFor(tx, round)
	if err != nil {
		return false, err
	}

	proposal, hasProposal, err := store.GetBlockProposal(tx, round)
	if err != nil {
		return false, err
	}
	if hasProposal {
		count, err := store.CountVotesBlockFor(tx, round, proposal.Hash(), newBlockHeader)
		if err != nil {
			return false, err
		}
		if count < params.NumPeers().Threshold() {
			return true, nil
		}
	}

	dummyCount, err := store.CountVotesDummy(tx, round)
	if err != nil {
		return false, err
	}
	if dummyCount > params.NumPeers().MaxFaulty() {
		return true, nil
	}

	leaderIdx := params.LeaderIdx(round)
	if _, votedDummy, err := store.GetVoteDummy(tx, round, leaderIdx); err != nil {
		return false, err
	} else if votedDummy {
		return true, nil
	}

	return false, nil
}
