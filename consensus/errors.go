// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensus implements the consensus state machine: three pure,
// transactional entry points (ProcessVote, ProcessNotarizedBlock,
// ProcessFinalityVote) and the round-advancement sweep (CheckRoundEnd)
// that ProcessVote and ProcessNotarizedBlock conclude with, operating
// entirely through store's typed tables. ProcessFinalityVote only
// recomputes finality_consensus and does not run the sweep.
package consensus

import (
	"errors"
	"fmt"
)

// Non-fatal errors: the caller's input was rejected, but the store is
// left exactly as it was (the transaction rolled back) and the driver
// may simply move on.
var (
	ErrInvalidRound             = errors.New("consensus: response is not for the current round")
	ErrRoundAlreadyNotarized    = errors.New("consensus: current round already has a notarized block")
	ErrNoParamsScheduled        = errors.New("consensus: no consensus params scheduled at or before this round")
	ErrParamsNotFound           = errors.New("consensus: scheduled consensus params hash not found in params table")
	ErrNotLeader                = errors.New("consensus: proposal did not come from the round's leader")
	ErrProposalMustBeNonDummy   = errors.New("consensus: a leader proposal must not be the dummy block")
	ErrForkedProposal           = errors.New("consensus: a different proposal is already recorded for this round")
	ErrInvalidDummyBlock        = errors.New("consensus: vote's dummy block does not match the canonical dummy for this round")
	ErrVoteForADifferentProposal = errors.New("consensus: vote is for a block other than the pinned proposal")
	ErrWrongRoundBlock          = errors.New("consensus: notarized block is for a round older than our latest")
	ErrWrongParent              = errors.New("consensus: block does not directly extend a known notarized block")
	ErrInvalidSignature         = errors.New("consensus: signature verification failed")
	// ErrInvalidNotarizedContent is the exception in this block:
	// ProcessNotarizedBlock returns it wrapped in a FatalError.
	ErrInvalidNotarizedContent  = errors.New("consensus: notarized block's content does not match its commitments")
)

// ForkedSignatureError describes a peer that signed two distinct values at
// the same round. Machine does not return this type: it records the new
// signature as evidence and reports the condition through
// Effect.ForkedSignature instead of failing the call.
type ForkedSignatureError struct {
	Round uint64
}

func (e *ForkedSignatureError) Error() string {
	return fmt.Sprintf("consensus: peer signed two distinct values at round %d", e.Round)
}

// FatalError marks an invariant violation that indicates federation-wide
// consensus failure or local state corruption: PinnedMismatch, two
// distinct notarized non-dummy blocks at one round, a finality
// regression, or a notarized block whose content does not match its
// commitments (ErrInvalidNotarizedContent). The node should halt rather
// than continue processing.
type FatalError struct {
	err error
}

// NewFatalError wraps err as a FatalError.
func NewFatalError(err error) *FatalError {
	return &FatalError{err: err}
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("consensus: FATAL invariant violation: %s", e.err)
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// IsFatal reports whether err (or something it wraps) is a FatalError
// that should halt the node instead of being logged and skipped.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

var (
	// ErrPinnedMismatch: a round's externally-pinned block hash differs
	// from the block the state machine just notarized at that round.
	ErrPinnedMismatch = errors.New("pinned block hash mismatch")
	// ErrDuplicateNotarization: two distinct BlockHeaders were notarized
	// at the same round, which a correct quorum can never produce.
	ErrDuplicateNotarization = errors.New("two distinct notarized blocks at the same round")
	// ErrFinalityRegression: the federation's derived finality height
	// decreased, which must never happen if peers are honest.
	ErrFinalityRegression = errors.New("finality_consensus decreased")
)
