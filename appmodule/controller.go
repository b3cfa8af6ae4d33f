// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package appmodule defines the narrow interface CORE uses to let the
// application layer above it change who votes. Everything else an
// application needs from consensus (citem delivery, proposed-citem supply)
// is out of CORE's scope; this package stubs the interface shape without
// implementing application logic.
package appmodule

import (
	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/store"
)

// Controller is implemented by the application layer to request a
// peer-set/version change. CORE only defines the interface and the
// store-write path it triggers (store.ScheduleParams); queueing, approval,
// and effect delivery for the change live in the application layer.
type Controller interface {
	// ScheduleConsensusParams schedules next to take effect starting at
	// applyRound. applyRound must be at least the caller's configured
	// delay ahead of the current round; CORE does not enforce a minimum
	// here, that policy belongs to the scheduler below.
	ScheduleConsensusParams(next *consensuscore.ConsensusParams, applyRound consensuscore.BlockRound) error
}

// Scheduler is the default Controller: it writes directly into the store's
// params_schedule and params tables inside one transaction, and refuses an
// apply round that doesn't clear the configured minimum delay from the
// round current at call time.
type Scheduler struct {
	store    *store.Store
	minDelay consensuscore.BlockRound
}

// NewScheduler returns a Scheduler enforcing minDelay rounds between
// "now" and any requested apply round.
func NewScheduler(s *store.Store, minDelay consensuscore.BlockRound) *Scheduler {
	return &Scheduler{store: s, minDelay: minDelay}
}

// ScheduleConsensusParams implements Controller.
func (c *Scheduler) ScheduleConsensusParams(next *consensuscore.ConsensusParams, applyRound consensuscore.BlockRound) error {
	return c.store.Write(func(tx *store.WriteTx) error {
		current, err := store.CurrentRound(tx)
		if err != nil {
			return err
		}
		if applyRound < current+c.minDelay {
			return ErrApplyRoundTooSoon
		}
		if err := store.PutParams(tx, next); err != nil {
			return err
		}
		hash, _ := next.HashAndLen()
		return store.ScheduleParams(tx, applyRound, hash)
	})
}
