// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package driver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/bfte/consensus"
	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/store"
)

// peerVoteQueryTask repeatedly asks peer for its vote (or proposal) on
// round, retrying on transient failure with a Fibonacci backoff, feeding
// every response into the state machine. Once a non-dummy response has
// been recorded it re-arms the request with OnlyDummy set, since the
// real vote is already on file and all that remains interesting is
// whether the peer later falls back to a dummy.
func (d *Driver) peerVoteQueryTask(ctx context.Context, round consensuscore.BlockRound, peerIdx consensuscore.PeerIdx, peer consensuscore.PeerPubkey) error {
	onlyDummy := false
	retry := newRetrier()
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := d.dialPeer(ctx, peer)
		if err != nil {
			if !retry.sleep(ctx) {
				return nil
			}
			continue
		}

		resp, err := conn.WaitVote(ctx, &consensuscore.WaitVoteRequest{Round: round, OnlyDummy: onlyDummy})
		if err != nil {
			d.pool.Drop(peer)
			d.log.Warn("vote query failed", zap.Stringer("peer", peer), zap.Error(err))
			if !retry.sleep(ctx) {
				return nil
			}
			continue
		}
		retry.reset()

		if _, err := d.machine.ProcessVote(peerIdx, resp); err != nil {
			if consensus.IsFatal(err) {
				return err
			}
			d.log.Warn("discarded peer vote", zap.Stringer("peer", peer), zap.Error(err))
		} else if !resp.Block.Inner.IsDummy() {
			onlyDummy = true
		}
	}
}

// peerNotarizedQueryTask long-polls peer for the round's notarized block
// (dummy or not), feeding whatever it learns into the state machine.
func (d *Driver) peerNotarizedQueryTask(ctx context.Context, round consensuscore.BlockRound, peer consensuscore.PeerPubkey) error {
	retry := newRetrier()
	for {
		if ctx.Err() != nil {
			return nil
		}
		minRound, err := d.finalityFloor()
		if err != nil {
			return err
		}

		conn, err := d.dialPeer(ctx, peer)
		if err != nil {
			if !retry.sleep(ctx) {
				return nil
			}
			continue
		}

		resp, err := conn.WaitNotarizedBlock(ctx, &consensuscore.WaitNotarizedBlockRequest{MinNotarizedRound: minRound, CurRound: round})
		if err != nil {
			d.pool.Drop(peer)
			d.log.Warn("notarized query failed", zap.Stringer("peer", peer), zap.Error(err))
			if !retry.sleep(ctx) {
				return nil
			}
			continue
		}
		retry.reset()

		if _, err := d.machine.ProcessNotarizedBlock(resp); err != nil {
			if consensus.IsFatal(err) {
				return err
			}
			d.log.Warn("discarded peer notarized block", zap.Stringer("peer", peer), zap.Error(err))
		}
	}
}

func (d *Driver) finalityFloor() (consensuscore.BlockRound, error) {
	var round consensuscore.BlockRound
	err := d.machine.Store().Read(func(tx *store.ReadTx) error {
		r, err := store.GetFinalityConsensus(tx)
		round = r
		return err
	})
	return round, err
}

// finalityVoteTask is a node-lifetime task: it outlives every round,
// repeatedly asking peer to report its own finality vote once it
// strictly exceeds what this node last heard, and feeding every update
// into the state machine (which verifies the signature itself).
func (d *Driver) finalityVoteTask(ctx context.Context, peer consensuscore.PeerPubkey) error {
	retry := newRetrier()
	for {
		if ctx.Err() != nil {
			return nil
		}
		prevRound, err := d.peerFinalityVote(peer)
		if err != nil {
			return err
		}

		conn, err := d.dialPeer(ctx, peer)
		if err != nil {
			if !retry.sleep(ctx) {
				return nil
			}
			continue
		}

		resp, err := conn.WaitFinalityVote(ctx, &consensuscore.WaitFinalityVoteRequest{Round: prevRound})
		if err != nil {
			d.pool.Drop(peer)
			d.log.Warn("finality vote query failed", zap.Stringer("peer", peer), zap.Error(err))
			if !retry.sleep(ctx) {
				return nil
			}
			continue
		}
		retry.reset()

		if err := d.machine.ProcessFinalityVote(peer, resp.Update); err != nil {
			d.log.Warn("discarded peer finality vote", zap.Stringer("peer", peer), zap.Error(err))
		}
	}
}

func (d *Driver) peerFinalityVote(peer consensuscore.PeerPubkey) (consensuscore.BlockRound, error) {
	var round consensuscore.BlockRound
	err := d.machine.Store().Read(func(tx *store.ReadTx) error {
		r, err := store.GetFinalityVote(tx, peer)
		round = r
		return err
	})
	return round, err
}

// retrier paces failed-dial/failed-RPC retries with an unbounded
// Fibonacci backoff starting at 100ms and capped at 60s, the same ceiling
// as the connection pool's redial backoff. Unlike the pool's backoff it
// adds no jitter.
type retrier struct {
	prev, cur time.Duration
}

func newRetrier() *retrier {
	return &retrier{cur: 100 * time.Millisecond}
}

func (r *retrier) reset() {
	r.prev, r.cur = 0, 100*time.Millisecond
}

// sleep waits out the current delay (capped at 60s) and advances the
// sequence, returning false if ctx was canceled first.
func (r *retrier) sleep(ctx context.Context) bool {
	delay := r.cur
	const cap = 60 * time.Second
	if delay > cap {
		delay = cap
	}
	next := r.prev + r.cur
	r.prev, r.cur = r.cur, next

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return !errors.Is(ctx.Err(), context.Canceled)
	}
}
