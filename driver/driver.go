// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package driver orchestrates the per-round task fan-out: proposal
// generation, peer vote/notarization queries, self-timeout, and the
// long-running per-peer finality-vote tasks, feeding every response into
// the consensus state machine.
package driver

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/luxfi/bfte/appmodule"
	"github.com/luxfi/bfte/consensus"
	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/crypto"
	"github.com/luxfi/bfte/gossip"
	"github.com/luxfi/bfte/log"
	"github.com/luxfi/bfte/metrics"
	"github.com/luxfi/bfte/rpc"
	"github.com/luxfi/bfte/store"
)

// Driver drives one node's participation in every round: it owns no
// state of its own beyond its identity and peer-dialing machinery,
// reading and writing everything else through the Machine's store.
type Driver struct {
	machine *consensus.Machine
	self    consensuscore.PeerPubkey
	seckey  crypto.PeerSeckey

	pool     *rpc.Pool
	book     *gossip.Book
	gossiper *gossip.Gossiper
	payload  appmodule.PayloadSource

	metric *metrics.NodeMetrics
	log    log.Logger
}

// New builds a Driver for self, driving machine's store over pool's
// pooled peer connections and book's address directory. payload may be
// nil, in which case the leader-proposal task always proposes empty
// (non-dummy) blocks.
func New(
	machine *consensus.Machine,
	self consensuscore.PeerPubkey,
	seckey crypto.PeerSeckey,
	pool *rpc.Pool,
	book *gossip.Book,
	gossiper *gossip.Gossiper,
	payload appmodule.PayloadSource,
	metric *metrics.NodeMetrics,
	logger log.Logger,
) *Driver {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if payload == nil {
		payload = appmodule.EmptyPayloadSource{}
	}
	return &Driver{
		machine:  machine,
		self:     self,
		seckey:   seckey,
		pool:     pool,
		book:     book,
		gossiper: gossiper,
		payload:  payload,
		metric:   metric,
		log:      logger,
	}
}

// Run drives the round loop until ctx is canceled or a fatal invariant
// violation halts the node. Each iteration reads the current round and
// params, spawns the round's task group, and waits for the round to
// advance (or any task to return a fatal error) before restarting.
func (d *Driver) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, peer := range d.currentPeersOrEmpty() {
		peer := peer
		if peer == d.self {
			continue
		}
		eg.Go(func() error { return d.finalityVoteTask(ctx, peer) })
	}
	eg.Go(func() error { return d.roundLoop(ctx) })
	return eg.Wait()
}

func (d *Driver) currentPeersOrEmpty() []consensuscore.PeerPubkey {
	params, err := d.currentParams()
	if err != nil || params == nil {
		return nil
	}
	return params.Peers.AsSlice()
}

func (d *Driver) currentParams() (*consensuscore.ConsensusParams, error) {
	var params *consensuscore.ConsensusParams
	err := d.machine.Store().Read(func(tx *store.ReadTx) error {
		round, err := store.CurrentRound(tx)
		if err != nil {
			return err
		}
		hash, ok, err := store.ParamsForRound(tx, round)
		if err != nil || !ok {
			return err
		}
		p, ok, err := store.GetParams(tx, hash)
		if err != nil || !ok {
			return err
		}
		params = p
		return nil
	})
	return params, err
}

func (d *Driver) roundLoop(ctx context.Context) error {
	for {
		round, params, err := d.currentRoundAndParams()
		if err != nil {
			return err
		}
		if params == nil {
			// No params scheduled at this round yet (brand-new, not-yet-
			// joined node); wait for one to appear.
			if err := waitForAny(ctx, d.machine.Store().WatchCurrentRound()); err != nil {
				return err
			}
			continue
		}

		selfIdx, isMember := params.FindPeerIdx(d.self)

		roundCtx, cancel := context.WithCancel(ctx)
		eg, roundCtx := errgroup.WithContext(roundCtx)

		if isMember {
			eg.Go(func() error { return d.leaderProposalTask(roundCtx, round, params, selfIdx) })
			eg.Go(func() error { return d.voteOnProposalTask(roundCtx, round, params, selfIdx) })
			eg.Go(func() error { return d.selfTimeoutTask(roundCtx, round) })
		}
		for _, pi := range params.IterPeers() {
			if pi.Pubkey == d.self {
				continue
			}
			pi := pi
			eg.Go(func() error { return d.peerVoteQueryTask(roundCtx, round, pi.Idx, pi.Pubkey) })
			eg.Go(func() error { return d.peerNotarizedQueryTask(roundCtx, round, pi.Pubkey) })
		}

		advanceErr := d.waitRoundAdvance(roundCtx, round)
		cancel()
		if waitErr := eg.Wait(); waitErr != nil && !errors.Is(waitErr, context.Canceled) && consensus.IsFatal(waitErr) {
			return waitErr
		}
		if advanceErr != nil {
			if errors.Is(advanceErr, context.Canceled) && ctx.Err() == nil {
				// round advanced under us; not a real cancellation
			} else {
				return advanceErr
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.metric != nil {
			d.metric.CurrentRound.Set(float64(round))
		}
	}
}

func (d *Driver) currentRoundAndParams() (consensuscore.BlockRound, *consensuscore.ConsensusParams, error) {
	var (
		round  consensuscore.BlockRound
		params *consensuscore.ConsensusParams
	)
	err := d.machine.Store().Read(func(tx *store.ReadTx) error {
		r, err := store.CurrentRound(tx)
		if err != nil {
			return err
		}
		round = r
		hash, ok, err := store.ParamsForRound(tx, r)
		if err != nil || !ok {
			return err
		}
		p, ok, err := store.GetParams(tx, hash)
		if err != nil || !ok {
			return err
		}
		params = p
		return nil
	})
	return round, params, err
}

// waitRoundAdvance blocks until store's current_round no longer equals
// round, or ctx is canceled.
func (d *Driver) waitRoundAdvance(ctx context.Context, round consensuscore.BlockRound) error {
	for {
		cur, err := d.readCurrentRound()
		if err != nil {
			return err
		}
		if cur != round {
			return nil
		}
		if err := waitForAny(ctx, d.machine.Store().WatchCurrentRound()); err != nil {
			return err
		}
	}
}

func (d *Driver) readCurrentRound() (consensuscore.BlockRound, error) {
	var round consensuscore.BlockRound
	err := d.machine.Store().Read(func(tx *store.ReadTx) error {
		r, err := store.CurrentRound(tx)
		round = r
		return err
	})
	return round, err
}

// dialPeer resolves peer's address from the book and returns a pooled
// connection to it, marking the address as needed (for gossip pull) if
// it is not yet known.
func (d *Driver) dialPeer(ctx context.Context, peer consensuscore.PeerPubkey) (*rpc.Conn, error) {
	update, ok, err := d.book.Lookup(peer)
	if err != nil {
		return nil, err
	}
	if !ok {
		if d.gossiper != nil {
			d.gossiper.NeedAddress(peer)
		}
		return nil, errAddressUnknown
	}
	conn, err := d.pool.Get(ctx, peer, update.Inner.Addr)
	if err != nil {
		d.pool.Drop(peer)
		if d.gossiper != nil {
			d.gossiper.NeedAddress(peer)
		}
		return nil, err
	}
	return conn, nil
}

var errAddressUnknown = errors.New("driver: no known address for peer yet")
