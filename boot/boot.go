// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package boot brings a Machine up from cold start, three ways: Init
// seeds a brand-new federation's genesis, Open reattaches to an
// already-initialized store, and Join fetches and verifies a genesis it
// did not create, using an invite token and a single bootstrap
// connection.
package boot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/luxfi/bfte/codec"
	"github.com/luxfi/bfte/consensus"
	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/gossip"
	"github.com/luxfi/bfte/invite"
	"github.com/luxfi/bfte/log"
	"github.com/luxfi/bfte/rpc"
	"github.com/luxfi/bfte/store"
)

// Init writes genesis params to a freshly-opened, empty engine and
// returns the resulting Machine. Fails if the engine already has a
// genesis scheduled, since re-initializing an existing federation's
// store would silently orphan whatever state it already recorded.
func Init(engine store.Engine, self consensuscore.PeerPubkey, genesis *consensuscore.ConsensusParams) (*consensus.Machine, error) {
	s := store.Open(engine)
	if initialized, err := isInitialized(s); err != nil {
		return nil, err
	} else if initialized {
		return nil, ErrAlreadyInitialized
	}

	m, err := newMachine(s, self)
	if err != nil {
		return nil, err
	}
	if err := m.Init(genesis); err != nil {
		return nil, err
	}
	return m, nil
}

// Open reattaches to an engine that already has genesis params
// scheduled, returning the resulting Machine without writing anything.
func Open(engine store.Engine, self consensuscore.PeerPubkey) (*consensus.Machine, error) {
	s := store.Open(engine)
	if initialized, err := isInitialized(s); err != nil {
		return nil, err
	} else if !initialized {
		return nil, ErrNotInitialized
	}
	return newMachine(s, self)
}

// newMachine builds a Machine over s with a fresh read-through params
// cache; every boot path wants one, so it isn't a caller-supplied knob.
func newMachine(s *store.Store, self consensuscore.PeerPubkey) (*consensus.Machine, error) {
	cache, err := store.NewParamsCache(s, 0)
	if err != nil {
		return nil, err
	}
	return consensus.New(s, self, cache), nil
}

func isInitialized(s *store.Store) (bool, error) {
	var ok bool
	err := s.Read(func(tx *store.ReadTx) error {
		_, found, err := store.ParamsForRound(tx, 0)
		ok = found
		return err
	})
	return ok, err
}

// Join dials code's bootstrap peer once, fetches and verifies the
// federation's genesis params, writes them to a freshly-opened engine,
// pins the invite's recent block (if any) against forks, and best-effort
// records every peer address the bootstrap peer is willing to report.
// Returns the resulting Machine and the address book seeded along the
// way; the caller wires both into a Driver.
func Join(ctx context.Context, engine store.Engine, self consensuscore.PeerPubkey, pool *rpc.Pool, code *invite.Code, logger log.Logger) (*consensus.Machine, *gossip.Book, error) {
	if code.InitParams == nil {
		return nil, nil, ErrNoInitParams
	}

	s := store.Open(engine)
	if initialized, err := isInitialized(s); err != nil {
		return nil, nil, err
	} else if initialized {
		return nil, nil, ErrAlreadyInitialized
	}

	conn, err := pool.Get(ctx, code.Peer, code.Address)
	if err != nil {
		return nil, nil, fmt.Errorf("boot: dial bootstrap peer: %w", err)
	}

	genesis, err := fetchParams(ctx, conn, code.InitParams.Hash, code.InitParams.Len)
	if err != nil {
		return nil, nil, fmt.Errorf("boot: fetch init params: %w", err)
	}
	if consensuscore.DeriveFederationID(genesis) != code.Federation {
		return nil, nil, ErrParamsMismatch
	}

	m, err := newMachine(s, self)
	if err != nil {
		return nil, nil, err
	}
	if err := m.Init(genesis); err != nil {
		return nil, nil, err
	}

	book := gossip.NewBook(s)
	recordPeerAddresses(ctx, conn, book, genesis.Peers.AsSlice(), logger)

	if code.Pin != nil {
		if err := verifyAndWritePin(ctx, s, conn, code.Pin); err != nil {
			return nil, nil, err
		}
	}

	return m, book, nil
}

// fetchParams fetches raw params over conn, checks them against the
// length and hash the caller already trusts, and decodes them.
func fetchParams(ctx context.Context, conn *rpc.Conn, hash consensuscore.ConsensusParamsHash, length consensuscore.ConsensusParamsLen) (*consensuscore.ConsensusParams, error) {
	resp, err := conn.GetConsensusParams(ctx, &consensuscore.GetConsensusParamsRequest{Hash: hash})
	if err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, ErrParamsMismatch
	}
	if resp.Raw.Hash() != hash || resp.Raw.Len() != length {
		return nil, ErrParamsMismatch
	}
	var params consensuscore.ConsensusParams
	if err := codec.Unmarshal(resp.Raw.Bytes, &params); err != nil {
		return nil, fmt.Errorf("boot: decode params: %w", err)
	}
	return &params, nil
}

// recordPeerAddresses asks the bootstrap connection what it knows about
// each of peers' addresses, recording whatever it reports. A peer the
// bootstrap contact has no address for is logged and skipped; gossip
// pull fills it in later once any other peer is reachable.
func recordPeerAddresses(ctx context.Context, conn *rpc.Conn, book *gossip.Book, peers []consensuscore.PeerPubkey, logger log.Logger) {
	for _, peer := range peers {
		resp, err := conn.GetPeerAddr(ctx, &consensuscore.GetPeerAddrRequest{Peer: peer})
		if err != nil {
			if logger != nil {
				logger.Warn("boot: peer address query failed", zap.Stringer("peer", peer), zap.Error(err))
			}
			continue
		}
		if !resp.Found {
			if logger != nil {
				logger.Warn("boot: bootstrap peer has no address on file", zap.Stringer("peer", peer))
			}
			continue
		}
		if _, err := book.Record(peer, resp.Update); err != nil && logger != nil {
			logger.Warn("boot: discarded peer address", zap.Stringer("peer", peer), zap.Error(err))
		}
	}
}

// verifyAndWritePin fetches the notarized block at pin.Round, checks its
// hash matches pin.Hash, and pins it so the anti-fork check in
// consensus.Machine.ProcessVote rejects any other block notarized there.
func verifyAndWritePin(ctx context.Context, s *store.Store, conn *rpc.Conn, pin *invite.Pin) error {
	resp, err := conn.GetBlock(ctx, &consensuscore.GetBlockRequest{Round: pin.Round})
	if err != nil {
		return fmt.Errorf("boot: fetch pinned block: %w", err)
	}
	if !resp.Found || resp.Block.Inner.Hash() != pin.Hash {
		return ErrPinMismatch
	}
	return s.Write(func(tx *store.WriteTx) error {
		return store.PutBlockPinned(tx, pin.Round, pin.Hash)
	})
}
