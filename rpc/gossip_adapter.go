// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"

	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/crypto"
	"github.com/luxfi/bfte/gossip"
)

// gossipPeerClient adapts a pooled *Conn to gossip.PeerClient, so the
// gossiper can push and pull address records without importing rpc
// itself.
type gossipPeerClient struct {
	conn *Conn
}

var _ gossip.PeerClient = (*gossipPeerClient)(nil)

func (g *gossipPeerClient) PushAddress(ctx context.Context, update consensuscore.Signed[*consensuscore.AddressUpdate]) error {
	return g.conn.PushPeerAddr(ctx, &consensuscore.PushPeerAddrUpdate{Update: update})
}

func (g *gossipPeerClient) GetAddress(ctx context.Context, want crypto.PeerPubkey) (consensuscore.Signed[*consensuscore.AddressUpdate], bool, error) {
	resp, err := g.conn.GetPeerAddr(ctx, &consensuscore.GetPeerAddrRequest{Peer: want})
	if err != nil {
		return consensuscore.Signed[*consensuscore.AddressUpdate]{}, false, err
	}
	return resp.Update, resp.Found, nil
}

func (g *gossipPeerClient) Close() error {
	return nil // the pool, not the gossiper, owns the underlying Conn's lifecycle
}

// NewGossipDialer returns a gossip.Dialer backed by pool, so push/pull
// loops reuse the same pooled, identity-keyed connections the rest of the
// node's RPC traffic uses.
func NewGossipDialer(pool *Pool) gossip.Dialer {
	return func(ctx context.Context, peer crypto.PeerPubkey, addr string) (gossip.PeerClient, error) {
		conn, err := pool.Get(ctx, peer, addr)
		if err != nil {
			return nil, err
		}
		return &gossipPeerClient{conn: conn}, nil
	}
}
