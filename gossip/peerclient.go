// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import (
	"context"

	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/crypto"
)

// PeerClient is the narrow slice of the peer RPC surface gossip needs: push
// an address record at a peer, or ask a peer what it knows about a third
// party's address. The concrete implementation (rpc.Client) speaks the
// length-framed wire protocol; gossip only depends on this interface so it
// never imports rpc directly.
type PeerClient interface {
	PushAddress(ctx context.Context, update consensuscore.Signed[*consensuscore.AddressUpdate]) error
	GetAddress(ctx context.Context, want crypto.PeerPubkey) (consensuscore.Signed[*consensuscore.AddressUpdate], bool, error)
	Close() error
}

// Dialer opens a PeerClient connection to peer at addr. Implementations
// are expected to pool connections (at most one live connection per
// remote identity) and hand back a shared handle rather than dialing
// fresh every call.
type Dialer func(ctx context.Context, peer crypto.PeerPubkey, addr string) (PeerClient, error)
