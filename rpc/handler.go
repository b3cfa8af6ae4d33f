// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"

	"github.com/luxfi/bfte/consensuscore"
)

// Handler answers the peer RPC surface. A node's driver implements this
// over its own store, consensus state, and address book; Server only
// knows how to frame and dispatch, never how to answer.
type Handler interface {
	// WaitVote blocks until this node has a vote (or, if it is the
	// round's leader, a proposal) for req.Round to report, or ctx is
	// canceled.
	WaitVote(ctx context.Context, req *consensuscore.WaitVoteRequest) (*consensuscore.WaitVoteResponse, error)
	// WaitNotarizedBlock blocks until this node has a notarized block
	// satisfying req, or ctx is canceled.
	WaitNotarizedBlock(ctx context.Context, req *consensuscore.WaitNotarizedBlockRequest) (*consensuscore.WaitNotarizedBlockResponse, error)
	// WaitFinalityVote blocks until this node's own finality vote
	// strictly exceeds req.Round, or ctx is canceled.
	WaitFinalityVote(ctx context.Context, req *consensuscore.WaitFinalityVoteRequest) (*consensuscore.WaitFinalityVoteResponse, error)

	// PushPeerAddr records an unsolicited address update.
	PushPeerAddr(ctx context.Context, push *consensuscore.PushPeerAddrUpdate) error
	// GetPeerAddr returns this node's knowledge of a third peer's
	// address.
	GetPeerAddr(ctx context.Context, req *consensuscore.GetPeerAddrRequest) (*consensuscore.GetPeerAddrResponse, error)

	// GetBlock returns the notarized block at req.Round, if this node
	// has one.
	GetBlock(ctx context.Context, req *consensuscore.GetBlockRequest) (*consensuscore.GetBlockResponse, error)
	// GetConsensusParams returns the params content-addressed by
	// req.Hash, if this node has them on file.
	GetConsensusParams(ctx context.Context, req *consensuscore.GetConsensusParamsRequest) (*consensuscore.GetConsensusParamsResponse, error)
	// GetConsensusVersion returns the consensus protocol version this
	// node currently runs.
	GetConsensusVersion(ctx context.Context, req *consensuscore.GetConsensusVersionRequest) (*consensuscore.GetConsensusVersionResponse, error)
}
