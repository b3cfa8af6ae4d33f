// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rpc implements the peer-to-peer wire protocol: a 2-byte
// big-endian RPC ID followed by a codec-encoded request body, answered
// with a codec-encoded response body, each framed with a 4-byte
// big-endian length prefix so a single pooled connection can carry many
// RPCs back to back.
package rpc

// ID identifies which RPC a framed request invokes.
type ID uint16

const (
	WaitVote            ID = 0x11
	WaitNotarizedBlock  ID = 0x12
	WaitFinalityVote    ID = 0x13
	PushPeerAddr        ID = 0x20
	GetPeerAddr         ID = 0x21
	GetBlock            ID = 0x23
	GetConsensusParams  ID = 0x24
	GetConsensusVersion ID = 0x25
)

func (id ID) String() string {
	switch id {
	case WaitVote:
		return "WAIT_VOTE"
	case WaitNotarizedBlock:
		return "WAIT_NOTARIZED_BLOCK"
	case WaitFinalityVote:
		return "WAIT_FINALITY_VOTE"
	case PushPeerAddr:
		return "PUSH_PEER_ADDR_UPDATE"
	case GetPeerAddr:
		return "GET_PEER_ADDR_UPDATE"
	case GetBlock:
		return "GET_BLOCK"
	case GetConsensusParams:
		return "GET_CONSENSUS_PARAMS"
	case GetConsensusVersion:
		return "GET_CONSENSUS_VERSION"
	default:
		return "UNKNOWN"
	}
}
