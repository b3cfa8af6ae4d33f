// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/luxfi/bfte/consensuscore"
)

var (
	noDeadline   = time.Time{}
	pastDeadline = time.Unix(0, 1)
)

// Conn is a single pooled connection to one remote peer. Calls are
// serialized: the wire protocol is strict ping-pong (one request
// outstanding at a time), so concurrent callers queue behind mu rather
// than each opening their own socket.
type Conn struct {
	conn net.Conn
	mu   sync.Mutex
}

// NewConn wraps an already-dialed connection.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func withDeadline(ctx context.Context, conn net.Conn, fn func() error) error {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(noDeadline)
	}
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case <-ctx.Done():
		conn.SetDeadline(pastDeadline)
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// WaitVote issues a WAIT_VOTE RPC.
func (c *Conn) WaitVote(ctx context.Context, req *consensuscore.WaitVoteRequest) (*consensuscore.WaitVoteResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var resp consensuscore.WaitVoteResponse
	err := withDeadline(ctx, c.conn, func() error {
		if err := writeRequest(c.conn, WaitVote, req); err != nil {
			return err
		}
		return readResponse(c.conn, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// WaitNotarizedBlock issues a WAIT_NOTARIZED_BLOCK RPC.
func (c *Conn) WaitNotarizedBlock(ctx context.Context, req *consensuscore.WaitNotarizedBlockRequest) (*consensuscore.WaitNotarizedBlockResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var resp consensuscore.WaitNotarizedBlockResponse
	err := withDeadline(ctx, c.conn, func() error {
		if err := writeRequest(c.conn, WaitNotarizedBlock, req); err != nil {
			return err
		}
		return readResponse(c.conn, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// WaitFinalityVote issues a WAIT_FINALITY_VOTE RPC.
func (c *Conn) WaitFinalityVote(ctx context.Context, req *consensuscore.WaitFinalityVoteRequest) (*consensuscore.WaitFinalityVoteResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var resp consensuscore.WaitFinalityVoteResponse
	err := withDeadline(ctx, c.conn, func() error {
		if err := writeRequest(c.conn, WaitFinalityVote, req); err != nil {
			return err
		}
		return readResponse(c.conn, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// PushPeerAddr issues a PUSH_PEER_ADDR_UPDATE RPC. There is no
// application-level response payload beyond acknowledgement.
func (c *Conn) PushPeerAddr(ctx context.Context, push *consensuscore.PushPeerAddrUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var resp emptyResponse
	return withDeadline(ctx, c.conn, func() error {
		if err := writeRequest(c.conn, PushPeerAddr, push); err != nil {
			return err
		}
		return readResponse(c.conn, &resp)
	})
}

// GetPeerAddr issues a GET_PEER_ADDR_UPDATE RPC.
func (c *Conn) GetPeerAddr(ctx context.Context, req *consensuscore.GetPeerAddrRequest) (*consensuscore.GetPeerAddrResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var resp consensuscore.GetPeerAddrResponse
	err := withDeadline(ctx, c.conn, func() error {
		if err := writeRequest(c.conn, GetPeerAddr, req); err != nil {
			return err
		}
		return readResponse(c.conn, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetBlock issues a GET_BLOCK RPC.
func (c *Conn) GetBlock(ctx context.Context, req *consensuscore.GetBlockRequest) (*consensuscore.GetBlockResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var resp consensuscore.GetBlockResponse
	err := withDeadline(ctx, c.conn, func() error {
		if err := writeRequest(c.conn, GetBlock, req); err != nil {
			return err
		}
		return readResponse(c.conn, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetConsensusParams issues a GET_CONSENSUS_PARAMS RPC.
func (c *Conn) GetConsensusParams(ctx context.Context, req *consensuscore.GetConsensusParamsRequest) (*consensuscore.GetConsensusParamsResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var resp consensuscore.GetConsensusParamsResponse
	err := withDeadline(ctx, c.conn, func() error {
		if err := writeRequest(c.conn, GetConsensusParams, req); err != nil {
			return err
		}
		return readResponse(c.conn, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetConsensusVersion issues a GET_CONSENSUS_VERSION RPC.
func (c *Conn) GetConsensusVersion(ctx context.Context, req *consensuscore.GetConsensusVersionRequest) (*consensuscore.GetConsensusVersionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var resp consensuscore.GetConsensusVersionResponse
	err := withDeadline(ctx, c.conn, func() error {
		if err := writeRequest(c.conn, GetConsensusVersion, req); err != nil {
			return err
		}
		return readResponse(c.conn, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
