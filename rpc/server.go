// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/luxfi/bfte/codec"
	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/log"
)

// ErrUnknownRPC is returned when a request frame names an RPC id this
// server does not implement.
var ErrUnknownRPC = errors.New("rpc: unknown RPC id")

// emptyResponse is the zero-length response body for RPCs (PushPeerAddr)
// that have nothing to report back beyond "received".
type emptyResponse struct{}

func (*emptyResponse) Encode(w *codec.Writer) error { return nil }
func (*emptyResponse) Decode(r *codec.Reader) error { return nil }

// Server accepts connections and dispatches framed RPCs to a Handler.
// One connection may carry many RPCs in sequence (ping-pong, one request
// outstanding at a time), matching the pool's one-connection-per-peer
// policy on the client side.
type Server struct {
	listener net.Listener
	handler  Handler
	logger   log.Logger
}

// NewServer wraps listener, dispatching every accepted connection's RPCs
// to handler.
func NewServer(listener net.Listener, handler Handler, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Server{listener: listener, handler: handler, logger: logger}
}

// Serve accepts connections until ctx is canceled or the listener errs.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	for {
		if err := s.serveOne(ctx, conn); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				s.logger.Warn("rpc: connection dispatch failed")
			}
			return
		}
	}
}

func (s *Server) serveOne(ctx context.Context, conn net.Conn) error {
	id, body, err := readRequestHeader(conn)
	if err != nil {
		return err
	}
	r, err := codec.NewReader(body)
	if err != nil {
		return err
	}

	switch id {
	case WaitVote:
		var req consensuscore.WaitVoteRequest
		if err := req.Decode(r); err != nil {
			return err
		}
		resp, err := s.handler.WaitVote(ctx, &req)
		if err != nil {
			return err
		}
		return writeResponse(conn, resp)

	case WaitNotarizedBlock:
		var req consensuscore.WaitNotarizedBlockRequest
		if err := req.Decode(r); err != nil {
			return err
		}
		resp, err := s.handler.WaitNotarizedBlock(ctx, &req)
		if err != nil {
			return err
		}
		return writeResponse(conn, resp)

	case WaitFinalityVote:
		var req consensuscore.WaitFinalityVoteRequest
		if err := req.Decode(r); err != nil {
			return err
		}
		resp, err := s.handler.WaitFinalityVote(ctx, &req)
		if err != nil {
			return err
		}
		return writeResponse(conn, resp)

	case PushPeerAddr:
		var req consensuscore.PushPeerAddrUpdate
		if err := req.Decode(r); err != nil {
			return err
		}
		if err := s.handler.PushPeerAddr(ctx, &req); err != nil {
			return err
		}
		return writeResponse(conn, &emptyResponse{})

	case GetPeerAddr:
		var req consensuscore.GetPeerAddrRequest
		if err := req.Decode(r); err != nil {
			return err
		}
		resp, err := s.handler.GetPeerAddr(ctx, &req)
		if err != nil {
			return err
		}
		return writeResponse(conn, resp)

	case GetBlock:
		var req consensuscore.GetBlockRequest
		if err := req.Decode(r); err != nil {
			return err
		}
		resp, err := s.handler.GetBlock(ctx, &req)
		if err != nil {
			return err
		}
		return writeResponse(conn, resp)

	case GetConsensusParams:
		var req consensuscore.GetConsensusParamsRequest
		if err := req.Decode(r); err != nil {
			return err
		}
		resp, err := s.handler.GetConsensusParams(ctx, &req)
		if err != nil {
			return err
		}
		return writeResponse(conn, resp)

	case GetConsensusVersion:
		var req consensuscore.GetConsensusVersionRequest
		if err := req.Decode(r); err != nil {
			return err
		}
		resp, err := s.handler.GetConsensusVersion(ctx, &req)
		if err != nil {
			return err
		}
		return writeResponse(conn, resp)

	default:
		return ErrUnknownRPC
	}
}
