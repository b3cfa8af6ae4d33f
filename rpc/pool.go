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

const (
	backoffBase = 50 * time.Millisecond
	backoffCap  = 60 * time.Second
)

// Dial opens a raw connection to addr. Production callers pass
// net.Dialer.DialContext; tests substitute an in-memory pipe dialer.
type Dial func(ctx context.Context, addr string) (net.Conn, error)

// Pool holds at most one live *Conn per remote peer identity, dialing
// lazily and retrying a failed dial with jittered Fibonacci backoff
// capped at 60s.
type Pool struct {
	dial Dial

	mu    sync.Mutex
	conns map[consensuscore.PeerPubkey]*Conn
}

// NewPool builds a pool that dials through dial.
func NewPool(dial Dial) *Pool {
	return &Pool{dial: dial, conns: make(map[consensuscore.PeerPubkey]*Conn)}
}

// Get returns the pooled connection to peer at addr, dialing (with
// retry) if none is cached yet.
func (p *Pool) Get(ctx context.Context, peer consensuscore.PeerPubkey, addr string) (*Conn, error) {
	p.mu.Lock()
	if c, ok := p.conns[peer]; ok {
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	conn, err := p.dialWithBackoff(ctx, addr)
	if err != nil {
		return nil, err
	}
	c := NewConn(conn)

	p.mu.Lock()
	if existing, ok := p.conns[peer]; ok {
		p.mu.Unlock()
		c.Close()
		return existing, nil
	}
	p.conns[peer] = c
	p.mu.Unlock()
	return c, nil
}

// Drop closes and forgets the pooled connection to peer, if any. Called
// once a connection is found dead so the next Get redials.
func (p *Pool) Drop(peer consensuscore.PeerPubkey) {
	p.mu.Lock()
	c, ok := p.conns[peer]
	delete(p.conns, peer)
	p.mu.Unlock()
	if ok {
		c.Close()
	}
}

func (p *Pool) dialWithBackoff(ctx context.Context, addr string) (net.Conn, error) {
	b := newFibonacciBackOff(backoffBase, backoffCap)
	for {
		conn, err := p.dial(ctx, addr)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		timer := time.NewTimer(b.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
