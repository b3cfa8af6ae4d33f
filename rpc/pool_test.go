// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/bfte/consensuscore"
)

func TestPoolReusesConnectionForSamePeer(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := client.Read(buf); err != nil {
				return
			}
		}
	}()

	var dials int32
	pool := NewPool(func(ctx context.Context, addr string) (net.Conn, error) {
		atomic.AddInt32(&dials, 1)
		return client, nil
	})

	peer := consensuscore.PeerPubkey{1}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c1, err := pool.Get(ctx, peer, "irrelevant")
	require.NoError(t, err)
	c2, err := pool.Get(ctx, peer, "irrelevant")
	require.NoError(t, err)
	require.Same(t, c1, c2)
	require.EqualValues(t, 1, atomic.LoadInt32(&dials))
}

func TestPoolDropForcesRedial(t *testing.T) {
	var mu sync.Mutex
	conns := []net.Conn{}
	pool := NewPool(func(ctx context.Context, addr string) (net.Conn, error) {
		server, client := net.Pipe()
		mu.Lock()
		conns = append(conns, server)
		mu.Unlock()
		go func() {
			buf := make([]byte, 1)
			for {
				if _, err := server.Read(buf); err != nil {
					return
				}
			}
		}()
		return client, nil
	})

	peer := consensuscore.PeerPubkey{2}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c1, err := pool.Get(ctx, peer, "a")
	require.NoError(t, err)
	pool.Drop(peer)
	c2, err := pool.Get(ctx, peer, "a")
	require.NoError(t, err)
	require.NotSame(t, c1, c2)
}

func TestPoolDialWithBackoffRetriesThenSucceeds(t *testing.T) {
	var attempts int32
	server, client := net.Pipe()
	defer server.Close()
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := client.Read(buf); err != nil {
				return
			}
		}
	}()

	pool := NewPool(func(ctx context.Context, addr string) (net.Conn, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return nil, errors.New("dial failed")
		}
		return client, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := pool.dialWithBackoff(ctx, "addr")
	require.NoError(t, err)
	require.NotNil(t, conn)
	require.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}
