// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/luxfi/bfte/crypto"
	"github.com/luxfi/bfte/log"
	"github.com/luxfi/bfte/metrics"
)

// Config controls the push/pull loop's pacing.
type Config struct {
	PushInterval time.Duration
	PullInterval time.Duration
}

// Gossiper drives the two background tasks that keep the address book
// current: Push periodically forwards one known peer's address to
// another, and Pull resolves addresses that a caller has marked as
// needed by asking a random known peer for them.
type Gossiper struct {
	book   *Book
	dial   Dialer
	self   crypto.PeerPubkey
	cfg    Config
	log    log.Logger
	metric *metrics.NodeMetrics

	mu     sync.Mutex
	needed map[crypto.PeerPubkey]struct{}
}

// New builds a Gossiper over book, dialing peers with dial. metric may be
// nil.
func New(book *Book, dial Dialer, self crypto.PeerPubkey, cfg Config, logger log.Logger, metric *metrics.NodeMetrics) *Gossiper {
	return &Gossiper{
		book:   book,
		dial:   dial,
		self:   self,
		cfg:    cfg,
		log:    logger,
		metric: metric,
		needed: make(map[crypto.PeerPubkey]struct{}),
	}
}

// NeedAddress marks peer as one whose address the next Pull pass should
// try to resolve. Called whenever a connection attempt to peer fails for
// lack of a known address.
func (g *Gossiper) NeedAddress(peer crypto.PeerPubkey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.needed[peer] = struct{}{}
}

func (g *Gossiper) popNeeded() (crypto.PeerPubkey, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for peer := range g.needed {
		delete(g.needed, peer)
		return peer, true
	}
	return crypto.PeerPubkey{}, false
}

// Run drives the push and pull loops until ctx is canceled.
func (g *Gossiper) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return g.pushLoop(ctx) })
	eg.Go(func() error { return g.pullLoop(ctx) })
	return eg.Wait()
}

func (g *Gossiper) pushLoop(ctx context.Context) error {
	interval := g.cfg.PushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := g.pushOnce(ctx); err != nil && g.log != nil {
				g.log.Warn("gossip push failed")
			}
		}
	}
}

func (g *Gossiper) pullLoop(ctx context.Context) error {
	interval := g.cfg.PullInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := g.pullOnce(ctx); err != nil && g.log != nil {
				g.log.Warn("gossip pull failed")
			}
		}
	}
}

// pushOnce picks two distinct known peers at random and forwards the
// first's address record to the second.
func (g *Gossiper) pushOnce(ctx context.Context) error {
	all, err := g.book.All()
	if err != nil {
		return err
	}
	peers := make([]crypto.PeerPubkey, 0, len(all))
	for peer := range all {
		peers = append(peers, peer)
	}
	if len(peers) < 2 {
		return nil
	}

	i := rand.Intn(len(peers))
	j := rand.Intn(len(peers) - 1)
	if j >= i {
		j++
	}
	source, target := peers[i], peers[j]
	targetAddr := all[target]

	client, err := g.dial(ctx, target, targetAddr.Inner.Addr)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.PushAddress(ctx, all[source]); err != nil {
		return err
	}
	if g.metric != nil {
		g.metric.GossipPushesSent.WithLabelValues("ok").Inc()
	}
	return nil
}

// pullOnce resolves one pending needed address, if any, by asking a
// random known peer for it.
func (g *Gossiper) pullOnce(ctx context.Context) error {
	want, ok := g.popNeeded()
	if !ok {
		return nil
	}

	all, err := g.book.All()
	if err != nil {
		return err
	}
	candidates := make([]crypto.PeerPubkey, 0, len(all))
	for peer := range all {
		if peer != want && peer != g.self {
			candidates = append(candidates, peer)
		}
	}
	if len(candidates) == 0 {
		g.NeedAddress(want)
		return nil
	}
	ask := candidates[rand.Intn(len(candidates))]

	client, err := g.dial(ctx, ask, all[ask].Inner.Addr)
	if err != nil {
		g.NeedAddress(want)
		return err
	}
	defer client.Close()

	update, found, err := client.GetAddress(ctx, want)
	if err != nil {
		g.NeedAddress(want)
		return err
	}
	if !found {
		g.NeedAddress(want)
		return nil
	}
	if _, err := g.book.Record(want, update); err != nil {
		return err
	}
	if g.metric != nil {
		g.metric.GossipPullsSent.WithLabelValues("ok").Inc()
	}
	return nil
}
