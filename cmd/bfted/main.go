// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command bfted runs a single federation node: it brings a Machine up
// from cold start (fresh genesis, reattach, or invite-based join), then
// drives consensus, gossip, and the RPC server until terminated.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/bfte/boot"
	"github.com/luxfi/bfte/config"
	"github.com/luxfi/bfte/consensus"
	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/driver"
	"github.com/luxfi/bfte/gossip"
	"github.com/luxfi/bfte/invite"
	"github.com/luxfi/bfte/log"
	"github.com/luxfi/bfte/metrics"
	"github.com/luxfi/bfte/rpc"
	"github.com/luxfi/bfte/store/memdb"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Dev)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	self, err := cfg.PeerSeckey()
	if err != nil {
		return fmt.Errorf("resolve peer identity: %w", err)
	}
	pub := self.Pubkey()

	registry := prometheus.NewRegistry()
	metric, err := metrics.NewNodeMetrics(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	engine := memdb.New()
	// A durable on-disk engine is future work; memdb is this build's
	// only store.Engine, so DataDir is accepted but unused for now.
	_ = cfg.DataDir

	machine, book, err := bootstrap(cfg, engine, pub, logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	pool := rpc.NewPool(tcpDialer(cfg.RPCDialTimeout))

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	handler := driver.NewHandler(machine, pub, self, book, logger)
	server := rpc.NewServer(ln, handler, logger)

	gossiper := gossip.New(book, rpc.NewGossipDialer(pool), pub, gossip.Config{
		PushInterval: cfg.GossipPushInterval,
		PullInterval: cfg.GossipPullInterval,
	}, logger, metric)

	d := driver.New(machine, pub, self, pool, book, gossiper, nil, metric, logger)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return server.Serve(ctx) })
	eg.Go(func() error { return gossiper.Run(ctx) })
	eg.Go(func() error { return d.Run(ctx) })
	eg.Go(func() error { return serveMetrics(ctx, cfg.MetricsAddr, registry) })

	logger.Info("node started", zap.Stringer("peer", pub), zap.String("listen", cfg.ListenAddr))
	if err := eg.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// bootstrap brings the Machine up according to the configured mode:
// Join when --join/--invite were given, Init/Open over a genesis peer
// set otherwise.
func bootstrap(cfg *config.NodeConfig, engine *memdb.DB, pub consensuscore.PeerPubkey, logger log.Logger) (*consensus.Machine, *gossip.Book, error) {
	if cfg.Join {
		code, err := invite.Parse(cfg.Invite)
		if err != nil {
			return nil, nil, fmt.Errorf("parse invite: %w", err)
		}
		pool := rpc.NewPool(tcpDialer(cfg.RPCDialTimeout))
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RetryCapOrDefault())
		defer cancel()
		m, book, err := boot.Join(ctx, engine, pub, pool, code, logger)
		if err != nil {
			return nil, nil, err
		}
		return m, book, nil
	}

	peers, err := cfg.GenesisPeerSet()
	if err != nil {
		return nil, nil, err
	}
	genesis := &consensuscore.ConsensusParams{
		Version: consensuscore.NewConsensusVersion(0, 0),
		Peers:   peers,
	}

	m, err := boot.Init(engine, pub, genesis)
	if err == boot.ErrAlreadyInitialized {
		m, err = boot.Open(engine, pub)
	}
	if err != nil {
		return nil, nil, err
	}
	return m, gossip.NewBook(m.Store()), nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// tcpDialer returns an rpc.Dial that opens a plain TCP connection with
// the given per-attempt timeout, matching rpc.Pool's dial signature.
func tcpDialer(timeout time.Duration) rpc.Dial {
	d := &net.Dialer{Timeout: timeout}
	return func(ctx context.Context, addr string) (net.Conn, error) {
		return d.DialContext(ctx, "tcp", addr)
	}
}

func newLogger(dev bool) (log.Logger, error) {
	if dev {
		return log.NewDevelopment()
	}
	return log.New(zapcore.InfoLevel)
}
