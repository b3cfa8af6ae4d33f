// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config defines the node's on-disk and command-line configuration.
package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/crypto"
)

// rpcRetryCapDefault is RetryCapOrDefault's fallback. It equals the fixed
// 60s ceiling of the rpc pool's redial backoff and the driver's per-peer
// retry backoff; neither backoff reads this value.
const rpcRetryCapDefault = 60 * time.Second

// NodeConfig holds everything needed to start a node: where it keeps its
// state, how peers reach it, who it is, and the timing knobs for the RPC
// and gossip loops.
type NodeConfig struct {
	DataDir    string `long:"data-dir" description:"directory holding the node's consensus store" required:"true"`
	ListenAddr string `long:"listen-addr" description:"address this node's RPC server listens on" required:"true"`

	PeerSeckeyHex string `long:"peer-seckey-hex" description:"hex-encoded Ed25519 peer seckey (mutually exclusive with --peer-mnemonic)"`
	PeerMnemonic  string `long:"peer-mnemonic" description:"BIP-39 mnemonic the peer seckey is derived from (mutually exclusive with --peer-seckey-hex)"`

	RPCDialTimeout time.Duration `long:"rpc-dial-timeout" description:"per-attempt RPC dial timeout" default:"5s"`
	RPCRetryCap    time.Duration `long:"rpc-retry-cap" description:"how long --join keeps trying to join through the invite (the RPC retry backoff ceiling is fixed at 60s)" default:"60s"`

	GossipPushInterval time.Duration `long:"gossip-push-interval" description:"interval between unsolicited address-update pushes" default:"30s"`
	GossipPullInterval time.Duration `long:"gossip-pull-interval" description:"interval between address-update pulls from a random peer" default:"30s"`

	BootstrapPeers []string `long:"bootstrap-peer" description:"address of a peer to bootstrap gossip from (may be repeated; accepted but not read by bfted)"`

	Join   bool   `long:"join" description:"join the federation named by --invite instead of initializing a new one"`
	Invite string `long:"invite" description:"invite token used together with --join"`

	GenesisPeers []string `long:"genesis-peer" description:"hex-encoded Ed25519 pubkey of a genesis federation member (may be repeated; ignored with --join)"`

	MetricsAddr string `long:"metrics-addr" description:"address the Prometheus /metrics endpoint listens on" default:":9090"`
	Dev         bool   `long:"dev" description:"use human-readable console logging instead of structured JSON"`
}

// Load parses args (typically os.Args[1:]) into a NodeConfig and validates
// it.
func Load(args []string) (*NodeConfig, error) {
	var cfg NodeConfig
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants struct tags alone can't express: mutually
// exclusive peer identity sources, minimum timeouts, and the --join/--invite
// pairing.
func (c *NodeConfig) Validate() error {
	if c.DataDir == "" {
		return ErrMissingDataDir
	}
	if c.ListenAddr == "" {
		return ErrMissingListenAddr
	}

	haveSeckey := c.PeerSeckeyHex != ""
	haveMnemonic := c.PeerMnemonic != ""
	switch {
	case haveSeckey && haveMnemonic:
		return ErrBothPeerIdentity
	case !haveSeckey && !haveMnemonic:
		return ErrMissingPeerIdentity
	}
	if _, err := c.PeerSeckey(); err != nil {
		return err
	}

	if c.RPCDialTimeout < time.Millisecond {
		return ErrRPCDialTimeoutLow
	}
	if c.RPCRetryCap < c.RPCDialTimeout {
		return ErrRPCRetryCapLow
	}
	if c.GossipPushInterval < time.Second || c.GossipPullInterval < time.Second {
		return ErrGossipIntervalLow
	}

	if c.Join && c.Invite == "" {
		return ErrJoinNeedsInvite
	}
	if !c.Join && c.Invite != "" {
		return ErrInviteWithoutJoin
	}
	if !c.Join && len(c.GenesisPeers) == 0 {
		return ErrMissingGenesisPeers
	}
	if _, err := c.GenesisPeerSet(); err != nil {
		return err
	}
	return nil
}

// GenesisPeerSet decodes GenesisPeers into a PeerSet, for the non-join
// initialization path.
func (c *NodeConfig) GenesisPeerSet() (consensuscore.PeerSet, error) {
	peers := make([]consensuscore.PeerPubkey, 0, len(c.GenesisPeers))
	for _, s := range c.GenesisPeers {
		b, err := hex.DecodeString(s)
		if err != nil || len(b) != len(consensuscore.PeerPubkey{}) {
			return consensuscore.PeerSet{}, ErrInvalidGenesisPeer
		}
		var pk consensuscore.PeerPubkey
		copy(pk[:], b)
		peers = append(peers, pk)
	}
	return consensuscore.NewPeerSet(peers), nil
}

// PeerSeckey resolves the configured peer identity, from whichever of
// PeerSeckeyHex or PeerMnemonic was set, into a usable seckey.
func (c *NodeConfig) PeerSeckey() (crypto.PeerSeckey, error) {
	if c.PeerSeckeyHex != "" {
		b, err := hex.DecodeString(c.PeerSeckeyHex)
		if err != nil || len(b) != len(crypto.PeerSeckey{}) {
			return crypto.PeerSeckey{}, ErrInvalidPeerSeckey
		}
		var sk crypto.PeerSeckey
		copy(sk[:], b)
		return sk, nil
	}

	root, err := crypto.RootSecretFromMnemonic(c.PeerMnemonic)
	if err != nil {
		return crypto.PeerSeckey{}, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	return root.PeerSecret(), nil
}

// RetryCapOrDefault returns RPCRetryCap, falling back to the 60s default
// ceiling when unset.
func (c *NodeConfig) RetryCapOrDefault() time.Duration {
	if c.RPCRetryCap <= 0 {
		return rpcRetryCapDefault
	}
	return c.RPCRetryCap
}
