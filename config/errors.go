package config

import "errors"

var (
	ErrMissingDataDir      = errors.New("config: data dir is required")
	ErrMissingListenAddr   = errors.New("config: listen address is required")
	ErrMissingPeerIdentity = errors.New("config: exactly one of peer-seckey-hex or peer-mnemonic is required")
	ErrBothPeerIdentity    = errors.New("config: peer-seckey-hex and peer-mnemonic are mutually exclusive")
	ErrInvalidPeerSeckey   = errors.New("config: peer-seckey-hex is not a valid hex-encoded Ed25519 seckey")
	ErrInvalidMnemonic     = errors.New("config: peer-mnemonic is not a valid BIP-39 mnemonic")
	ErrRPCDialTimeoutLow   = errors.New("config: rpc-dial-timeout must be >= 1ms")
	ErrRPCRetryCapLow      = errors.New("config: rpc-retry-cap must be >= rpc-dial-timeout")
	ErrGossipIntervalLow   = errors.New("config: gossip intervals must be >= 1s")
	ErrJoinNeedsInvite     = errors.New("config: --join requires --invite")
	ErrInviteWithoutJoin   = errors.New("config: --invite is only valid together with --join")
	ErrMissingGenesisPeers = errors.New("config: at least one --genesis-peer is required unless --join is set")
	ErrInvalidGenesisPeer  = errors.New("config: genesis-peer is not a valid hex-encoded Ed25519 pubkey")
)
