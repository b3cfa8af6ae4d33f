// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package boot_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/bfte/boot"
	"github.com/luxfi/bfte/consensus"
	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/crypto"
	"github.com/luxfi/bfte/driver"
	"github.com/luxfi/bfte/gossip"
	"github.com/luxfi/bfte/invite"
	"github.com/luxfi/bfte/rpc"
	"github.com/luxfi/bfte/store"
	"github.com/luxfi/bfte/store/memdb"
)

func TestInitWritesGenesisAndRejectsDoubleInit(t *testing.T) {
	sk, err := crypto.GenerateSeckey()
	require.NoError(t, err)
	genesis := &consensuscore.ConsensusParams{
		Version: consensuscore.NewConsensusVersion(0, 0),
		Peers:   consensuscore.NewPeerSet([]consensuscore.PeerPubkey{sk.Pubkey()}),
	}
	engine := memdb.New()

	m, err := boot.Init(engine, sk.Pubkey(), genesis)
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = boot.Init(engine, sk.Pubkey(), genesis)
	require.ErrorIs(t, err, boot.ErrAlreadyInitialized)
}

func TestOpenRejectsUninitializedStore(t *testing.T) {
	sk, err := crypto.GenerateSeckey()
	require.NoError(t, err)
	_, err = boot.Open(memdb.New(), sk.Pubkey())
	require.ErrorIs(t, err, boot.ErrNotInitialized)
}

func TestOpenReattachesAfterInit(t *testing.T) {
	sk, err := crypto.GenerateSeckey()
	require.NoError(t, err)
	genesis := &consensuscore.ConsensusParams{
		Version: consensuscore.NewConsensusVersion(0, 0),
		Peers:   consensuscore.NewPeerSet([]consensuscore.PeerPubkey{sk.Pubkey()}),
	}
	engine := memdb.New()
	_, err = boot.Init(engine, sk.Pubkey(), genesis)
	require.NoError(t, err)

	m, err := boot.Open(engine, sk.Pubkey())
	require.NoError(t, err)
	require.NotNil(t, m)
}

// bootstrapFixture spins up a real TCP server exposing a driver.Handler
// over a freshly-initialized federation with one peer, for Join to dial.
type bootstrapFixture struct {
	addr    string
	sk      crypto.PeerSeckey
	pub     consensuscore.PeerPubkey
	genesis *consensuscore.ConsensusParams
	machine *consensus.Machine
	stop    func()
}

func startBootstrapFixture(t *testing.T) *bootstrapFixture {
	t.Helper()
	sk, err := crypto.GenerateSeckey()
	require.NoError(t, err)
	pub := sk.Pubkey()
	genesis := &consensuscore.ConsensusParams{
		Version: consensuscore.NewConsensusVersion(0, 0),
		Peers:   consensuscore.NewPeerSet([]consensuscore.PeerPubkey{pub}),
	}

	s := store.Open(memdb.New())
	m := consensus.New(s, pub, nil)
	require.NoError(t, m.Init(genesis))

	book := gossip.NewBook(s)
	selfUpdate := consensuscore.NewAddressUpdate(1, pub, "self-reported:1234")
	signedSelf := consensuscore.SignNew[*consensuscore.AddressUpdate](&selfUpdate, sk)
	_, err = book.Record(pub, signedSelf)
	require.NoError(t, err)

	h := driver.NewHandler(m, pub, sk, book, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := rpc.NewServer(ln, h, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)

	return &bootstrapFixture{
		addr:    ln.Addr().String(),
		sk:      sk,
		pub:     pub,
		genesis: genesis,
		machine: m,
		stop:    cancel,
	}
}

func dialTCP(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

func TestJoinFetchesGenesisAndSeedsBook(t *testing.T) {
	fx := startBootstrapFixture(t)
	defer fx.stop()

	hash, length := fx.genesis.HashAndLen()
	code := &invite.Code{
		Federation: consensuscore.DeriveFederationID(fx.genesis),
		Peer:       fx.pub,
		Address:    fx.addr,
		InitParams: &invite.InitParams{Hash: hash, Len: length},
	}

	pool := rpc.NewPool(dialTCP)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	joinerSk, err := crypto.GenerateSeckey()
	require.NoError(t, err)

	m, book, err := boot.Join(ctx, memdb.New(), joinerSk.Pubkey(), pool, code, nil)
	require.NoError(t, err)
	require.NotNil(t, m)

	var round consensuscore.BlockRound
	require.NoError(t, m.Store().Read(func(tx *store.ReadTx) error {
		round, err = store.CurrentRound(tx)
		return err
	}))
	require.Equal(t, consensuscore.BlockRound(0), round)

	update, ok, err := book.Lookup(fx.pub)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "self-reported:1234", update.Inner.Addr)
}

func TestJoinRejectsWrongFederation(t *testing.T) {
	fx := startBootstrapFixture(t)
	defer fx.stop()

	hash, length := fx.genesis.HashAndLen()
	code := &invite.Code{
		Federation: consensuscore.FederationID{0xff},
		Peer:       fx.pub,
		Address:    fx.addr,
		InitParams: &invite.InitParams{Hash: hash, Len: length},
	}

	pool := rpc.NewPool(dialTCP)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	joinerSk, err := crypto.GenerateSeckey()
	require.NoError(t, err)

	_, _, err = boot.Join(ctx, memdb.New(), joinerSk.Pubkey(), pool, code, nil)
	require.ErrorIs(t, err, boot.ErrParamsMismatch)
}

func TestJoinRequiresInitParams(t *testing.T) {
	fx := startBootstrapFixture(t)
	defer fx.stop()

	code := &invite.Code{
		Federation: consensuscore.DeriveFederationID(fx.genesis),
		Peer:       fx.pub,
		Address:    fx.addr,
	}

	pool := rpc.NewPool(dialTCP)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	joinerSk, err := crypto.GenerateSeckey()
	require.NoError(t, err)

	_, _, err = boot.Join(ctx, memdb.New(), joinerSk.Pubkey(), pool, code, nil)
	require.ErrorIs(t, err, boot.ErrNoInitParams)
}

func TestJoinWithPinWritesPinnedBlock(t *testing.T) {
	fx := startBootstrapFixture(t)
	defer fx.stop()

	hdr0 := consensuscore.NewBlockHeader(nil, 0, fx.genesis, consensuscore.BlockPayloadRaw{Bytes: []byte("p")})
	proposal := &consensuscore.WaitVoteResponse{
		Kind:    consensuscore.WaitVoteResponseProposal,
		Block:   consensuscore.SignNew[*consensuscore.BlockHeader](&hdr0, fx.sk),
		Payload: consensuscore.BlockPayloadRaw{Bytes: []byte("p")},
	}
	_, err := fx.machine.ProcessVote(0, proposal)
	require.NoError(t, err)

	hash, length := fx.genesis.HashAndLen()
	code := &invite.Code{
		Federation: consensuscore.DeriveFederationID(fx.genesis),
		Peer:       fx.pub,
		Address:    fx.addr,
		InitParams: &invite.InitParams{Hash: hash, Len: length},
		Pin:        &invite.Pin{Round: 0, Hash: hdr0.Hash()},
	}

	pool := rpc.NewPool(dialTCP)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	joinerSk, err := crypto.GenerateSeckey()
	require.NoError(t, err)

	m, _, err := boot.Join(ctx, memdb.New(), joinerSk.Pubkey(), pool, code, nil)
	require.NoError(t, err)

	var pinned consensuscore.BlockHash
	var found bool
	require.NoError(t, m.Store().Read(func(tx *store.ReadTx) error {
		pinned, found, err = store.GetBlockPinned(tx, 0)
		return err
	}))
	require.True(t, found)
	require.Equal(t, hdr0.Hash(), pinned)
}

func TestJoinRejectsPinMismatch(t *testing.T) {
	fx := startBootstrapFixture(t)
	defer fx.stop()

	hdr0 := consensuscore.NewBlockHeader(nil, 0, fx.genesis, consensuscore.BlockPayloadRaw{Bytes: []byte("p")})
	proposal := &consensuscore.WaitVoteResponse{
		Kind:    consensuscore.WaitVoteResponseProposal,
		Block:   consensuscore.SignNew[*consensuscore.BlockHeader](&hdr0, fx.sk),
		Payload: consensuscore.BlockPayloadRaw{Bytes: []byte("p")},
	}
	_, err := fx.machine.ProcessVote(0, proposal)
	require.NoError(t, err)

	hash, length := fx.genesis.HashAndLen()
	code := &invite.Code{
		Federation: consensuscore.DeriveFederationID(fx.genesis),
		Peer:       fx.pub,
		Address:    fx.addr,
		InitParams: &invite.InitParams{Hash: hash, Len: length},
		Pin:        &invite.Pin{Round: 0, Hash: consensuscore.BlockHash{0xee}},
	}

	pool := rpc.NewPool(dialTCP)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	joinerSk, err := crypto.GenerateSeckey()
	require.NoError(t, err)

	_, _, err = boot.Join(ctx, memdb.New(), joinerSk.Pubkey(), pool, code, nil)
	require.ErrorIs(t, err, boot.ErrPinMismatch)
}
