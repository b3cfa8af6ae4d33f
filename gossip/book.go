// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gossip implements the peer-address book: signed, timestamped
// address records, kept one-per-peer at the greatest timestamp seen, and
// the push/pull loops that circulate them.
package gossip

import (
	"errors"

	"github.com/luxfi/bfte/consensuscore"
	"github.com/luxfi/bfte/crypto"
	"github.com/luxfi/bfte/store"
)

// ErrUnknownPeer is returned by Record when the update's signed Peer field
// differs from the pubkey it is being recorded under.
var ErrUnknownPeer = errors.New("gossip: address update from an unrecognized peer")

// Book is the store-backed peer address directory: one signed
// AddressUpdate per peer pubkey, at the greatest timestamp recorded.
type Book struct {
	store *store.Store
}

// NewBook wraps s as an address book.
func NewBook(s *store.Store) *Book {
	return &Book{store: s}
}

// Record verifies update's signature against claimedPubkey, checks it is
// strictly newer than any update already on file, and persists it.
// Reports (false, nil) rather than an error for a stale update, since
// that is an expected, frequent outcome of gossip, not a fault.
func (b *Book) Record(claimedPubkey crypto.PeerPubkey, update consensuscore.Signed[*consensuscore.AddressUpdate]) (bool, error) {
	if update.Inner.Peer != claimedPubkey {
		return false, ErrUnknownPeer
	}
	if err := update.VerifySigPeerPubkey(claimedPubkey); err != nil {
		return false, err
	}

	accepted := false
	err := b.store.Write(func(tx *store.WriteTx) error {
		existing, ok, err := store.GetPeerAddress(tx, claimedPubkey)
		if err != nil {
			return err
		}
		if ok && update.Inner.Timestamp <= existing.Inner.Timestamp {
			return nil
		}
		accepted = true
		return store.PutPeerAddress(tx, claimedPubkey, update)
	})
	if err != nil {
		return false, err
	}
	return accepted, nil
}

// Lookup returns the recorded address update for peer, if any.
func (b *Book) Lookup(peer crypto.PeerPubkey) (consensuscore.Signed[*consensuscore.AddressUpdate], bool, error) {
	var (
		update consensuscore.Signed[*consensuscore.AddressUpdate]
		ok     bool
	)
	err := b.store.Read(func(tx *store.ReadTx) error {
		var readErr error
		update, ok, readErr = store.GetPeerAddress(tx, peer)
		return readErr
	})
	return update, ok, err
}

// All returns every recorded address update, keyed by peer pubkey.
func (b *Book) All() (map[crypto.PeerPubkey]consensuscore.Signed[*consensuscore.AddressUpdate], error) {
	out := map[crypto.PeerPubkey]consensuscore.Signed[*consensuscore.AddressUpdate]{}
	err := b.store.Read(func(tx *store.ReadTx) error {
		return store.IterPeerAddresses(tx, func(peer crypto.PeerPubkey, update consensuscore.Signed[*consensuscore.AddressUpdate]) bool {
			out[peer] = update
			return true
		})
	})
	return out, err
}
