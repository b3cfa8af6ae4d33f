// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensuscore

import (
	"github.com/luxfi/bfte/codec"
	"github.com/luxfi/bfte/crypto"
)

// AddressUpdate is a peer's self-published, signed claim of its own
// network address. The store keeps only the update with the greatest
// Timestamp per peer; updates with a non-increasing timestamp are
// discarded by the caller before this type is ever involved.
type AddressUpdate struct {
	Timestamp uint64
	Peer      PeerPubkey
	Addr      string
}

// NewAddressUpdate wraps a (timestamp, peer, addr) triple.
func NewAddressUpdate(timestamp uint64, peer PeerPubkey, addr string) AddressUpdate {
	return AddressUpdate{Timestamp: timestamp, Peer: peer, Addr: addr}
}

// Encode writes the update.
func (u *AddressUpdate) Encode(w *codec.Writer) error {
	if err := w.WriteU64(u.Timestamp); err != nil {
		return err
	}
	if err := w.WriteRaw(u.Peer[:]); err != nil {
		return err
	}
	return w.WriteBytes([]byte(u.Addr))
}

// Decode reads an update written by Encode.
func (u *AddressUpdate) Decode(r *codec.Reader) error {
	ts, err := r.ReadU64()
	if err != nil {
		return err
	}
	u.Timestamp = ts

	raw, err := r.ReadRaw(len(u.Peer))
	if err != nil {
		return err
	}
	copy(u.Peer[:], raw)

	addr, err := r.ReadBytes()
	if err != nil {
		return err
	}
	u.Addr = string(addr)
	return nil
}

// SignTag identifies AddressUpdate as Signable under the "adup" tag.
func (u *AddressUpdate) SignTag() crypto.Tag {
	return crypto.TagAddressUpdate
}
