// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package consensuscore defines the wire-level data model shared by every
// other consensus package: peer identities and sets, block headers and
// payloads, consensus parameters, and the Signed/Notarized envelopes used
// to carry Ed25519 signatures alongside the values they cover.
package consensuscore

import (
	"fmt"

	"github.com/luxfi/bfte/codec"
	"github.com/luxfi/bfte/crypto"
)

// PeerIdx is a peer's position within the current ConsensusParams' peer
// set, used in place of a full pubkey wherever space matters (votes,
// signature maps).
type PeerIdx uint8

// PeerIdxMin and PeerIdxMax bound the representable range.
const (
	PeerIdxMin PeerIdx = 0x00
	PeerIdxMax PeerIdx = 0xff
)

func (p PeerIdx) String() string {
	return fmt.Sprintf("%d", uint8(p))
}

// AsUsize returns p widened to an int, for slice indexing.
func (p PeerIdx) AsUsize() int {
	return int(p)
}

// Encode writes the index as a single byte.
func (p PeerIdx) Encode(w *codec.Writer) error {
	return w.WriteU8(uint8(p))
}

// Decode reads a single byte index.
func (p *PeerIdx) Decode(r *codec.Reader) error {
	v, err := r.ReadU8()
	if err != nil {
		return err
	}
	*p = PeerIdx(v)
	return nil
}

// PeerPubkey is a federation member's public signing identity.
type PeerPubkey = crypto.PeerPubkey

// PeerSeckey is a federation member's private signing identity.
type PeerSeckey = crypto.PeerSeckey
