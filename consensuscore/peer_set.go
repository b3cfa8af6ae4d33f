// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensuscore

import (
	"bytes"
	"sort"

	"github.com/luxfi/bfte/codec"
)

// PeerSet is a sorted, deduplicated list of a federation's peer public
// keys. Peer order is the source of truth for PeerIdx assignment: peer i's
// index is its position in this sorted slice.
type PeerSet struct {
	peers []PeerPubkey
}

// NewPeerSet builds a PeerSet from an unsorted slice, sorting and
// deduplicating it.
func NewPeerSet(peers []PeerPubkey) PeerSet {
	var s PeerSet
	for _, p := range peers {
		s.Insert(p)
	}
	return s
}

// AsSlice returns the sorted peers.
func (s PeerSet) AsSlice() []PeerPubkey {
	return s.peers
}

// Len is the number of peers in the set.
func (s PeerSet) Len() int {
	return len(s.peers)
}

func cmpPubkey(a, b PeerPubkey) int {
	return bytes.Compare(a[:], b[:])
}

// Insert adds peerPubkey if not already present, keeping the set sorted.
// Returns true if the peer was newly added.
func (s *PeerSet) Insert(peerPubkey PeerPubkey) bool {
	i := sort.Search(len(s.peers), func(i int) bool {
		return cmpPubkey(s.peers[i], peerPubkey) >= 0
	})
	if i < len(s.peers) && s.peers[i] == peerPubkey {
		return false
	}
	s.peers = append(s.peers, PeerPubkey{})
	copy(s.peers[i+1:], s.peers[i:])
	s.peers[i] = peerPubkey
	return true
}

// Remove drops peerPubkey from the set if present. Returns true if it was
// present.
func (s *PeerSet) Remove(peerPubkey PeerPubkey) bool {
	i := sort.Search(len(s.peers), func(i int) bool {
		return cmpPubkey(s.peers[i], peerPubkey) >= 0
	})
	if i >= len(s.peers) || s.peers[i] != peerPubkey {
		return false
	}
	s.peers = append(s.peers[:i], s.peers[i+1:]...)
	return true
}

// NumPeers returns this set's size as a NumPeers.
func (s PeerSet) NumPeers() NumPeers {
	return NumPeers(len(s.peers))
}

// Encode writes the peer set as a varint count followed by each fixed
// 32-byte pubkey.
func (s PeerSet) Encode(w *codec.Writer) error {
	if err := w.WriteVarUint(uint64(len(s.peers))); err != nil {
		return err
	}
	for _, p := range s.peers {
		if err := p.Encode(w); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads a peer set written by Encode.
func (s *PeerSet) Decode(r *codec.Reader) error {
	n, err := r.ReadVarUint()
	if err != nil {
		return err
	}
	peers := make([]PeerPubkey, n)
	for i := range peers {
		if err := peers[i].Decode(r); err != nil {
			return err
		}
	}
	s.peers = peers
	return nil
}
