// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensuscore

import (
	"github.com/luxfi/bfte/codec"
	"github.com/luxfi/bfte/crypto"
)

// ConsensusParamsHash content-addresses a ConsensusParams value; it is
// embedded in every BlockHeader produced under those params and used as
// the params table's key.
type ConsensusParamsHash = crypto.Hash

// ConsensusParamsLen is the byte length of a ConsensusParams' canonical
// encoding, committed alongside its hash so payloads can be transferred
// and verified incrementally.
type ConsensusParamsLen uint32

// Encode writes a fixed 4-byte length.
func (l ConsensusParamsLen) Encode(w *codec.Writer) error {
	return w.WriteU32(uint32(l))
}

// Decode reads a fixed 4-byte length.
func (l *ConsensusParamsLen) Decode(r *codec.Reader) error {
	v, err := r.ReadU32()
	if err != nil {
		return err
	}
	*l = ConsensusParamsLen(v)
	return nil
}

// MidBlockRef commits to a (round, hash) pair of some historical notarized
// block, used to let a joining peer trustlessly rewind the chain in
// O(log N) instead of replaying it from genesis.
type MidBlockRef struct {
	Round BlockRound
	Hash  BlockHash
}

// ConsensusParams is the full set of rules and membership in effect
// starting at AppliedRound: which peers vote, under which protocol
// version, and (optionally) a commitment to a historical block helping new
// peers bootstrap trust.
type ConsensusParams struct {
	Version      ConsensusVersion
	AppliedRound BlockRound
	PrevMidBlock *MidBlockRef
	Peers        PeerSet
}

// NumPeers returns the size of this params' peer set.
func (p *ConsensusParams) NumPeers() NumPeers {
	return p.Peers.NumPeers()
}

// LeaderIdx returns the leader for round under this params' peer set.
func (p *ConsensusParams) LeaderIdx(round BlockRound) PeerIdx {
	return round.LeaderIdx(p.NumPeers())
}

// Hash returns the plain content-addressing hash of p's canonical
// encoding.
func (p *ConsensusParams) Hash() ConsensusParamsHash {
	h, err := crypto.HashOf(p)
	if err != nil {
		panic(err)
	}
	return h
}

// Len returns the byte length of p's canonical encoding.
func (p *ConsensusParams) Len() ConsensusParamsLen {
	b, err := codec.Marshal(p)
	if err != nil {
		panic(err)
	}
	return ConsensusParamsLen(len(b))
}

// HashAndLen computes Hash and Len together from a single encoding pass.
func (p *ConsensusParams) HashAndLen() (ConsensusParamsHash, ConsensusParamsLen) {
	b, err := codec.Marshal(p)
	if err != nil {
		panic(err)
	}
	return crypto.HashBytes(b), ConsensusParamsLen(len(b))
}

// FindPeerIdx returns the index of peerPubkey within this params' peer
// set, if present.
func (p *ConsensusParams) FindPeerIdx(peerPubkey PeerPubkey) (PeerIdx, bool) {
	for i, pk := range p.Peers.AsSlice() {
		if pk == peerPubkey {
			return PeerIdx(i), true
		}
	}
	return 0, false
}

// IterPeers returns every (index, pubkey) pair in this params' peer set.
func (p *ConsensusParams) IterPeers() []PeerIndexed {
	peers := p.Peers.AsSlice()
	out := make([]PeerIndexed, len(peers))
	for i, pk := range peers {
		out[i] = PeerIndexed{Idx: PeerIdx(i), Pubkey: pk}
	}
	return out
}

// PeerIndexed pairs a peer's index with its pubkey.
type PeerIndexed struct {
	Idx    PeerIdx
	Pubkey PeerPubkey
}

// Encode writes the params in their canonical encoding: version,
// applied_round, an optional mid-block reference, then the peer set.
func (p *ConsensusParams) Encode(w *codec.Writer) error {
	if err := p.Version.Encode(w); err != nil {
		return err
	}
	if err := p.AppliedRound.Encode(w); err != nil {
		return err
	}
	if err := w.WriteBool(p.PrevMidBlock != nil); err != nil {
		return err
	}
	if p.PrevMidBlock != nil {
		if err := p.PrevMidBlock.Round.Encode(w); err != nil {
			return err
		}
		if err := p.PrevMidBlock.Hash.Encode(w); err != nil {
			return err
		}
	}
	return p.Peers.Encode(w)
}

// Decode reads params written by Encode.
func (p *ConsensusParams) Decode(r *codec.Reader) error {
	if err := p.Version.Decode(r); err != nil {
		return err
	}
	if err := p.AppliedRound.Decode(r); err != nil {
		return err
	}
	hasMid, err := r.ReadBool()
	if err != nil {
		return err
	}
	if hasMid {
		var ref MidBlockRef
		if err := ref.Round.Decode(r); err != nil {
			return err
		}
		if err := ref.Hash.Decode(r); err != nil {
			return err
		}
		p.PrevMidBlock = &ref
	} else {
		p.PrevMidBlock = nil
	}
	return p.Peers.Decode(r)
}

// ToRaw encodes p into a ConsensusParamsRaw (its canonical bytes), suitable
// for the GET_CONSENSUS_PARAMS RPC and for embedding in a BlockHeader.
func (p *ConsensusParams) ToRaw() (ConsensusParamsRaw, error) {
	b, err := codec.Marshal(p)
	if err != nil {
		return ConsensusParamsRaw{}, err
	}
	return ConsensusParamsRaw{Bytes: b}, nil
}

// ConsensusParamsFromRaw decodes and validates raw params against the
// consensus version the caller expects them to carry.
func ConsensusParamsFromRaw(expectedVersion ConsensusVersion, raw ConsensusParamsRaw) (*ConsensusParams, error) {
	var p ConsensusParams
	if err := codec.Unmarshal(raw.Bytes, &p); err != nil {
		return nil, err
	}
	if p.Version != expectedVersion {
		return nil, ErrMismatchedVersion
	}
	return &p, nil
}

// ConsensusParamsRaw is a ConsensusParams' canonical encoding. It holds
// only the bytes; its hash is computed from them on demand, and there is
// no incremental verification of a partial encoding.
type ConsensusParamsRaw struct {
	Bytes []byte
}

// Hash returns the content-addressing hash of the raw bytes.
func (r ConsensusParamsRaw) Hash() ConsensusParamsHash {
	return crypto.HashBytes(r.Bytes)
}

// Len returns the byte length of the raw bytes.
func (r ConsensusParamsRaw) Len() ConsensusParamsLen {
	return ConsensusParamsLen(len(r.Bytes))
}

// Encode writes the raw params as a varint-length-prefixed byte string.
func (r ConsensusParamsRaw) Encode(w *codec.Writer) error {
	return w.WriteBytes(r.Bytes)
}

// Decode reads raw params written by Encode.
func (r *ConsensusParamsRaw) Decode(rd *codec.Reader) error {
	b, err := rd.ReadBytes()
	if err != nil {
		return err
	}
	r.Bytes = b
	return nil
}

// FederationID identifies a federation by the hash of its genesis
// ConsensusParams, content-addressed the same way any other params hash
// is.
type FederationID = crypto.Hash

// DeriveFederationID computes the federation identifier for a genesis
// ConsensusParams value.
func DeriveFederationID(genesis *ConsensusParams) FederationID {
	return genesis.Hash()
}
