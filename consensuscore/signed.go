// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensuscore

import (
	"errors"
	"fmt"

	"github.com/luxfi/bfte/codec"
	"github.com/luxfi/bfte/crypto"
)

// ErrInvalidSignature is returned when a single peer's signature does not
// verify.
var ErrInvalidSignature = errors.New("consensuscore: invalid signature")

// ErrNotEnoughSignatures is returned by Notarized.VerifySigs when fewer
// signatures are present than the params' threshold requires.
var ErrNotEnoughSignatures = errors.New("consensuscore: not enough signatures for notarization")

// Signable identifies a wire type whose sign-hash is safe to feed to
// Ed25519, because it is domain-separated by a per-type tag.
type Signable interface {
	crypto.Hashable
	SignTag() crypto.Tag
}

func signHash(v Signable) crypto.Hash {
	h, err := crypto.SignHashOf(v)
	if err != nil {
		panic(err)
	}
	return h
}

func verifySignHash(hash crypto.Hash, pubkey PeerPubkey, sig crypto.Signature) error {
	if err := pubkey.Verify(hash[:], sig); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return nil
}

// Signed pairs a Signable value with a single peer's signature over its
// sign-hash.
type Signed[T Signable] struct {
	Inner T
	Sig   crypto.Signature
}

// NewSigned wraps inner with a pre-computed signature.
func NewSigned[T Signable](inner T, sig crypto.Signature) Signed[T] {
	return Signed[T]{Inner: inner, Sig: sig}
}

// SignNew signs inner with seckey and wraps the result.
func SignNew[T Signable](inner T, seckey crypto.PeerSeckey) Signed[T] {
	return Signed[T]{Inner: inner, Sig: seckey.Sign(signHash(inner)[:])}
}

// VerifySigPeerIdx verifies the signature against peerIdx's pubkey in
// peerKeys.
func (s Signed[T]) VerifySigPeerIdx(peerIdx PeerIdx, peerKeys []PeerPubkey) error {
	if peerIdx.AsUsize() >= len(peerKeys) {
		return fmt.Errorf("%w: peer index %d out of range", ErrInvalidSignature, peerIdx)
	}
	return s.VerifySigPeerPubkey(peerKeys[peerIdx.AsUsize()])
}

// VerifySigPeerPubkey verifies the signature against the given pubkey.
func (s Signed[T]) VerifySigPeerPubkey(peerPubkey PeerPubkey) error {
	return verifySignHash(signHash(s.Inner), peerPubkey, s.Sig)
}

// Encode writes the inner value followed by its fixed 64-byte signature.
func (s Signed[T]) Encode(w *codec.Writer) error {
	if err := s.Inner.Encode(w); err != nil {
		return err
	}
	return s.Sig.Encode(w)
}

// Decode reads a Signed[T] written by Encode. newInner must return a
// fresh, zero-valued T to decode into (T is often a pointer type whose
// Decode method requires a non-nil receiver).
func DecodeSigned[T Signable](r *codec.Reader, newInner func() T) (Signed[T], error) {
	inner := newInner()
	if dec, ok := any(inner).(codec.Decoder); ok {
		if err := dec.Decode(r); err != nil {
			return Signed[T]{}, err
		}
	}
	var sig crypto.Signature
	if err := sig.Decode(r); err != nil {
		return Signed[T]{}, err
	}
	return Signed[T]{Inner: inner, Sig: sig}, nil
}

// Notarized pairs a Signable value with the set of per-peer signatures
// that notarize it.
type Notarized[T Signable] struct {
	Inner T
	Sigs  map[PeerIdx]crypto.Signature
}

// NewNotarized builds a Notarized value from a signature set.
func NewNotarized[T Signable](inner T, sigs map[PeerIdx]crypto.Signature) Notarized[T] {
	return Notarized[T]{Inner: inner, Sigs: sigs}
}

// VerifySigs checks that at least params' threshold signatures are present
// and that every one of them verifies against its claimed peer.
func (n Notarized[T]) VerifySigs(params *ConsensusParams) error {
	if len(n.Sigs) < params.NumPeers().Threshold() {
		return ErrNotEnoughSignatures
	}
	hash := signHash(n.Inner)
	peers := params.Peers.AsSlice()
	for idx, sig := range n.Sigs {
		if idx.AsUsize() >= len(peers) {
			return fmt.Errorf("%w: peer index %d out of range", ErrInvalidSignature, idx)
		}
		if err := verifySignHash(hash, peers[idx.AsUsize()], sig); err != nil {
			return fmt.Errorf("peer %d: %w", idx, err)
		}
	}
	return nil
}

// Encode writes the inner value followed by a varint-counted map of
// (peer index, signature) pairs in ascending peer-index order.
func (n Notarized[T]) Encode(w *codec.Writer) error {
	if err := n.Inner.Encode(w); err != nil {
		return err
	}
	idxs := make([]PeerIdx, 0, len(n.Sigs))
	for idx := range n.Sigs {
		idxs = append(idxs, idx)
	}
	sortPeerIdxs(idxs)
	if err := w.WriteVarUint(uint64(len(idxs))); err != nil {
		return err
	}
	for _, idx := range idxs {
		if err := idx.Encode(w); err != nil {
			return err
		}
		if err := n.Sigs[idx].Encode(w); err != nil {
			return err
		}
	}
	return nil
}

// DecodeNotarized reads a Notarized[T] written by Encode.
func DecodeNotarized[T Signable](r *codec.Reader, newInner func() T) (Notarized[T], error) {
	inner := newInner()
	if dec, ok := any(inner).(codec.Decoder); ok {
		if err := dec.Decode(r); err != nil {
			return Notarized[T]{}, err
		}
	}
	count, err := r.ReadVarUint()
	if err != nil {
		return Notarized[T]{}, err
	}
	sigs := make(map[PeerIdx]crypto.Signature, count)
	for i := uint64(0); i < count; i++ {
		var idx PeerIdx
		if err := idx.Decode(r); err != nil {
			return Notarized[T]{}, err
		}
		var sig crypto.Signature
		if err := sig.Decode(r); err != nil {
			return Notarized[T]{}, err
		}
		sigs[idx] = sig
	}
	return Notarized[T]{Inner: inner, Sigs: sigs}, nil
}

func sortPeerIdxs(idxs []PeerIdx) {
	for i := 1; i < len(idxs); i++ {
		for j := i; j > 0 && idxs[j-1] > idxs[j]; j-- {
			idxs[j-1], idxs[j] = idxs[j], idxs[j-1]
		}
	}
}
