// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package crypto provides the cryptographic primitives shared by every
// consensus package: Ed25519 peer identities, BLAKE3 content hashing with
// domain separation, and an HKDF-based derivable secret tree used to
// provision peer and transport keys from a single root.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/luxfi/bfte/codec"
)

// ErrBadSignature is returned by Verify when a signature does not check out.
var ErrBadSignature = errors.New("crypto: bad signature")

// PeerPubkey is a peer's Ed25519 public key and its stable on-wire identity.
type PeerPubkey [ed25519.PublicKeySize]byte

// PeerSeckey is a peer's Ed25519 private key.
type PeerSeckey [ed25519.PrivateKeySize]byte

// Signature is a raw Ed25519 signature.
type Signature [ed25519.SignatureSize]byte

// GenerateSeckey creates a fresh random peer keypair.
func GenerateSeckey() (PeerSeckey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return PeerSeckey{}, fmt.Errorf("crypto: generate key: %w", err)
	}
	var sk PeerSeckey
	copy(sk[:], priv)
	return sk, nil
}

// Pubkey derives the public key from a private key.
func (sk PeerSeckey) Pubkey() PeerPubkey {
	pub := ed25519.PrivateKey(sk[:]).Public().(ed25519.PublicKey)
	var pk PeerPubkey
	copy(pk[:], pub)
	return pk
}

// Sign produces a raw Ed25519 signature over msg. Callers wanting
// domain-separated signing should sign SignHashOf(v) instead of raw
// message bytes; see Signable.
func (sk PeerSeckey) Sign(msg []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(ed25519.PrivateKey(sk[:]), msg))
	return sig
}

// Verify checks sig over msg against pk.
func (pk PeerPubkey) Verify(msg []byte, sig Signature) error {
	if !ed25519.Verify(ed25519.PublicKey(pk[:]), msg, sig[:]) {
		return ErrBadSignature
	}
	return nil
}

func (pk PeerPubkey) String() string {
	return hex.EncodeToString(pk[:])
}

func (sig Signature) String() string {
	return hex.EncodeToString(sig[:])
}

// Encode writes the public key as a fixed 32-byte field.
func (pk PeerPubkey) Encode(w *codec.Writer) error {
	return w.WriteRaw(pk[:])
}

// Decode reads a fixed 32-byte public key.
func (pk *PeerPubkey) Decode(r *codec.Reader) error {
	b, err := r.ReadRaw(len(pk))
	if err != nil {
		return err
	}
	copy(pk[:], b)
	return nil
}

// Encode writes the signature as a fixed 64-byte field.
func (sig Signature) Encode(w *codec.Writer) error {
	return w.WriteRaw(sig[:])
}

// Decode reads a fixed 64-byte signature.
func (sig *Signature) Decode(r *codec.Reader) error {
	b, err := r.ReadRaw(len(sig))
	if err != nil {
		return err
	}
	copy(sig[:], b)
	return nil
}
