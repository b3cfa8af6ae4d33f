// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
)

func newBlake3Hash() hash.Hash {
	return blake3.New()
}

func ed25519SeedToKey(seed [32]byte) [ed25519.PrivateKeySize]byte {
	priv := ed25519.NewKeyFromSeed(seed[:])
	var out [ed25519.PrivateKeySize]byte
	copy(out[:], priv)
	return out
}

// ErrWrongLevel is returned by EnsureLevel when a secret's derivation depth
// does not match what the caller expected.
var ErrWrongLevel = errors.New("crypto: derivable secret at wrong level")

// derivableSecretSalt is the fixed HKDF salt used for every derivation step.
const derivableSecretSalt = "bfte"

// Child IDs reserved for the two standard derivations off the root secret.
const (
	ChildIDPeerSecret      uint32 = 0
	ChildIDTransportSecret uint32 = 1
)

// DerivableSecret is a 32-byte secret tagged with its depth in the
// derivation tree. The root is level 0; each DerivableSecret.Derive(childID)
// call HKDF-derives a new level-(n+1) secret, so a single seed can safely
// provision many independent-looking child secrets (peer identity,
// transport identity, ...).
type DerivableSecret struct {
	bytes [32]byte
	level uint32
}

// NewRootSecret wraps 32 bytes of externally generated entropy as the level-0
// root of a derivation tree.
func NewRootSecret(b [32]byte) DerivableSecret {
	return DerivableSecret{bytes: b, level: 0}
}

// GenerateRootSecret creates a fresh random root secret.
func GenerateRootSecret() (DerivableSecret, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return DerivableSecret{}, fmt.Errorf("crypto: generate root secret: %w", err)
	}
	return NewRootSecret(b), nil
}

// Bytes returns the raw secret bytes.
func (s DerivableSecret) Bytes() [32]byte {
	return s.bytes
}

// Level returns the derivation depth; the root is 0.
func (s DerivableSecret) Level() uint32 {
	return s.level
}

// Derive deterministically derives the child secret at the given 4-byte
// child id via HKDF(BLAKE3), salt "bfte", IKM = parent bytes, info =
// big-endian child id.
func (s DerivableSecret) Derive(childID uint32) DerivableSecret {
	var info [4]byte
	binary.BigEndian.PutUint32(info[:], childID)

	reader := hkdf.New(newBlake3Hash, s.bytes[:], []byte(derivableSecretSalt), info[:])
	var out [32]byte
	if _, err := io.ReadFull(reader, out[:]); err != nil {
		// hkdf.New with a 32-byte hash and a 32-byte IKM can only fail if
		// the reader is asked for more output than HKDF can ever produce,
		// which never happens for a single 32-byte Read.
		panic(fmt.Sprintf("crypto: hkdf expand: %v", err))
	}
	return DerivableSecret{bytes: out, level: s.level + 1}
}

// PeerSecret derives this secret's designated peer (Ed25519) identity
// secret, child 0 of the root.
func (s DerivableSecret) PeerSecret() PeerSeckey {
	child := s.Derive(ChildIDPeerSecret)
	return PeerSeckey(ed25519SeedToKey(child.bytes))
}

// TransportSecret derives this secret's designated transport identity
// secret, child 1 of the root.
func (s DerivableSecret) TransportSecret() DerivableSecret {
	return s.Derive(ChildIDTransportSecret)
}

// EnsureLevel fails unless this secret sits at exactly the expected
// derivation depth. Used to stop a derived child from being used where the
// root is required (MnemonicFromRootSecret). The peer and transport secrets
// are both level 1, so the level check alone does not tell them apart.
func (s DerivableSecret) EnsureLevel(expected uint32) error {
	if s.level != expected {
		return fmt.Errorf("%w: have %d, want %d", ErrWrongLevel, s.level, expected)
	}
	return nil
}
