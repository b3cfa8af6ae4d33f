// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/luxfi/bfte/codec"
)

// Hash is a BLAKE3-256 digest.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero hash, used as a sentinel for
// "no previous block" / "no previous mid-block" references.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Encode writes the hash as a fixed 32-byte field.
func (h Hash) Encode(w *codec.Writer) error {
	return w.WriteRaw(h[:])
}

// Decode reads a fixed 32-byte hash.
func (h *Hash) Decode(r *codec.Reader) error {
	b, err := r.ReadRaw(len(h))
	if err != nil {
		return err
	}
	copy(h[:], b)
	return nil
}

// domainPrefix is prepended to every domain-separated sign-hash:
// BLAKE3("bfte" || TAG(4) || msg_hash(32)).
const domainPrefix = "bfte"

// Tag is a 4-byte ASCII type-unique constant used to domain-separate the
// hash that gets Ed25519-signed for a given wire type.
type Tag [4]byte

var (
	// TagBlockHeader domain-separates the BlockHeader sign-hash.
	TagBlockHeader = Tag{'b', 'l', 'h', 'd'}
	// TagConsensusParams is reserved for ConsensusParams per the wire
	// protocol's domain-tag table. ConsensusParams only implements
	// Hashable, not Signable: its content-addressing hash (used as the
	// params-table key and as FederationID) is the plain untagged hash,
	// matching BlockHeader's own plain .Hash(); this tag is not mixed into
	// that computation and is kept only so the tag namespace stays
	// reserved if ConsensusParams is ever directly signed.
	TagConsensusParams = Tag{'c', 'o', 'p', 'a'}
	// TagFinalityVoteUpdate domain-separates the FinalityVoteUpdate sign-hash.
	TagFinalityVoteUpdate = Tag{'f', 'u', 'r', 'u'}
	// TagAddressUpdate domain-separates the AddressUpdate sign-hash.
	TagAddressUpdate = Tag{'a', 'd', 'u', 'p'}
)

// Hashable is any type with a deterministic binary encoding that can be
// content-hashed. This is the plain, non-domain-separated hash, used for
// content addressing (block hashes, params hashes, the round hash behind
// leader election). Types that are also signed implement Signable, whose
// signatures cover a domain-separated hash instead.
type Hashable interface {
	codec.Encoder
}

// HashOf returns the plain BLAKE3-256 hash of v's canonical encoding.
func HashOf(v Hashable) (Hash, error) {
	b, err := codec.Marshal(v)
	if err != nil {
		return Hash{}, err
	}
	return HashBytes(b), nil
}

// HashBytes returns the plain BLAKE3-256 hash of b.
func HashBytes(b []byte) Hash {
	return Hash(blake3.Sum256(b))
}

// Signable is any Hashable type that is actually Ed25519-signed and
// therefore needs a domain-separated sign-hash rather than a plain one.
type Signable interface {
	Hashable
	// SignTag returns this type's 4-byte domain-separation tag.
	SignTag() Tag
}

// SignHashOf returns the domain-separated sign-hash of v:
// BLAKE3("bfte" || v.SignTag() || BLAKE3(encode(v))).
func SignHashOf(v Signable) (Hash, error) {
	inner, err := HashOf(v)
	if err != nil {
		return Hash{}, err
	}
	return DomainHash(v.SignTag(), inner), nil
}

// DomainHash combines a tag and an inner hash into the domain-separated
// sign-hash actually fed to Ed25519.
func DomainHash(tag Tag, inner Hash) Hash {
	buf := make([]byte, 0, len(domainPrefix)+len(tag)+len(inner))
	buf = append(buf, domainPrefix...)
	buf = append(buf, tag[:]...)
	buf = append(buf, inner[:]...)
	return HashBytes(buf)
}
