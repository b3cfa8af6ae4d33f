// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensuscore

import (
	"github.com/luxfi/bfte/codec"
	"github.com/luxfi/bfte/crypto"
)

// BlockSeq is a non-dummy block's sequence number, incremented once per
// non-dummy block (dummy blocks keep seq at zero).
type BlockSeq uint64

// Next returns seq+1.
func (s BlockSeq) Next() BlockSeq {
	return s + 1
}

// Encode writes a fixed 8-byte sequence number.
func (s BlockSeq) Encode(w *codec.Writer) error {
	return w.WriteU64(uint64(s))
}

// Decode reads a fixed 8-byte sequence number.
func (s *BlockSeq) Decode(r *codec.Reader) error {
	v, err := r.ReadU64()
	if err != nil {
		return err
	}
	*s = BlockSeq(v)
	return nil
}

// BlockRound is the round a block was (or would be) produced in.
type BlockRound uint64

// Next returns round+1.
func (r BlockRound) Next() BlockRound {
	return r + 1
}

// Encode writes a fixed 8-byte round number.
func (r BlockRound) Encode(w *codec.Writer) error {
	return w.WriteU64(uint64(r))
}

// Decode reads a fixed 8-byte round number.
func (r *BlockRound) Decode(rd *codec.Reader) error {
	v, err := rd.ReadU64()
	if err != nil {
		return err
	}
	*r = BlockRound(v)
	return nil
}

// Hash returns the plain (non-domain-separated) BLAKE3 hash of the round's
// fixed-width encoding, the value leader election reduces modulo the peer
// count.
func (r BlockRound) Hash() (crypto.Hash, error) {
	return crypto.HashOf(r)
}

// LeaderIdx deterministically selects the round's leader out of n peers:
// treat the round's plain hash as a big-endian integer and reduce modulo n.
// Every byte of the hash can change the remainder, so the full 32-byte
// value is reduced, one byte at a time.
func (r BlockRound) LeaderIdx(n NumPeers) PeerIdx {
	h, err := r.Hash()
	if err != nil {
		// Encoding a fixed-width uint64 cannot fail.
		panic(err)
	}
	return PeerIdx(reduceModByte(h[:], uint8(n)))
}

// reduceModByte treats be as a big-endian unsigned integer and returns
// be mod m, for m in (0, 256).
func reduceModByte(be []byte, m uint8) uint8 {
	if m == 0 {
		return 0
	}
	var rem uint32
	for _, b := range be {
		rem = (rem*256 + uint32(b)) % uint32(m)
	}
	return uint8(rem)
}

// BlockHash commits to a BlockHeader.
type BlockHash = crypto.Hash

// BlockPayloadLen is the length, in bytes, of a block's payload.
type BlockPayloadLen uint32

// Encode writes a fixed 4-byte length.
func (l BlockPayloadLen) Encode(w *codec.Writer) error {
	return w.WriteU32(uint32(l))
}

// Decode reads a fixed 4-byte length.
func (l *BlockPayloadLen) Decode(r *codec.Reader) error {
	v, err := r.ReadU32()
	if err != nil {
		return err
	}
	*l = BlockPayloadLen(v)
	return nil
}

// BlockPayloadHash commits to a block's payload bytes.
type BlockPayloadHash = crypto.Hash

// BlockPayloadRaw is a block's raw opaque payload bytes. Its hash and
// length are computed over the whole payload; there is no incremental
// verification of a partially received payload.
type BlockPayloadRaw struct {
	Bytes []byte
}

// Hash returns the payload's committed hash.
func (p BlockPayloadRaw) Hash() BlockPayloadHash {
	return crypto.HashBytes(p.Bytes)
}

// Len returns the payload's committed length.
func (p BlockPayloadRaw) Len() BlockPayloadLen {
	return BlockPayloadLen(len(p.Bytes))
}

// Encode writes the payload as a varint-length-prefixed byte string.
func (p BlockPayloadRaw) Encode(w *codec.Writer) error {
	return w.WriteBytes(p.Bytes)
}

// Decode reads a payload written by Encode.
func (p *BlockPayloadRaw) Decode(r *codec.Reader) error {
	b, err := r.ReadBytes()
	if err != nil {
		return err
	}
	p.Bytes = b
	return nil
}

// BlockHeaderEncodedLen is the exact wire length of an encoded BlockHeader:
// 4 (padding) + 4 (version) + 8 (seq) + 8 (round) + 4 (payload_len) +
// 4 (consensus_params_len) + 32*3 (hashes) = 128 bytes.
const BlockHeaderEncodedLen = 128

// BlockHeader is a block's fixed-size, hashable/signable commitment to its
// content: the consensus rules it was produced under, its position, and
// the payload and params it commits to. The payload and full
// ConsensusParams travel alongside it; the header alone is enough to
// verify both once received.
type BlockHeader struct {
	ConsensusVersion    ConsensusVersion
	Seq                 BlockSeq
	Round               BlockRound
	PayloadLen          BlockPayloadLen
	ConsensusParamsLen  ConsensusParamsLen
	PrevBlockHash       BlockHash
	ConsensusParamsHash ConsensusParamsHash
	PayloadHash         BlockPayloadHash
}

// NewBlockHeader builds the header for a new non-dummy block extending
// prev (nil for the very first block).
func NewBlockHeader(prev *BlockHeader, round BlockRound, params *ConsensusParams, payload BlockPayloadRaw) BlockHeader {
	h := BlockHeader{
		ConsensusVersion:    params.Version,
		Round:               round,
		PayloadLen:          payload.Len(),
		ConsensusParamsHash: params.Hash(),
		ConsensusParamsLen:  params.Len(),
		PayloadHash:         payload.Hash(),
	}
	if prev != nil {
		h.Seq = prev.Seq.Next()
		h.PrevBlockHash = prev.Hash()
	}
	return h
}

// NewDummyBlockHeader builds the canonical dummy (empty-payload, no-op)
// header for a round whose leader failed to produce, or whose proposal
// timed out.
func NewDummyBlockHeader(round BlockRound, params *ConsensusParams) BlockHeader {
	return BlockHeader{
		ConsensusVersion:    params.Version,
		Round:               round,
		ConsensusParamsHash: params.Hash(),
		ConsensusParamsLen:  params.Len(),
	}
}

// Hash returns the header's plain (non-domain-separated) content hash,
// used for prev_block_hash linking.
func (h BlockHeader) Hash() BlockHash {
	hash, err := crypto.HashOf(&h)
	if err != nil {
		panic(err)
	}
	return hash
}

// SignTag identifies BlockHeader as a Signable type under the "blhd" tag.
func (h *BlockHeader) SignTag() crypto.Tag {
	return crypto.TagBlockHeader
}

// IsDummy reports whether h is the canonical empty placeholder for a round
// with no real proposal.
func (h BlockHeader) IsDummy() bool {
	return h.Seq == 0 && h.PrevBlockHash.IsZero() && h.PayloadHash.IsZero() && h.PayloadLen == 0
}

// DoesDirectlyExtend reports whether h is a legal direct successor of
// prevNotarized (nil if there is no notarized non-dummy block yet).
func (h BlockHeader) DoesDirectlyExtend(prevNotarized *BlockHeader) bool {
	if prevNotarized != nil {
		return prevNotarized.Seq.Next() == h.Seq &&
			prevNotarized.Round < h.Round &&
			prevNotarized.Hash() == h.PrevBlockHash
	}
	return h.Seq == 0 && h.PrevBlockHash.IsZero()
}

// VerifyContent checks that h's commitments match the payload and
// consensus params actually supplied alongside it.
func (h BlockHeader) VerifyContent(roundParamsHash ConsensusParamsHash, roundParamsLen ConsensusParamsLen, consensusVersion ConsensusVersion, payload BlockPayloadRaw) error {
	if h.IsDummy() {
		if payload.Len() != 0 {
			return ErrPayloadLenMismatch
		}
	} else {
		if payload.Hash() != h.PayloadHash {
			return ErrPayloadHashMismatch
		}
		if payload.Len() != h.PayloadLen {
			return ErrPayloadLenMismatch
		}
	}
	if h.ConsensusParamsHash != roundParamsHash {
		return ErrConsensusHashMismatch
	}
	if h.ConsensusParamsLen != roundParamsLen {
		return ErrConsensusLenMismatch
	}
	if h.ConsensusVersion != consensusVersion {
		return ErrConsensusVersionMismatch
	}
	return nil
}

// Encode writes the header in its fixed 128-byte layout: 4 bytes of
// padding, then version, seq, round, payload_len, consensus_params_len,
// prev_block_hash, consensus_params_hash, payload_hash, all fixed-width.
func (h *BlockHeader) Encode(w *codec.Writer) error {
	if err := w.WriteRaw([]byte{0, 0, 0, 0}); err != nil {
		return err
	}
	if err := h.ConsensusVersion.Encode(w); err != nil {
		return err
	}
	if err := h.Seq.Encode(w); err != nil {
		return err
	}
	if err := h.Round.Encode(w); err != nil {
		return err
	}
	if err := h.PayloadLen.Encode(w); err != nil {
		return err
	}
	if err := h.ConsensusParamsLen.Encode(w); err != nil {
		return err
	}
	if err := h.PrevBlockHash.Encode(w); err != nil {
		return err
	}
	if err := h.ConsensusParamsHash.Encode(w); err != nil {
		return err
	}
	return h.PayloadHash.Encode(w)
}

// Decode reads a header written by Encode.
func (h *BlockHeader) Decode(r *codec.Reader) error {
	if _, err := r.ReadRaw(4); err != nil {
		return err
	}
	if err := h.ConsensusVersion.Decode(r); err != nil {
		return err
	}
	if err := h.Seq.Decode(r); err != nil {
		return err
	}
	if err := h.Round.Decode(r); err != nil {
		return err
	}
	if err := h.PayloadLen.Decode(r); err != nil {
		return err
	}
	if err := h.ConsensusParamsLen.Decode(r); err != nil {
		return err
	}
	if err := h.PrevBlockHash.Decode(r); err != nil {
		return err
	}
	if err := h.ConsensusParamsHash.Decode(r); err != nil {
		return err
	}
	return h.PayloadHash.Decode(r)
}
