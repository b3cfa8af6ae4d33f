// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensuscore

import (
	"github.com/luxfi/bfte/codec"
	"github.com/luxfi/bfte/crypto"
)

// FinalityVoteUpdate carries a peer's own finality-vote round: "I have
// finality-voted up through at least this round."
type FinalityVoteUpdate struct {
	Round BlockRound
}

// NewFinalityVoteUpdate wraps a round as a FinalityVoteUpdate.
func NewFinalityVoteUpdate(round BlockRound) FinalityVoteUpdate {
	return FinalityVoteUpdate{Round: round}
}

// Encode writes the wrapped round.
func (u *FinalityVoteUpdate) Encode(w *codec.Writer) error {
	return u.Round.Encode(w)
}

// Decode reads a FinalityVoteUpdate written by Encode.
func (u *FinalityVoteUpdate) Decode(r *codec.Reader) error {
	return u.Round.Decode(r)
}

// SignTag identifies FinalityVoteUpdate as Signable under the "furu" tag.
func (u *FinalityVoteUpdate) SignTag() crypto.Tag {
	return crypto.TagFinalityVoteUpdate
}

// WaitVoteRequest asks a peer to report its vote (or, if it is the round's
// leader, its proposal) for round.
type WaitVoteRequest struct {
	Round     BlockRound
	OnlyDummy bool
}

// Encode writes the request.
func (req *WaitVoteRequest) Encode(w *codec.Writer) error {
	if err := req.Round.Encode(w); err != nil {
		return err
	}
	return w.WriteBool(req.OnlyDummy)
}

// Decode reads a request written by Encode.
func (req *WaitVoteRequest) Decode(r *codec.Reader) error {
	if err := req.Round.Decode(r); err != nil {
		return err
	}
	var err error
	req.OnlyDummy, err = r.ReadBool()
	return err
}

// WaitVoteResponseKind distinguishes whether a WaitVoteResponse carries a
// fresh leader proposal or a vote on one.
type WaitVoteResponseKind uint8

const (
	// WaitVoteResponseProposal indicates the responder is the round's
	// leader and is supplying a fresh proposal.
	WaitVoteResponseProposal WaitVoteResponseKind = iota
	// WaitVoteResponseVote indicates the responder is voting on a
	// proposal (or a dummy) it received.
	WaitVoteResponseVote
)

// WaitVoteResponse is the reply to WaitVoteRequest: either a fresh
// proposal (leader) or a vote on one (follower).
type WaitVoteResponse struct {
	Kind    WaitVoteResponseKind
	Block   Signed[*BlockHeader]
	Payload BlockPayloadRaw // only set when Kind == WaitVoteResponseProposal
}

// IsProposal reports whether this response carries a fresh proposal.
func (resp WaitVoteResponse) IsProposal() bool {
	return resp.Kind == WaitVoteResponseProposal
}

// Encode writes the response.
func (resp *WaitVoteResponse) Encode(w *codec.Writer) error {
	if err := w.WriteU8(uint8(resp.Kind)); err != nil {
		return err
	}
	if err := resp.Block.Encode(w); err != nil {
		return err
	}
	if resp.Kind == WaitVoteResponseProposal {
		return resp.Payload.Encode(w)
	}
	return nil
}

// Decode reads a response written by Encode.
func (resp *WaitVoteResponse) Decode(r *codec.Reader) error {
	kind, err := r.ReadU8()
	if err != nil {
		return err
	}
	resp.Kind = WaitVoteResponseKind(kind)
	block, err := DecodeSigned[*BlockHeader](r, func() *BlockHeader { return &BlockHeader{} })
	if err != nil {
		return err
	}
	resp.Block = block
	if resp.Kind == WaitVoteResponseProposal {
		return resp.Payload.Decode(r)
	}
	return nil
}

// WaitNotarizedBlockRequest asks a peer for the first notarized non-dummy
// block at or after MinNotarizedRound, or any notarized block (possibly
// dummy) at exactly CurRound.
type WaitNotarizedBlockRequest struct {
	MinNotarizedRound BlockRound
	CurRound          BlockRound
}

// Encode writes the request.
func (req *WaitNotarizedBlockRequest) Encode(w *codec.Writer) error {
	if err := req.MinNotarizedRound.Encode(w); err != nil {
		return err
	}
	return req.CurRound.Encode(w)
}

// Decode reads a request written by Encode.
func (req *WaitNotarizedBlockRequest) Decode(r *codec.Reader) error {
	if err := req.MinNotarizedRound.Decode(r); err != nil {
		return err
	}
	return req.CurRound.Decode(r)
}

// WaitNotarizedBlockResponse carries the notarized block (and its payload)
// a WaitNotarizedBlockRequest asked for.
type WaitNotarizedBlockResponse struct {
	Block   Notarized[*BlockHeader]
	Payload BlockPayloadRaw
}

// Encode writes the response.
func (resp *WaitNotarizedBlockResponse) Encode(w *codec.Writer) error {
	if err := resp.Block.Encode(w); err != nil {
		return err
	}
	return resp.Payload.Encode(w)
}

// Decode reads a response written by Encode.
func (resp *WaitNotarizedBlockResponse) Decode(r *codec.Reader) error {
	block, err := DecodeNotarized[*BlockHeader](r, func() *BlockHeader { return &BlockHeader{} })
	if err != nil {
		return err
	}
	resp.Block = block
	return resp.Payload.Decode(r)
}

// WaitFinalityVoteRequest asks a peer to report its own finality vote once
// it strictly exceeds Round.
type WaitFinalityVoteRequest struct {
	Round BlockRound
}

// Encode writes the request.
func (req *WaitFinalityVoteRequest) Encode(w *codec.Writer) error {
	return req.Round.Encode(w)
}

// Decode reads a request written by Encode.
func (req *WaitFinalityVoteRequest) Decode(r *codec.Reader) error {
	return req.Round.Decode(r)
}

// WaitFinalityVoteResponse carries the responder's own signed finality
// vote update.
type WaitFinalityVoteResponse struct {
	Update Signed[*FinalityVoteUpdate]
}

// Encode writes the response.
func (resp *WaitFinalityVoteResponse) Encode(w *codec.Writer) error {
	return resp.Update.Encode(w)
}

// Decode reads a response written by Encode.
func (resp *WaitFinalityVoteResponse) Decode(r *codec.Reader) error {
	update, err := DecodeSigned[*FinalityVoteUpdate](r, func() *FinalityVoteUpdate { return &FinalityVoteUpdate{} })
	if err != nil {
		return err
	}
	resp.Update = update
	return nil
}

// GetPeerAddrRequest asks a peer for its most recent knowledge of
// peerPubkey's address.
type GetPeerAddrRequest struct {
	Peer PeerPubkey
}

// Encode writes the request.
func (req *GetPeerAddrRequest) Encode(w *codec.Writer) error {
	return w.WriteRaw(req.Peer[:])
}

// Decode reads a request written by Encode.
func (req *GetPeerAddrRequest) Decode(r *codec.Reader) error {
	b, err := r.ReadRaw(len(req.Peer))
	if err != nil {
		return err
	}
	copy(req.Peer[:], b)
	return nil
}

// GetPeerAddrResponse carries the responder's knowledge of the requested
// peer's address, if any.
type GetPeerAddrResponse struct {
	Found  bool
	Update Signed[*AddressUpdate]
}

// Encode writes the response.
func (resp *GetPeerAddrResponse) Encode(w *codec.Writer) error {
	if err := w.WriteBool(resp.Found); err != nil {
		return err
	}
	if resp.Found {
		return resp.Update.Encode(w)
	}
	return nil
}

// Decode reads a response written by Encode.
func (resp *GetPeerAddrResponse) Decode(r *codec.Reader) error {
	found, err := r.ReadBool()
	if err != nil {
		return err
	}
	resp.Found = found
	if !found {
		return nil
	}
	update, err := DecodeSigned[*AddressUpdate](r, func() *AddressUpdate { return &AddressUpdate{} })
	if err != nil {
		return err
	}
	resp.Update = update
	return nil
}

// PushPeerAddrUpdate is an unsolicited push of a signed address record;
// there is no response body.
type PushPeerAddrUpdate struct {
	Update Signed[*AddressUpdate]
}

// Encode writes the push.
func (p *PushPeerAddrUpdate) Encode(w *codec.Writer) error {
	return p.Update.Encode(w)
}

// Decode reads a push written by Encode.
func (p *PushPeerAddrUpdate) Decode(r *codec.Reader) error {
	update, err := DecodeSigned[*AddressUpdate](r, func() *AddressUpdate { return &AddressUpdate{} })
	if err != nil {
		return err
	}
	p.Update = update
	return nil
}

// GetBlockRequest asks a peer for the notarized block at round, if it has
// one.
type GetBlockRequest struct {
	Round BlockRound
}

// Encode writes the request.
func (req *GetBlockRequest) Encode(w *codec.Writer) error {
	return req.Round.Encode(w)
}

// Decode reads a request written by Encode.
func (req *GetBlockRequest) Decode(r *codec.Reader) error {
	return req.Round.Decode(r)
}

// GetBlockResponse carries the requested round's notarized block, if the
// responder has one.
type GetBlockResponse struct {
	Found bool
	Block Notarized[*BlockHeader]
}

// Encode writes the response.
func (resp *GetBlockResponse) Encode(w *codec.Writer) error {
	if err := w.WriteBool(resp.Found); err != nil {
		return err
	}
	if resp.Found {
		return resp.Block.Encode(w)
	}
	return nil
}

// Decode reads a response written by Encode.
func (resp *GetBlockResponse) Decode(r *codec.Reader) error {
	found, err := r.ReadBool()
	if err != nil {
		return err
	}
	resp.Found = found
	if !found {
		return nil
	}
	block, err := DecodeNotarized[*BlockHeader](r, func() *BlockHeader { return &BlockHeader{} })
	if err != nil {
		return err
	}
	resp.Block = block
	return nil
}

// GetConsensusParamsRequest asks a peer for the ConsensusParams content
// addressed by hash.
type GetConsensusParamsRequest struct {
	Hash ConsensusParamsHash
}

// Encode writes the request.
func (req *GetConsensusParamsRequest) Encode(w *codec.Writer) error {
	return req.Hash.Encode(w)
}

// Decode reads a request written by Encode.
func (req *GetConsensusParamsRequest) Decode(r *codec.Reader) error {
	return req.Hash.Decode(r)
}

// GetConsensusParamsResponse carries the requested params' canonical
// encoding, if the responder has them on file.
type GetConsensusParamsResponse struct {
	Found bool
	Raw   ConsensusParamsRaw
}

// Encode writes the response.
func (resp *GetConsensusParamsResponse) Encode(w *codec.Writer) error {
	if err := w.WriteBool(resp.Found); err != nil {
		return err
	}
	if resp.Found {
		return resp.Raw.Encode(w)
	}
	return nil
}

// Decode reads a response written by Encode.
func (resp *GetConsensusParamsResponse) Decode(r *codec.Reader) error {
	found, err := r.ReadBool()
	if err != nil {
		return err
	}
	resp.Found = found
	if !found {
		return nil
	}
	return resp.Raw.Decode(r)
}

// GetConsensusVersionRequest asks a peer which consensus protocol version
// it is currently running. It carries no fields.
type GetConsensusVersionRequest struct{}

// Encode writes the (empty) request.
func (req *GetConsensusVersionRequest) Encode(w *codec.Writer) error {
	return nil
}

// Decode reads the (empty) request.
func (req *GetConsensusVersionRequest) Decode(r *codec.Reader) error {
	return nil
}

// GetConsensusVersionResponse carries the responder's current consensus
// protocol version.
type GetConsensusVersionResponse struct {
	Version ConsensusVersion
}

// Encode writes the response.
func (resp *GetConsensusVersionResponse) Encode(w *codec.Writer) error {
	return resp.Version.Encode(w)
}

// Decode reads a response written by Encode.
func (resp *GetConsensusVersionResponse) Decode(r *codec.Reader) error {
	return resp.Version.Decode(r)
}
