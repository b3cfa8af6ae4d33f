// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package invite produces and parses the opaque, base32-encoded token a
// new peer uses to bootstrap into an existing federation: which
// federation, which peer to dial first (identity and address, since
// unlike a self-certifying transport address these are two separate
// values here), and (optionally) a recent block pin or the genesis
// params' hash and length so the joiner can start verifying consensus
// state immediately instead of rewinding from block zero.
package invite

import (
	"encoding/base32"
	"errors"
	"fmt"

	"github.com/luxfi/bfte/codec"
	"github.com/luxfi/bfte/consensuscore"
)

// codeVersion is bumped whenever Code's wire encoding changes
// incompatibly.
const codeVersion = 1

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ErrUnsupportedVersion is returned by Parse when the token's version
// byte doesn't match a version this build knows how to decode.
var ErrUnsupportedVersion = errors.New("invite: unsupported code version")

// Pin commits to a specific notarized block a joiner can verify against,
// instead of trusting whatever chain tip the bootstrap peer reports.
type Pin struct {
	Round consensuscore.BlockRound
	Hash  consensuscore.BlockHash
}

// InitParams lets a joiner fetch and verify the federation's genesis (or
// currently effective) params by content hash before a single block has
// been notarized.
type InitParams struct {
	Hash consensuscore.ConsensusParamsHash
	Len  consensuscore.ConsensusParamsLen
}

// Code is the full content of an invite token.
type Code struct {
	Federation consensuscore.FederationID
	Peer       consensuscore.PeerPubkey
	Address    string
	Pin        *Pin
	InitParams *InitParams
}

// Encode writes c in its canonical binary form.
func (c *Code) Encode(w *codec.Writer) error {
	if err := w.WriteU8(codeVersion); err != nil {
		return err
	}
	if err := c.Federation.Encode(w); err != nil {
		return err
	}
	if err := c.Peer.Encode(w); err != nil {
		return err
	}
	if err := w.WriteBytes([]byte(c.Address)); err != nil {
		return err
	}
	if err := w.WriteBool(c.Pin != nil); err != nil {
		return err
	}
	if c.Pin != nil {
		if err := c.Pin.Round.Encode(w); err != nil {
			return err
		}
		if err := c.Pin.Hash.Encode(w); err != nil {
			return err
		}
	}
	if err := w.WriteBool(c.InitParams != nil); err != nil {
		return err
	}
	if c.InitParams != nil {
		if err := c.InitParams.Hash.Encode(w); err != nil {
			return err
		}
		if err := c.InitParams.Len.Encode(w); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads a Code written by Encode.
func (c *Code) Decode(r *codec.Reader) error {
	version, err := r.ReadU8()
	if err != nil {
		return err
	}
	if version != codeVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if err := c.Federation.Decode(r); err != nil {
		return err
	}
	if err := c.Peer.Decode(r); err != nil {
		return err
	}
	addr, err := r.ReadBytes()
	if err != nil {
		return err
	}
	c.Address = string(addr)

	hasPin, err := r.ReadBool()
	if err != nil {
		return err
	}
	if hasPin {
		var p Pin
		if err := p.Round.Decode(r); err != nil {
			return err
		}
		if err := p.Hash.Decode(r); err != nil {
			return err
		}
		c.Pin = &p
	}

	hasInit, err := r.ReadBool()
	if err != nil {
		return err
	}
	if hasInit {
		var ip InitParams
		if err := ip.Hash.Decode(r); err != nil {
			return err
		}
		if err := ip.Len.Decode(r); err != nil {
			return err
		}
		c.InitParams = &ip
	}
	return nil
}

// String renders c as an opaque base32 token suitable for pasting into a
// chat message or URL fragment.
func (c *Code) String() string {
	b, err := codec.Marshal(c)
	if err != nil {
		panic(err)
	}
	return encoding.EncodeToString(b)
}

// Parse decodes a token produced by Code.String.
func Parse(s string) (*Code, error) {
	b, err := encoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invite: decode base32: %w", err)
	}
	var c Code
	if err := codec.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("invite: decode code: %w", err)
	}
	return &c, nil
}
