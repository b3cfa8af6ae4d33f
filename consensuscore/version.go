// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensuscore

import (
	"fmt"

	"github.com/luxfi/bfte/codec"
)

// ConsensusVersion identifies the ruleset a block and its params were
// produced under. Major versions never migrate automatically; minor
// versions are expected to advance as peers agree on protocol changes.
type ConsensusVersion struct {
	Major uint16
	Minor uint16
}

// NewConsensusVersion builds a version from its components.
func NewConsensusVersion(major, minor uint16) ConsensusVersion {
	return ConsensusVersion{Major: major, Minor: minor}
}

func (v ConsensusVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Encode writes the version as two fixed-width uint16 fields.
func (v ConsensusVersion) Encode(w *codec.Writer) error {
	if err := w.WriteU16(v.Major); err != nil {
		return err
	}
	return w.WriteU16(v.Minor)
}

// Decode reads a version written by Encode.
func (v *ConsensusVersion) Decode(r *codec.Reader) error {
	var err error
	if v.Major, err = r.ReadU16(); err != nil {
		return err
	}
	v.Minor, err = r.ReadU16()
	return err
}
