// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensuscore

import "errors"

// Errors returned by BlockHeader.VerifyContent when a header's commitments
// do not match the payload or consensus params delivered alongside it.
var (
	ErrPayloadHashMismatch      = errors.New("consensuscore: payload hash mismatch")
	ErrPayloadLenMismatch       = errors.New("consensuscore: payload length mismatch")
	ErrConsensusHashMismatch    = errors.New("consensuscore: consensus params hash mismatch")
	ErrConsensusLenMismatch     = errors.New("consensuscore: consensus params length mismatch")
	ErrConsensusVersionMismatch = errors.New("consensuscore: consensus version mismatch")
)

// ErrUnknownVersion is returned when decoding ConsensusParams under a
// consensus version this build does not understand.
var ErrUnknownVersion = errors.New("consensuscore: unknown consensus version")

// ErrMismatchedVersion is returned when the decoded ConsensusParams'
// version does not match the version it was requested under.
var ErrMismatchedVersion = errors.New("consensuscore: mismatched consensus version")
