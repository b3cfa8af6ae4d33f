// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package boot

import "errors"

// ErrAlreadyInitialized is returned by Init when the store already has
// genesis params scheduled.
var ErrAlreadyInitialized = errors.New("boot: store already initialized")

// ErrNotInitialized is returned by Open when the store has no genesis
// params scheduled yet.
var ErrNotInitialized = errors.New("boot: store not initialized")

// ErrNoInitParams is returned by Join when the invite carries no
// InitParams, leaving no way to fetch and verify the federation's
// genesis params from the bootstrap peer.
var ErrNoInitParams = errors.New("boot: invite carries no init params")

// ErrParamsMismatch is returned by Join when the bootstrap peer's
// reported params don't hash-match what the invite promised, or don't
// derive the federation the invite named.
var ErrParamsMismatch = errors.New("boot: fetched params don't match invite")

// ErrPinMismatch is returned by Join when the bootstrap peer's reported
// block at the invite's pinned round doesn't match the pinned hash.
var ErrPinMismatch = errors.New("boot: fetched block doesn't match invite pin")
