// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package appmodule

import (
	"context"

	"github.com/luxfi/bfte/consensuscore"
)

// PayloadSource is implemented by the application layer to offer the
// leader-proposal task payload bytes for the next non-dummy block. CORE
// treats the payload as opaque bytes; decoding and executing citems out
// of it is entirely the application's concern.
type PayloadSource interface {
	// Propose blocks until a payload is ready to build a block around,
	// or ctx is canceled.
	Propose(ctx context.Context) (consensuscore.BlockPayloadRaw, error)
}

// EmptyPayloadSource always proposes an empty payload immediately. It is
// the default PayloadSource for a node running bare CORE with no
// application layer wired above it.
type EmptyPayloadSource struct{}

// Propose implements PayloadSource.
func (EmptyPayloadSource) Propose(ctx context.Context) (consensuscore.BlockPayloadRaw, error) {
	return consensuscore.BlockPayloadRaw{Bytes: nil}, nil
}
