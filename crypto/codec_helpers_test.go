// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/bfte/codec"
)

func newTestWriter() *codec.Writer {
	return codec.NewWriter()
}

func newTestReader(t *testing.T, b []byte) *codec.Reader {
	t.Helper()
	r, err := codec.NewReader(b)
	require.NoError(t, err)
	return r
}
