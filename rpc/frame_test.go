// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/bfte/codec"
	"github.com/luxfi/bfte/consensuscore"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte("hello")))

	got, err := readFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := &consensuscore.WaitFinalityVoteRequest{Round: 42}
	require.NoError(t, writeRequest(&buf, WaitFinalityVote, req))

	id, body, err := readRequestHeader(&buf)
	require.NoError(t, err)
	require.Equal(t, WaitFinalityVote, id)

	var out consensuscore.WaitFinalityVoteRequest
	r, err := codec.NewReader(body)
	require.NoError(t, err)
	require.NoError(t, out.Decode(r))
	require.Equal(t, req.Round, out.Round)
}

func TestResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	resp := &consensuscore.GetConsensusVersionResponse{Version: consensuscore.NewConsensusVersion(3, 4)}
	require.NoError(t, writeResponse(&buf, resp))

	var out consensuscore.GetConsensusVersionResponse
	require.NoError(t, readResponse(&buf, &out))
	require.Equal(t, resp.Version, out.Version)
}
