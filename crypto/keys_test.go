// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	sk, err := GenerateSeckey()
	require.NoError(t, err)
	pk := sk.Pubkey()

	msg := []byte("hello round")
	sig := sk.Sign(msg)
	require.NoError(t, pk.Verify(msg, sig))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	sk, err := GenerateSeckey()
	require.NoError(t, err)
	pk := sk.Pubkey()

	sig := sk.Sign([]byte("original"))
	err = pk.Verify([]byte("tampered"), sig)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	sk1, err := GenerateSeckey()
	require.NoError(t, err)
	sk2, err := GenerateSeckey()
	require.NoError(t, err)

	msg := []byte("message")
	sig := sk1.Sign(msg)
	err = sk2.Pubkey().Verify(msg, sig)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestPubkeyEncodeDecode(t *testing.T) {
	sk, err := GenerateSeckey()
	require.NoError(t, err)
	pk := sk.Pubkey()

	w := newTestWriter()
	require.NoError(t, pk.Encode(w))

	r := newTestReader(t, w.Bytes())
	var out PeerPubkey
	require.NoError(t, out.Decode(r))
	require.Equal(t, pk, out)
}
