// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package crypto

import (
	"fmt"

	"github.com/tyler-smith/go-bip39"
)

// MnemonicFromRootSecret renders a root DerivableSecret as a BIP-39 mnemonic
// phrase, for display to an operator during initial setup.
func MnemonicFromRootSecret(s DerivableSecret) (string, error) {
	if err := s.EnsureLevel(0); err != nil {
		return "", fmt.Errorf("crypto: mnemonic requires a root secret: %w", err)
	}
	b := s.Bytes()
	m, err := bip39.NewMnemonic(b[:])
	if err != nil {
		return "", fmt.Errorf("crypto: encode mnemonic: %w", err)
	}
	return m, nil
}

// RootSecretFromMnemonic parses a BIP-39 mnemonic phrase back into a root
// DerivableSecret, the inverse of MnemonicFromRootSecret.
func RootSecretFromMnemonic(mnemonic string) (DerivableSecret, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return DerivableSecret{}, fmt.Errorf("crypto: invalid mnemonic")
	}
	entropy, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return DerivableSecret{}, fmt.Errorf("crypto: decode mnemonic: %w", err)
	}
	if len(entropy) != 32 {
		return DerivableSecret{}, fmt.Errorf("crypto: mnemonic encodes %d bytes, want 32", len(entropy))
	}
	var b [32]byte
	copy(b[:], entropy)
	return NewRootSecret(b), nil
}
