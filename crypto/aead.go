// SPDX-License-Identifier: LGPL-3.0-or-later

package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Seal encrypts plaintext under key (as produced by DeriveSession) with
// associatedData bound into the AEAD tag. It returns a fresh 12-byte
// nonce drawn from a CSPRNG and the ciphertext (which includes the
// 16-byte Poly1305 tag).
func Seal(key, associatedData, plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: new aead: %w", err)
	}

	nonce = make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}

	ciphertext = aead.Seal(nil, nonce, plaintext, associatedData)
	return nonce, ciphertext, nil
}

// Open decrypts ciphertext produced by Seal under the same key,
// associatedData and nonce. It returns ErrAuth on tag mismatch, length
// mismatch, or associated-data mismatch — never a partial plaintext.
func Open(key, associatedData, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new aead: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrAuth
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, ErrAuth
	}
	return plaintext, nil
}
