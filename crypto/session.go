// SPDX-License-Identifier: LGPL-3.0-or-later

package crypto

import (
	"crypto/ecdh"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// deriveSession performs raw X25519 ECDH and expands the shared point
// into a 32-byte key via HKDF-SHA-256. The salt is the two public keys
// concatenated, lexicographically smaller first, and info is the fixed
// protocol label,
// so both peers in a pair compute byte-identical keys regardless of who
// calls DeriveSession first.
func deriveSession(priv *ecdh.PrivateKey, selfPublic, peerPublic []byte) ([]byte, error) {
	peerKey, err := ecdh.X25519().NewPublicKey(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	shared, err := priv.ECDH(peerKey)
	if err != nil {
		return nil, fmt.Errorf("crypto.key: ecdh: %w", err)
	}
	if isAllZero(shared) {
		return nil, ErrLowOrderPoint
	}

	salt := canonicalSalt(selfPublic, peerPublic)
	h := hkdf.New(sha256.New, shared, salt, []byte(sessionInfo))
	key := make([]byte, x25519KeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, fmt.Errorf("crypto: hkdf expand: %w", err)
	}
	return key, nil
}

func isAllZero(b []byte) bool {
	zero := make([]byte, len(b))
	return subtle.ConstantTimeCompare(b, zero) == 1
}

// canonicalSalt orders the two public keys lexicographically so both
// sides of a session derive identical HKDF salts.
func canonicalSalt(a, b []byte) []byte {
	if string(a) <= string(b) {
		return append(append([]byte{}, a...), b...)
	}
	return append(append([]byte{}, b...), a...)
}
