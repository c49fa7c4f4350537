// SPDX-License-Identifier: LGPL-3.0-or-later

package crypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"
)

// AgentIdentity holds an agent's X25519 key pair, used exclusively for
// session derivation. It is distinct from the secp256k1 identity key in
// package identity, which backs AgentCard.public_key.
type AgentIdentity struct {
	private *ecdh.PrivateKey
	public  *ecdh.PublicKey
}

// GenerateIdentity creates a fresh X25519 key pair.
func GenerateIdentity() (*AgentIdentity, error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate x25519 key: %w", err)
	}
	return &AgentIdentity{private: priv, public: priv.PublicKey()}, nil
}

// PublicBytes returns the 32-byte X25519 public key.
func (id *AgentIdentity) PublicBytes() []byte {
	return id.public.Bytes()
}

// DeriveSession computes the 32-byte symmetric session key shared with
// peerPublic: raw X25519 ECDH followed by HKDF-SHA-256 with the fixed
// info string "waku-a2a/session/v1". Both public keys, in lexicographic
// order, form the HKDF salt so that (A derives for B) and (B derives
// for A) agree without any extra handshake round.
func (id *AgentIdentity) DeriveSession(peerPublic []byte) ([]byte, error) {
	return deriveSession(id.private, id.public.Bytes(), peerPublic)
}
