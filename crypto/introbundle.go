// SPDX-License-Identifier: LGPL-3.0-or-later

package crypto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// IntroBundle is the out-of-band advertisement of a recipient's X25519
// public key, letting a sender address a recipient it has never met.
// Bundles may be carried inside an AgentCard or exchanged separately.
type IntroBundle struct {
	X25519PublicKey []byte
	Ciphersuite     string
}

// introBundleWire is the canonical JSON wire form: byte fields are
// base64-url (no padding) encoded, per spec.
type introBundleWire struct {
	X25519PublicKey string `json:"x25519_public_key"`
	Ciphersuite     string `json:"ciphersuite"`
}

// NewIntroBundle builds a bundle for identity using the only ciphersuite
// defined in v1.
func NewIntroBundle(identity *AgentIdentity) IntroBundle {
	return IntroBundle{
		X25519PublicKey: identity.PublicBytes(),
		Ciphersuite:     CiphersuiteX25519ChaCha20Poly1305,
	}
}

// MarshalJSON implements the canonical base64-url encoding.
func (b IntroBundle) MarshalJSON() ([]byte, error) {
	return json.Marshal(introBundleWire{
		X25519PublicKey: base64.RawURLEncoding.EncodeToString(b.X25519PublicKey),
		Ciphersuite:     b.Ciphersuite,
	})
}

// UnmarshalJSON implements the canonical base64-url decoding.
func (b *IntroBundle) UnmarshalJSON(data []byte) error {
	var wire introBundleWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("codec.malformed: intro bundle: %w", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(wire.X25519PublicKey)
	if err != nil {
		return fmt.Errorf("codec.malformed: intro bundle pubkey: %w", err)
	}
	if len(raw) != x25519KeySize {
		return fmt.Errorf("codec.invariant: intro bundle pubkey must be %d bytes, got %d", x25519KeySize, len(raw))
	}
	b.X25519PublicKey = raw
	b.Ciphersuite = wire.Ciphersuite
	return nil
}
