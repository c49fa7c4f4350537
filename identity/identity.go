// Copyright (C) 2026 waku-a2a contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package identity implements the secp256k1 key pair that backs an
// agent's long-lived AgentCard.public_key. It is deliberately kept
// separate from package crypto's X25519 encryption keys: spec v1 mixes
// the two curves by design and unifying them is an open question left
// for a future revision.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// PubKeyHexLen is the length of a lower-case hex-encoded compressed
// secp256k1 public key (33 bytes -> 66 hex chars).
const PubKeyHexLen = 66

// ErrInvalidPubKeyHex is returned when a string is not a well-formed
// 66-character hex-encoded compressed secp256k1 public key.
var ErrInvalidPubKeyHex = errors.New("identity: invalid compressed public key hex")

// Identity holds a secp256k1 key pair and its canonical hex encoding.
type Identity struct {
	private *secp256k1.PrivateKey
	public  *secp256k1.PublicKey
	hex     string
}

// Generate creates a fresh secp256k1 identity key pair.
func Generate() (*Identity, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	pub := priv.PubKey()
	return &Identity{
		private: priv,
		public:  pub,
		hex:     encodeHex(pub),
	}, nil
}

// PublicKeyHex returns the lower-case hex-encoded 33-byte compressed
// public key — the canonical form of AgentCard.public_key.
func (id *Identity) PublicKeyHex() string {
	return id.hex
}

func encodeHex(pub *secp256k1.PublicKey) string {
	return hex.EncodeToString(pub.SerializeCompressed())
}

// NormalizePubKeyHex validates and lower-cases a hex-encoded compressed
// public key as found on the wire. Receivers accept mixed case on input
// but always emit lower case.
func NormalizePubKeyHex(s string) (string, error) {
	if len(s) != PubKeyHexLen {
		return "", ErrInvalidPubKeyHex
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPubKeyHex, err)
	}
	if _, err := secp256k1.ParsePubKey(raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPubKeyHex, err)
	}
	return hex.EncodeToString(raw), nil
}

// ShortID returns a deterministic short identifier for logging,
// independent of the full 66-char hex string.
func (id *Identity) ShortID() string {
	sum := sha256.Sum256(id.public.SerializeCompressed())
	return hex.EncodeToString(sum[:8])
}
