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

// Package crypto implements the node's X25519 encryption layer: static
// ECDH session derivation and ChaCha20-Poly1305 sealing. X25519 private
// keys never leave AgentIdentity; other packages see X25519 public keys
// only as byte slices.
package crypto

import "errors"

// Ciphersuite identifies the AEAD/KDF combination advertised by an
// IntroBundle. Only one is defined in v1.
const CiphersuiteX25519ChaCha20Poly1305 = "x25519-chacha20poly1305-v1"

// sessionInfo is the fixed HKDF info string binding derived keys to this
// protocol and version, preventing cross-protocol key reuse.
const sessionInfo = "waku-a2a/session/v1"

const (
	x25519KeySize = 32
	nonceSize     = 12
)

var (
	// ErrLowOrderPoint is returned by DeriveSession when the raw X25519
	// ECDH output is the all-zero point (an invalid or malicious peer key).
	ErrLowOrderPoint = errors.New("crypto.key: x25519 ecdh produced the all-zero point")
	// ErrAuth is returned by Open on AEAD tag mismatch, length mismatch,
	// or associated-data mismatch. It is fatal only for the single
	// message in flight.
	ErrAuth = errors.New("crypto.auth: authentication failed")
	// ErrInvalidPublicKey is returned when a peer public key is not a
	// well-formed 32-byte X25519 point.
	ErrInvalidPublicKey = errors.New("crypto.key: invalid x25519 public key")
)
