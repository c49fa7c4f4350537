// SPDX-License-Identifier: LGPL-3.0-or-later

// Package a2a defines the A2A data model (AgentCard, Task, Message,
// Part, A2AEnvelope) and its canonical JSON wire codec.
package a2a

import "errors"

// Error kinds from the error taxonomy. Codec errors on inbound data are
// always non-fatal to a node: callers drop the single malformed payload
// and continue polling.
var (
	ErrMalformed       = errors.New("codec.malformed")
	ErrUnknownEnvelope = errors.New("codec.unknown_envelope")
	ErrInvariant       = errors.New("codec.invariant")
)
