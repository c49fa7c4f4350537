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

// Package transport abstracts the pub/sub relay network the
// reliability and node layers run on top of, so backends can be
// swapped (in-memory, REST, ...) without touching either.
package transport

import (
	"context"
	"errors"
)

// Errors a Transport implementation returns. Inbound poll errors are
// surfaced to the caller (unlike codec/crypto errors, which are always
// absorbed); outbound publish/subscribe errors propagate to the
// caller, who may retry via the reliability layer.
var (
	ErrUnavailable = errors.New("transport.unavailable")
	ErrRejected    = errors.New("transport.rejected")
)

// Transport is the pub/sub contract every relay backend implements.
// Delivery is explicitly best-effort and unordered across polls;
// duplicates are legal and handled by the reliability layer, not here.
type Transport interface {
	// Publish sends payload on topic. It returns ErrUnavailable on
	// network/I-O failure and ErrRejected when the relay accepted the
	// request but reports failure (e.g. non-2xx over REST).
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe is idempotent and must be called before Poll delivers
	// anything for topic. It returns ErrUnavailable on failure.
	Subscribe(ctx context.Context, topic string) error

	// Poll returns payloads received on topic since the last Poll call.
	// The returned slice may be empty and may contain duplicates; order
	// within one Poll call matches delivery order, order across Poll
	// calls is best-effort only.
	Poll(ctx context.Context, topic string) ([][]byte, error)
}
