// SPDX-License-Identifier: LGPL-3.0-or-later

// Package store defines the dedup-set persistence boundary for the
// reliability layer. A message id is added once it has been surfaced
// to the application and never removed; Contains answers whether it
// was seen before. The default in-memory store is what the package's
// deduplication property is verified against; SQLiteStore is an
// optional, best-effort persistence backend.
package store

import "context"

// DedupStore records message ids that have already been surfaced to
// the application, so a duplicate delivery from the transport can be
// filtered before it reaches the caller a second time.
type DedupStore interface {
	// Contains reports whether id has been recorded before.
	Contains(ctx context.Context, id string) (bool, error)

	// Add records id. It is safe to call Add for an id already
	// present; implementations treat this as a no-op.
	Add(ctx context.Context, id string) error
}
