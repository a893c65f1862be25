package store

import (
	"context"

	"github.com/Shiftline/shiftline-notify/types"
)

// ReadStateStore is the durable per-user read-state ledger. An entry exists
// only for notifications that have been marked read; absence means unread.
// Entries are never deleted and a false value is never written.
//
// All operations are namespaced by userID so one user's reads can never leak
// into another's feed.
type ReadStateStore interface {
	// IsRead reports whether the notification identified by id has been
	// marked read by userID. A missing entry is (false, nil); an error is
	// returned only when the store itself could not answer.
	IsRead(ctx context.Context, userID string, id types.Identity) (bool, error)

	// MarkRead durably records id as read for userID. Marking an
	// already-read identity is a no-op, not an error.
	MarkRead(ctx context.Context, userID string, id types.Identity) error

	// MarkReadBatch records every id in ids as read for userID in a single
	// atomic write. Either all entries are persisted or none are.
	MarkReadBatch(ctx context.Context, userID string, ids []types.Identity) error

	// ReadIdentities returns the set of identities userID has marked read.
	// Used to overlay durable read state onto a freshly fetched feed.
	ReadIdentities(ctx context.Context, userID string) (map[types.Identity]struct{}, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
