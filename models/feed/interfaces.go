package feed

import (
	"context"

	"github.com/Shiftline/shiftline-notify/internal/feedsource"
	"github.com/Shiftline/shiftline-notify/types"
)

// FeedSource reads one upstream channel. *feedsource.Client is the production
// implementation; tests script channel behavior per call.
type FeedSource interface {
	FetchChannel(ctx context.Context, channel types.Channel, userID string) ([]feedsource.RemoteNotification, error)
}

// FeedEngine is the consumer-facing surface of the per-user engine.
type FeedEngine interface {
	// Fetch pulls both channels, merges them, overlays read state, and
	// publishes a fresh snapshot. categoryFilter narrows the returned view
	// only; it never affects the unread counter.
	Fetch(ctx context.Context, categoryFilter string) (types.FeedView, error)

	// Snapshot returns the currently published feed without contacting the
	// remote source.
	Snapshot(categoryFilter string) types.FeedView

	// MarkRead optimistically marks one notification read and persists the
	// mark, rolling the optimistic change back if persistence fails.
	MarkRead(ctx context.Context, id types.Identity) error

	// MarkAllRead marks every unread notification in the unfiltered feed
	// read in one all-or-nothing batch. Returns how many were marked.
	MarkAllRead(ctx context.Context) (int, error)

	// UnreadCount returns the current unread counter over the unfiltered feed.
	UnreadCount() int
}
