package types

import (
	"context"
	"time"

	"github.com/Shiftline/shiftline-notify/errors"
)

type EventType string

const (
	// EventTypeUnreadCountChanged fires whenever a user's unread counter
	// moves: after a fetch republish, an optimistic mutation, or a rollback.
	EventTypeUnreadCountChanged EventType = "UNREAD_COUNT_CHANGED"
)

// CounterEvent announces a new unread-counter value for one user. Seq is the
// engine's publish sequence; consumers that buffer events drop anything with
// a Seq older than the newest they have delivered.
type CounterEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	UserID    string    `json:"userId"`
	Unread    int       `json:"unread"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

func (e CounterEvent) Validate() error {
	if e.ID == "" {
		return errors.ValidationFailed("invalid event", "event ID is required")
	}
	if e.UserID == "" {
		return errors.ValidationFailed("invalid event", "user ID is required")
	}
	if e.Unread < 0 {
		return errors.ValidationFailed("invalid event", "unread count cannot be negative")
	}
	if e.Timestamp.IsZero() {
		return errors.ValidationFailed("invalid event", "timestamp is required")
	}
	return nil
}

// CounterPublisher is how the feed engine announces counter changes.
// Implementations must not block: the engine calls Publish while holding its
// state lock, so delivery has to be buffered or handed off.
type CounterPublisher interface {
	Publish(event CounterEvent)
}

// CounterSubscriber hands out per-user event streams for badge rendering.
type CounterSubscriber interface {
	Subscribe(ctx context.Context, userID string) (<-chan CounterEvent, func(), error)
	ActiveUsers() []string
}
