package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Channel identifies which upstream feed a notification originated from.
// The two channels are independent append-only logs that may reuse each
// other's remote IDs, so the channel tag is part of a notification's identity.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "inapp"
)

// ParseChannel converts a string into a Channel.
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(s)) {
	case ChannelPush:
		return ChannelPush, nil
	case ChannelInApp:
		return ChannelInApp, nil
	default:
		return "", fmt.Errorf("unknown channel %q", s)
	}
}

// Priority is a presentation hint only. It never influences merge or sort
// order.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// NormalizePriority maps an upstream priority string onto the known set,
// defaulting to low for anything unrecognized.
func NormalizePriority(s string) Priority {
	switch Priority(strings.ToLower(s)) {
	case PriorityMedium:
		return PriorityMedium
	case PriorityHigh:
		return PriorityHigh
	default:
		return PriorityLow
	}
}

// Identity is the composite key (channel, remoteId) that uniquely identifies
// a notification across both channels.
type Identity struct {
	Channel  Channel `json:"channel"`
	RemoteID string  `json:"remoteId"`
}

func NewIdentity(channel Channel, remoteID string) Identity {
	return Identity{Channel: channel, RemoteID: remoteID}
}

// String renders the identity in its canonical "channel:remoteId" form, used
// as the read-state storage key and in log fields.
func (i Identity) String() string {
	return string(i.Channel) + ":" + i.RemoteID
}

// ParseIdentity parses the canonical "channel:remoteId" form.
func ParseIdentity(s string) (Identity, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Identity{}, fmt.Errorf("malformed identity %q", s)
	}
	channel, err := ParseChannel(parts[0])
	if err != nil {
		return Identity{}, err
	}
	return Identity{Channel: channel, RemoteID: parts[1]}, nil
}

// Less provides the deterministic ordering used to break createdAt ties.
func (i Identity) Less(other Identity) bool {
	if i.Channel != other.Channel {
		return i.Channel < other.Channel
	}
	return i.RemoteID < other.RemoteID
}

// NotificationRecord is the canonical merged notification unit. Everything
// except Read is owned by the remote source and rebuilt on every fetch; Read
// is owned by this service and carried across fetches through the read-state
// store only.
type NotificationRecord struct {
	Channel           Channel         `json:"channel"`
	RemoteID          string          `json:"remoteId"`
	Title             string          `json:"title"`
	Message           string          `json:"message"`
	Category          string          `json:"category"`
	Priority          Priority        `json:"priority"`
	NavigationPayload json.RawMessage `json:"navigationPayload,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	Read              bool            `json:"read"`
}

// Identity returns the record's composite key.
func (n *NotificationRecord) Identity() Identity {
	return Identity{Channel: n.Channel, RemoteID: n.RemoteID}
}

// FeedView is the immutable snapshot handed to consumers. Notifications are
// copies of the engine's records, sorted createdAt descending with identity
// ascending on ties. UnreadCount always reflects the unfiltered feed, even
// when a category filter narrowed Notifications.
type FeedView struct {
	Notifications []NotificationRecord `json:"notifications"`
	UnreadCount   int                  `json:"unreadCount"`
	Category      string               `json:"category,omitempty"`
	FetchedAt     time.Time            `json:"fetchedAt"`
}
