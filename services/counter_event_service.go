// Package services provides the service shell around the feed engine:
// counter event delivery, background refresh, worker pool, and health.
package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/Shiftline/shiftline-notify/errors"
	"github.com/Shiftline/shiftline-notify/logger"
	"github.com/Shiftline/shiftline-notify/types"
)

// CounterBroadcaster fans unread-counter events out to per-user subscribers
// (SSE streams, WebSocket connections). Publish never blocks: the engine
// calls it while holding its state lock, so a slow consumer gets events
// dropped, never a stalled engine.
type CounterBroadcaster struct {
	log        *zap.SugaredLogger
	bufferSize int

	mu      sync.RWMutex
	subs    map[string]map[string]chan types.CounterEvent // userID -> subscription ID -> channel
	lastSeq map[string]uint64
	closed  bool
}

var (
	_ types.CounterPublisher  = (*CounterBroadcaster)(nil)
	_ types.CounterSubscriber = (*CounterBroadcaster)(nil)
)

// NewCounterBroadcaster creates a broadcaster whose subscriber channels hold
// bufferSize pending events.
func NewCounterBroadcaster(bufferSize int) *CounterBroadcaster {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &CounterBroadcaster{
		log:        logger.GetLogger().Named("CounterBroadcaster"),
		bufferSize: bufferSize,
		subs:       make(map[string]map[string]chan types.CounterEvent),
		lastSeq:    make(map[string]uint64),
	}
}

// Publish delivers event to every subscriber of its user. Events that are
// not newer than the last delivered sequence for that user are dropped;
// this both keeps reordered deliveries from moving the badge backwards and
// deduplicates our own events when they echo back from the Redis fan-out.
func (b *CounterBroadcaster) Publish(event types.CounterEvent) {
	if err := event.Validate(); err != nil {
		b.log.Warnw("Dropping invalid counter event", "error", err)
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if event.Seq != 0 && event.Seq <= b.lastSeq[event.UserID] {
		b.mu.Unlock()
		b.log.Debugw("Dropping stale counter event",
			"userID", event.UserID,
			"seq", event.Seq)
		return
	}
	b.lastSeq[event.UserID] = event.Seq

	targets := make([]chan types.CounterEvent, 0, len(b.subs[event.UserID]))
	for _, ch := range b.subs[event.UserID] {
		targets = append(targets, ch)
	}
	b.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			b.log.Warnw("Subscriber channel full, dropping counter event",
				"userID", event.UserID,
				"unread", event.Unread)
		}
	}
}

// Subscribe registers a consumer for one user's counter events. The returned
// function removes the subscription; it is also removed when ctx is
// canceled. The channel is closed on unsubscribe.
func (b *CounterBroadcaster) Subscribe(ctx context.Context, userID string) (<-chan types.CounterEvent, func(), error) {
	if userID == "" {
		return nil, nil, apperrors.ValidationFailed("invalid subscription", "user ID is required")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		ch := make(chan types.CounterEvent)
		close(ch)
		return ch, func() {}, nil
	}
	subID := uuid.New().String()
	ch := make(chan types.CounterEvent, b.bufferSize)
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[string]chan types.CounterEvent)
	}
	b.subs[userID][subID] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if userSubs, ok := b.subs[userID]; ok {
				if ch, ok := userSubs[subID]; ok {
					delete(userSubs, subID)
					close(ch)
				}
				if len(userSubs) == 0 {
					delete(b.subs, userID)
				}
			}
		})
	}

	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	b.log.Debugw("Counter subscription added", "userID", userID, "subscriptionID", subID)
	return ch, unsubscribe, nil
}

// ActiveUsers returns the users that currently have at least one counter
// subscriber. The background refresh service uses this to decide whose
// feeds are worth re-fetching.
func (b *CounterBroadcaster) ActiveUsers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	users := make([]string, 0, len(b.subs))
	for userID := range b.subs {
		users = append(users, userID)
	}
	return users
}

// Shutdown closes every subscriber channel and rejects further publishes.
func (b *CounterBroadcaster) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for userID, userSubs := range b.subs {
		for _, ch := range userSubs {
			close(ch)
		}
		delete(b.subs, userID)
	}
	b.log.Info("Counter broadcaster shut down")
}
