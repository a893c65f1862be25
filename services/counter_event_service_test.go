package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shiftline/shiftline-notify/types"
)

func counterEvent(userID string, unread int, seq uint64) types.CounterEvent {
	return types.CounterEvent{
		ID:        uuid.New().String(),
		Type:      types.EventTypeUnreadCountChanged,
		UserID:    userID,
		Unread:    unread,
		Seq:       seq,
		Timestamp: time.Now(),
	}
}

func recvEvent(t *testing.T, ch <-chan types.CounterEvent) types.CounterEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed before event arrived")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for counter event")
		return types.CounterEvent{}
	}
}

func TestCounterBroadcaster_FanOut(t *testing.T) {
	b := NewCounterBroadcaster(10)
	defer b.Shutdown()
	ctx := context.Background()

	ch1, unsub1, err := b.Subscribe(ctx, "user-1")
	require.NoError(t, err)
	defer unsub1()
	ch2, unsub2, err := b.Subscribe(ctx, "user-1")
	require.NoError(t, err)
	defer unsub2()
	other, unsubOther, err := b.Subscribe(ctx, "user-2")
	require.NoError(t, err)
	defer unsubOther()

	b.Publish(counterEvent("user-1", 3, 1))

	assert.Equal(t, 3, recvEvent(t, ch1).Unread)
	assert.Equal(t, 3, recvEvent(t, ch2).Unread)
	select {
	case ev := <-other:
		t.Fatalf("user-2 subscriber received user-1 event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCounterBroadcaster_NonBlockingDrop(t *testing.T) {
	b := NewCounterBroadcaster(1)
	defer b.Shutdown()

	ch, unsub, err := b.Subscribe(context.Background(), "user-1")
	require.NoError(t, err)
	defer unsub()

	done := make(chan struct{})
	go func() {
		// Nobody drains ch; the second publish must drop, not block.
		b.Publish(counterEvent("user-1", 2, 1))
		b.Publish(counterEvent("user-1", 1, 2))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
	assert.Equal(t, 2, recvEvent(t, ch).Unread, "buffered event must be the first one")
}

func TestCounterBroadcaster_StaleSeqDropped(t *testing.T) {
	b := NewCounterBroadcaster(10)
	defer b.Shutdown()

	ch, unsub, err := b.Subscribe(context.Background(), "user-1")
	require.NoError(t, err)
	defer unsub()

	b.Publish(counterEvent("user-1", 1, 5))
	b.Publish(counterEvent("user-1", 9, 3)) // stale: seq went backwards
	b.Publish(counterEvent("user-1", 1, 5)) // duplicate, e.g. a Redis echo
	b.Publish(counterEvent("user-1", 0, 6))

	assert.Equal(t, 1, recvEvent(t, ch).Unread)
	assert.Equal(t, 0, recvEvent(t, ch).Unread)
	select {
	case ev := <-ch:
		t.Fatalf("stale event delivered: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCounterBroadcaster_InvalidEventDropped(t *testing.T) {
	b := NewCounterBroadcaster(10)
	defer b.Shutdown()

	ch, unsub, err := b.Subscribe(context.Background(), "user-1")
	require.NoError(t, err)
	defer unsub()

	b.Publish(types.CounterEvent{UserID: "user-1"}) // missing ID and type

	select {
	case ev := <-ch:
		t.Fatalf("invalid event delivered: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCounterBroadcaster_SubscribeRequiresUser(t *testing.T) {
	b := NewCounterBroadcaster(10)
	defer b.Shutdown()

	_, _, err := b.Subscribe(context.Background(), "")
	require.Error(t, err)
}

func TestCounterBroadcaster_ActiveUsers(t *testing.T) {
	b := NewCounterBroadcaster(10)
	defer b.Shutdown()
	ctx := context.Background()

	assert.Empty(t, b.ActiveUsers())

	_, unsub1, err := b.Subscribe(ctx, "user-1")
	require.NoError(t, err)
	_, _, err = b.Subscribe(ctx, "user-2")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"user-1", "user-2"}, b.ActiveUsers())

	unsub1()
	assert.ElementsMatch(t, []string{"user-2"}, b.ActiveUsers())
}

func TestCounterBroadcaster_ContextCancelUnsubscribes(t *testing.T) {
	b := NewCounterBroadcaster(10)
	defer b.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _, err := b.Subscribe(ctx, "user-1")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel must be closed after context cancellation")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancellation")
	}
	assert.Empty(t, b.ActiveUsers())
}

func TestCounterBroadcaster_UnsubscribeIdempotent(t *testing.T) {
	b := NewCounterBroadcaster(10)
	defer b.Shutdown()

	_, unsub, err := b.Subscribe(context.Background(), "user-1")
	require.NoError(t, err)

	unsub()
	assert.NotPanics(t, unsub)
}

func TestCounterBroadcaster_Shutdown(t *testing.T) {
	b := NewCounterBroadcaster(10)

	ch, _, err := b.Subscribe(context.Background(), "user-1")
	require.NoError(t, err)

	b.Shutdown()

	_, ok := <-ch
	assert.False(t, ok, "subscriber channel must be closed on shutdown")
	assert.NotPanics(t, func() { b.Publish(counterEvent("user-1", 1, 1)) })

	late, _, err := b.Subscribe(context.Background(), "user-1")
	require.NoError(t, err)
	_, ok = <-late
	assert.False(t, ok, "post-shutdown subscription must yield a closed channel")
}
