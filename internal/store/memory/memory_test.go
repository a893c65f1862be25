package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/Shiftline/shiftline-notify/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AbsentMeansUnread(t *testing.T) {
	s := New()
	ctx := context.Background()

	read, err := s.IsRead(ctx, "user-1", types.NewIdentity(types.ChannelPush, "n-1"))
	require.NoError(t, err)
	assert.False(t, read)
}

func TestStore_MarkReadIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := types.NewIdentity(types.ChannelInApp, "n-42")

	require.NoError(t, s.MarkRead(ctx, "user-1", id))
	require.NoError(t, s.MarkRead(ctx, "user-1", id))

	read, err := s.IsRead(ctx, "user-1", id)
	require.NoError(t, err)
	assert.True(t, read)

	ids, err := s.ReadIdentities(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestStore_MarkReadBatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	ids := []types.Identity{
		types.NewIdentity(types.ChannelPush, "n-1"),
		types.NewIdentity(types.ChannelPush, "n-2"),
		types.NewIdentity(types.ChannelInApp, "n-1"),
	}

	require.NoError(t, s.MarkReadBatch(ctx, "user-1", ids))

	got, err := s.ReadIdentities(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, got, 3)
	for _, id := range ids {
		_, ok := got[id]
		assert.True(t, ok, "expected %s to be read", id)
	}
}

func TestStore_UsersAreIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := types.NewIdentity(types.ChannelPush, "n-1")

	require.NoError(t, s.MarkRead(ctx, "user-1", id))

	read, err := s.IsRead(ctx, "user-2", id)
	require.NoError(t, err)
	assert.False(t, read, "user-2 must not see user-1's read state")
}

func TestStore_ReadIdentitiesReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := types.NewIdentity(types.ChannelPush, "n-1")
	require.NoError(t, s.MarkRead(ctx, "user-1", id))

	got, err := s.ReadIdentities(ctx, "user-1")
	require.NoError(t, err)
	delete(got, id)

	read, err := s.IsRead(ctx, "user-1", id)
	require.NoError(t, err)
	assert.True(t, read, "mutating the returned set must not affect the store")
}

func TestStore_SetFailure(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := types.NewIdentity(types.ChannelPush, "n-1")
	injected := errors.New("disk on fire")

	s.SetFailure(injected)

	assert.ErrorIs(t, s.MarkRead(ctx, "user-1", id), injected)
	assert.ErrorIs(t, s.MarkReadBatch(ctx, "user-1", []types.Identity{id}), injected)
	_, err := s.IsRead(ctx, "user-1", id)
	assert.ErrorIs(t, err, injected)
	_, err = s.ReadIdentities(ctx, "user-1")
	assert.ErrorIs(t, err, injected)
	assert.ErrorIs(t, s.Ping(ctx), injected)

	// Clearing the failure restores normal operation and nothing was persisted.
	s.SetFailure(nil)
	require.NoError(t, s.Ping(ctx))
	read, err := s.IsRead(ctx, "user-1", id)
	require.NoError(t, err)
	assert.False(t, read)
}
