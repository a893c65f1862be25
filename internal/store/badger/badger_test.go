package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shiftline/shiftline-notify/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := types.NewIdentity(types.ChannelPush, "n-1")

	read, err := s.IsRead(ctx, "user-1", id)
	require.NoError(t, err)
	assert.False(t, read, "absent entry must report unread")

	require.NoError(t, s.MarkRead(ctx, "user-1", id))

	read, err = s.IsRead(ctx, "user-1", id)
	require.NoError(t, err)
	assert.True(t, read)

	// Marking twice is a no-op, not an error.
	require.NoError(t, s.MarkRead(ctx, "user-1", id))
}

func TestStore_UserNamespacing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := types.NewIdentity(types.ChannelInApp, "n-9")

	require.NoError(t, s.MarkRead(ctx, "user-1", id))

	read, err := s.IsRead(ctx, "user-2", id)
	require.NoError(t, err)
	assert.False(t, read, "one user's read marks must not leak into another's")
}

func TestStore_MarkReadBatch(t *testing.T) {
	s := newTestStore(t)
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
		assert.True(t, ok, "missing %s", id)
	}

	require.NoError(t, s.MarkReadBatch(ctx, "user-1", nil))
}

func TestStore_ReadIdentities_PrefixIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// "user-1" and "user-10" share a string prefix; the trailing slash in the
	// key prefix must keep their sets apart.
	require.NoError(t, s.MarkRead(ctx, "user-1", types.NewIdentity(types.ChannelPush, "a")))
	require.NoError(t, s.MarkRead(ctx, "user-10", types.NewIdentity(types.ChannelPush, "b")))

	got, err := s.ReadIdentities(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	_, ok := got[types.NewIdentity(types.ChannelPush, "a")]
	assert.True(t, ok)
}

func TestStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	id := types.NewIdentity(types.ChannelInApp, "n-42")

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.MarkRead(ctx, "user-1", id))
	require.NoError(t, s.Close())

	// Reopen and verify the mark survived.
	s, err = Open(dir)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	read, err := s.IsRead(ctx, "user-1", id)
	require.NoError(t, err)
	assert.True(t, read)
}

func TestStore_Ping(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)

	require.NoError(t, s.Ping(context.Background()))

	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}

func TestStore_ContextCanceled(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.IsRead(ctx, "user-1", types.NewIdentity(types.ChannelPush, "n-1"))
	assert.Error(t, err)
	assert.Error(t, s.MarkRead(ctx, "user-1", types.NewIdentity(types.ChannelPush, "n-1")))
}
