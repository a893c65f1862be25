package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/Shiftline/shiftline-notify/types"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_IsRead(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := New(client)
	ctx := context.Background()
	id := types.NewIdentity(types.ChannelPush, "n-1")

	t.Run("absent means unread", func(t *testing.T) {
		mock.ExpectHGet("readstate:user-1", "push:n-1").RedisNil()

		read, err := s.IsRead(ctx, "user-1", id)
		require.NoError(t, err)
		assert.False(t, read)
	})

	t.Run("present means read", func(t *testing.T) {
		mock.ExpectHGet("readstate:user-1", "push:n-1").SetVal("1")

		read, err := s.IsRead(ctx, "user-1", id)
		require.NoError(t, err)
		assert.True(t, read)
	})

	t.Run("store failure is an error, not unread", func(t *testing.T) {
		mock.ExpectHGet("readstate:user-1", "push:n-1").SetErr(errors.New("connection refused"))

		_, err := s.IsRead(ctx, "user-1", id)
		assert.Error(t, err)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkRead(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := New(client)
	ctx := context.Background()

	mock.ExpectHSet("readstate:user-1", "inapp:n-7", "1").SetVal(1)

	err := s.MarkRead(ctx, "user-1", types.NewIdentity(types.ChannelInApp, "n-7"))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkReadBatch(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := New(client)
	ctx := context.Background()

	ids := []types.Identity{
		types.NewIdentity(types.ChannelPush, "n-1"),
		types.NewIdentity(types.ChannelPush, "n-2"),
		types.NewIdentity(types.ChannelInApp, "n-3"),
	}

	mock.ExpectHSet("readstate:user-1",
		"push:n-1", "1",
		"push:n-2", "1",
		"inapp:n-3", "1",
	).SetVal(3)

	require.NoError(t, s.MarkReadBatch(ctx, "user-1", ids))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkReadBatch_Empty(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := New(client)

	// No command should be issued for an empty batch.
	require.NoError(t, s.MarkReadBatch(context.Background(), "user-1", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MarkReadBatch_Failure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := New(client)

	ids := []types.Identity{types.NewIdentity(types.ChannelPush, "n-1")}
	mock.ExpectHSet("readstate:user-1", "push:n-1", "1").SetErr(errors.New("connection reset"))

	err := s.MarkReadBatch(context.Background(), "user-1", ids)
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReadIdentities(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := New(client)

	mock.ExpectHGetAll("readstate:user-1").SetVal(map[string]string{
		"push:n-1":  "1",
		"inapp:n-2": "1",
		"garbage":   "1", // not a valid identity, ignored
	})

	got, err := s.ReadIdentities(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	_, ok := got[types.NewIdentity(types.ChannelPush, "n-1")]
	assert.True(t, ok)
	_, ok = got[types.NewIdentity(types.ChannelInApp, "n-2")]
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Ping(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := New(client)

	mock.ExpectPing().SetVal("PONG")
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
