// Package redis provides a Redis-backed ReadStateStore. A user's read marks
// live in a single hash so a batch mark is one atomic HSET.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shiftline/shiftline-notify/store"
	"github.com/Shiftline/shiftline-notify/types"
	"github.com/redis/go-redis/v9"
)

// Ensure Store implements store.ReadStateStore.
var _ store.ReadStateStore = (*Store)(nil)

const keyPrefix = "readstate:"

// Store persists read marks in Redis hashes keyed by user.
type Store struct {
	client *redis.Client
}

// New creates a Redis-backed read-state store using the provided client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func userKey(userID string) string {
	return keyPrefix + userID
}

func (s *Store) IsRead(ctx context.Context, userID string, id types.Identity) (bool, error) {
	err := s.client.HGet(ctx, userKey(userID), id.String()).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check read mark for %s: %w", id, err)
	}
	return true, nil
}

func (s *Store) MarkRead(ctx context.Context, userID string, id types.Identity) error {
	if err := s.client.HSet(ctx, userKey(userID), id.String(), "1").Err(); err != nil {
		return fmt.Errorf("failed to persist read mark for %s: %w", id, err)
	}
	return nil
}

func (s *Store) MarkReadBatch(ctx context.Context, userID string, ids []types.Identity) error {
	if len(ids) == 0 {
		return nil
	}
	pairs := make([]interface{}, 0, len(ids)*2)
	for _, id := range ids {
		pairs = append(pairs, id.String(), "1")
	}
	// A single HSET writes every field or none.
	if err := s.client.HSet(ctx, userKey(userID), pairs...).Err(); err != nil {
		return fmt.Errorf("failed to persist %d read marks: %w", len(ids), err)
	}
	return nil
}

func (s *Store) ReadIdentities(ctx context.Context, userID string) (map[types.Identity]struct{}, error) {
	fields, err := s.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load read set: %w", err)
	}
	out := make(map[types.Identity]struct{}, len(fields))
	for field := range fields {
		id, err := types.ParseIdentity(field)
		if err != nil {
			// Fields that are not valid identities are ignored.
			continue
		}
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
