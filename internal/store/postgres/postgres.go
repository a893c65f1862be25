// Package postgres provides the PostgreSQL-backed ReadStateStore.
package postgres

import (
	"context"
	"fmt"

	"github.com/Shiftline/shiftline-notify/store"
	"github.com/Shiftline/shiftline-notify/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Ensure Store implements store.ReadStateStore.
var _ store.ReadStateStore = (*Store)(nil)

// Store persists read marks in the notification_read_state table.
type Store struct {
	pool DBPool
}

// New creates a PostgreSQL-backed read-state store.
func New(pool DBPool) *Store {
	return &Store{pool: pool}
}

func (s *Store) IsRead(ctx context.Context, userID string, id types.Identity) (bool, error) {
	query := `SELECT EXISTS(
	              SELECT 1 FROM notification_read_state
	              WHERE user_id = $1 AND channel = $2 AND remote_id = $3)`

	var read bool
	err := s.pool.QueryRow(ctx, query, userID, string(id.Channel), id.RemoteID).Scan(&read)
	if err != nil {
		return false, fmt.Errorf("failed to check read mark for %s: %w", id, err)
	}
	return read, nil
}

func (s *Store) MarkRead(ctx context.Context, userID string, id types.Identity) error {
	query := `INSERT INTO notification_read_state (user_id, channel, remote_id)
	          VALUES ($1, $2, $3)
	          ON CONFLICT DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, userID, string(id.Channel), id.RemoteID); err != nil {
		return fmt.Errorf("failed to persist read mark for %s: %w", id, err)
	}
	return nil
}

func (s *Store) MarkReadBatch(ctx context.Context, userID string, ids []types.Identity) error {
	if len(ids) == 0 {
		return nil
	}
	channels := make([]string, len(ids))
	remoteIDs := make([]string, len(ids))
	for i, id := range ids {
		channels[i] = string(id.Channel)
		remoteIDs[i] = id.RemoteID
	}

	// A single INSERT commits or fails as a unit.
	query := `INSERT INTO notification_read_state (user_id, channel, remote_id)
	          SELECT $1, c, r FROM unnest($2::text[], $3::text[]) AS t(c, r)
	          ON CONFLICT DO NOTHING`

	if _, err := s.pool.Exec(ctx, query, userID, channels, remoteIDs); err != nil {
		return fmt.Errorf("failed to persist %d read marks: %w", len(ids), err)
	}
	return nil
}

func (s *Store) ReadIdentities(ctx context.Context, userID string) (map[types.Identity]struct{}, error) {
	query := `SELECT channel, remote_id FROM notification_read_state WHERE user_id = $1`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load read set: %w", err)
	}
	defer rows.Close()

	out := make(map[types.Identity]struct{})
	for rows.Next() {
		var channel, remoteID string
		if err := rows.Scan(&channel, &remoteID); err != nil {
			return nil, fmt.Errorf("failed to scan read mark row: %w", err)
		}
		out[types.Identity{Channel: types.Channel(channel), RemoteID: remoteID}] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during read mark iteration: %w", err)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
