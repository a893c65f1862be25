// Package badger provides an embedded BadgerDB ReadStateStore for
// single-node deployments that need crash-durable read state without an
// external database.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/Shiftline/shiftline-notify/logger"
	"github.com/Shiftline/shiftline-notify/store"
	"github.com/Shiftline/shiftline-notify/types"
)

// Ensure Store implements store.ReadStateStore.
var _ store.ReadStateStore = (*Store)(nil)

const (
	keyPrefix = "readstate/"

	gcInterval     = 5 * time.Minute
	gcDiscardRatio = 0.5
)

// Store persists read marks in an embedded BadgerDB instance. Keys are
// "readstate/<userID>/<identity>"; the value is a single marker byte.
type Store struct {
	db     *badger.DB
	stopGC chan struct{}
	doneGC chan struct{}
}

// badgerLogger adapts the zap logger to BadgerDB's Logger interface.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logger.GetLogger().Errorf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logger.GetLogger().Warnf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logger.GetLogger().Debugf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logger.GetLogger().Debugf("badger: "+format, args...)
}

// Open opens (creating if necessary) a BadgerDB-backed read-state store at
// dir. The caller must Close it when done.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("badger directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create badger directory %s: %w", dir, err)
	}

	opts := badger.DefaultOptions(dir).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	s := &Store{
		db:     db,
		stopGC: make(chan struct{}),
		doneGC: make(chan struct{}),
	}
	go s.runGC()
	return s, nil
}

// OpenInMemory opens a non-persistent store for tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger database: %w", err)
	}

	s := &Store{db: db}
	return s, nil
}

// Close stops value-log GC and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.doneGC
	}
	return s.db.Close()
}

// runGC periodically reclaims value-log space. ErrNoRewrite just means
// nothing needed collecting.
func (s *Store) runGC() {
	defer close(s.doneGC)
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			if err := s.db.RunValueLogGC(gcDiscardRatio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				logger.GetLogger().Warnw("Badger value log GC failed", "error", err)
			}
		}
	}
}

func userPrefix(userID string) []byte {
	return []byte(keyPrefix + userID + "/")
}

func entryKey(userID string, id types.Identity) []byte {
	return append(userPrefix(userID), id.String()...)
}

func (s *Store) IsRead(ctx context.Context, userID string, id types.Identity) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(entryKey(userID, id))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check read mark for %s: %w", id, err)
	}
	return true, nil
}

func (s *Store) MarkRead(ctx context.Context, userID string, id types.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(userID, id), []byte{1})
	})
	if err != nil {
		return fmt.Errorf("failed to persist read mark for %s: %w", id, err)
	}
	return nil
}

func (s *Store) MarkReadBatch(ctx context.Context, userID string, ids []types.Identity) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// A single transaction commits every mark or none.
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			if err := txn.Set(entryKey(userID, id), []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist %d read marks: %w", len(ids), err)
	}
	return nil
}

func (s *Store) ReadIdentities(ctx context.Context, userID string) (map[types.Identity]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := userPrefix(userID)
	out := make(map[types.Identity]struct{})

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			raw := bytes.TrimPrefix(it.Item().KeyCopy(nil), prefix)
			id, err := types.ParseIdentity(string(raw))
			if err != nil {
				// Keys that are not valid identities are ignored.
				continue
			}
			out[id] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load read set: %w", err)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return store.ErrUnavailable
	}
	return nil
}
