package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/owera/internal/project"
)

const keyPrefix = "run/"

// Config configures a BadgerStore.
type Config struct {
	// Path is the database directory. Required unless InMemory.
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *zap.Logger
}

// BadgerStore is a Store backed by an embedded badger database.
type BadgerStore struct {
	db     *badger.DB
	logger *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
}

var _ Store = (*BadgerStore)(nil)

// badgerLogger routes badger's internal logging through zap at debug
// level, except errors and warnings.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.s.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent checkpoint store")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create checkpoint directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{s: cfg.Logger.Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	return &BadgerStore{db: db, logger: cfg.Logger, now: time.Now}, nil
}

// OpenInMemory opens a throwaway store.
func OpenInMemory() (*BadgerStore, error) {
	return Open(Config{InMemory: true})
}

func runPrefix(runID string) []byte {
	return []byte(keyPrefix + runID + "/cycle/")
}

func cycleKey(runID string, cycle int) []byte {
	return []byte(fmt.Sprintf("%s%s/cycle/%06d", keyPrefix, runID, cycle))
}

func (s *BadgerStore) checkOpen() error {
	if s.closed {
		return errors.New("checkpoint store is closed")
	}
	return nil
}

// Save implements Store.
func (s *BadgerStore) Save(ctx context.Context, runID string, cycle int, snap project.Snapshot) error {
	if runID == "" {
		return errors.New("run id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	data, err := json.Marshal(Checkpoint{RunID: runID, Cycle: cycle, Snapshot: snap, SavedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cycleKey(runID, cycle), data)
	}); err != nil {
		return fmt.Errorf("save checkpoint %s/%d: %w", runID, cycle, err)
	}
	s.logger.Debug("checkpoint saved", zap.String("run.id", runID), zap.Int("cycle", cycle), zap.Int("bytes", len(data)))
	return nil
}

// Latest implements Store.
func (s *BadgerStore) Latest(ctx context.Context, runID string) (*Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var cp *Checkpoint
	prefix := runPrefix(runID)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the last key with the prefix.
		it.Seek(append(append([]byte(nil), prefix...), 0xFF))
		if !it.ValidForPrefix(prefix) {
			return ErrNotFound
		}
		var err error
		cp, err = decode(it.Item())
		return err
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// List implements Store.
func (s *BadgerStore) List(ctx context.Context, runID string) ([]*Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var out []*Checkpoint
	prefix := runPrefix(runID)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			cp, err := decode(it.Item())
			if err != nil {
				return err
			}
			out = append(out, cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Runs implements Store.
func (s *BadgerStore) Runs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var runs []string
	seen := make(map[string]bool)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			rest := strings.TrimPrefix(string(it.Item().Key()), keyPrefix)
			id, _, ok := strings.Cut(rest, "/")
			if ok && !seen[id] {
				seen[id] = true
				runs = append(runs, id)
			}
		}
		return nil
	})
	return runs, err
}

func decode(item *badger.Item) (*Checkpoint, error) {
	var cp Checkpoint
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &cp)
	})
	if err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", item.Key(), err)
	}
	return &cp, nil
}

// Close implements Store. It is safe to call more than once.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
