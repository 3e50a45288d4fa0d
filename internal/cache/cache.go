// Package cache is the persisted content-addressed store mapping a
// normalized-input hash to a prior verification outcome. Entries expire
// after a freshness window and the store is bounded: beyond the configured
// entry count the oldest entries are evicted first.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/normalize"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/types"
)

const (
	// envelopeVersion guards against format drift across releases.
	envelopeVersion = 1

	// Freshness is the staleness window: entries older than this are
	// treated as misses even when present.
	Freshness = 24 * time.Hour

	// flushEvery triggers a durable sync after this many insertions.
	flushEvery = 100

	hotSize = 1024
)

type envelope struct {
	Version   int                      `json:"v"`
	Result    types.VerificationResult `json:"result"`
	Timestamp time.Time                `json:"ts"`
}

type Options struct {
	Dir        string
	MaxEntries int
	InMemory   bool
	Logger     *slog.Logger
}

// Store is safe for concurrent use; hot entries are served from an
// in-process LRU so repeat hits within a run never touch disk.
type Store struct {
	db         *badger.DB
	hot        *lru.Cache[string, envelope]
	maxEntries int
	logger     *slog.Logger

	mu      sync.Mutex
	inserts int
	now     func() time.Time
}

// Open loads or creates the persisted store. A corrupted store is
// non-fatal: it is discarded with a warning and the run proceeds empty.
func Open(opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openBadger(opts)
	if err != nil && !opts.InMemory {
		// A store held open by another process is healthy, not corrupt;
		// deleting it out from under the holder must never happen.
		if isDirLocked(err) {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		logger.Warn("cache store corrupted, starting fresh", "dir", opts.Dir, "error", err)
		if rmErr := os.RemoveAll(opts.Dir); rmErr != nil {
			return nil, fmt.Errorf("discard corrupted cache: %w", rmErr)
		}
		db, err = openBadger(opts)
	}
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	hot, err := lru.New[string, envelope](hotSize)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{
		db:         db,
		hot:        hot,
		maxEntries: opts.MaxEntries,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// isDirLocked reports whether the open failed because another process
// holds the store's directory lock.
func isDirLocked(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "directory lock")
}

func openBadger(opts Options) (*badger.DB, error) {
	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(opts.Dir)
	}
	badgerOpts = badgerOpts.WithLogger(nil)
	return badger.Open(badgerOpts)
}

// Key derives the content address for a (declaration, proof) pair.
func Key(declaration, proof string) string {
	return normalize.Hash(declaration, proof)
}

// Get returns the cached result for key. A hit requires both presence and
// freshness; stale or unreadable entries are misses.
func (s *Store) Get(key string) (types.VerificationResult, bool) {
	if env, ok := s.hot.Get(key); ok {
		if s.fresh(env) {
			return env.Result, true
		}
		s.hot.Remove(key)
	}

	var env envelope
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		})
	})
	if err != nil || env.Version != envelopeVersion || !s.fresh(env) {
		return types.VerificationResult{}, false
	}
	s.hot.Add(key, env)
	return env.Result, true
}

func (s *Store) fresh(env envelope) bool {
	return env.Version == envelopeVersion && s.now().Sub(env.Timestamp) < Freshness
}

// Put inserts or overwrites the result under key. Every flushEvery
// insertions the store is synced and the size bound enforced.
func (s *Store) Put(key string, result types.VerificationResult) error {
	env := envelope{Version: envelopeVersion, Result: result, Timestamp: s.now()}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	s.hot.Add(key, env)

	s.mu.Lock()
	s.inserts++
	needFlush := s.inserts%flushEvery == 0
	s.mu.Unlock()
	if needFlush {
		if err := s.Flush(); err != nil {
			s.logger.Warn("periodic cache flush failed", "error", err)
		}
	}
	return nil
}

// Flush makes all writes durable and evicts oldest entries beyond the
// configured bound.
func (s *Store) Flush() error {
	if err := s.enforceBound(); err != nil {
		return err
	}
	return s.db.Sync()
}

func (s *Store) enforceBound() error {
	if s.maxEntries <= 0 {
		return nil
	}
	type keyed struct {
		key string
		ts  time.Time
	}
	var all []keyed
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var env envelope
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &env)
			}); err != nil {
				continue
			}
			all = append(all, keyed{key: string(item.KeyCopy(nil)), ts: env.Timestamp})
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(all) <= s.maxEntries {
		return nil
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts.Before(all[j].ts) })
	evict := all[:len(all)-s.maxEntries]
	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range evict {
			if err := txn.Delete([]byte(k.key)); err != nil {
				return err
			}
			s.hot.Remove(k.key)
		}
		return nil
	})
}

// Len counts the persisted entries, stale ones included.
func (s *Store) Len() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Clear removes every entry.
func (s *Store) Clear() error {
	s.hot.Purge()
	return s.db.DropAll()
}

// Close flushes and releases the store.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		s.logger.Warn("cache flush on close failed", "error", err)
	}
	return s.db.Close()
}
