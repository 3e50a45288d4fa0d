package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Cosmicwanderer1/Lean4-RSR/internal/logging"
	"github.com/Cosmicwanderer1/Lean4-RSR/internal/types"
)

func newTestStore(t *testing.T, maxEntries int) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true, MaxEntries: maxEntries, Logger: logging.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func successResult(taskID string) types.VerificationResult {
	return types.VerificationResult{
		TaskID:         taskID,
		Solution:       "theorem t : 1 = 1 := rfl",
		NormalizedHash: "abc",
		Length:         24,
		Status:         types.StatusSuccess,
	}
}

func TestKeyStableUnderCommentsAndWhitespace(t *testing.T) {
	t.Parallel()

	a := Key("theorem t : 1 = 1", "by rfl")
	b := Key("theorem t : 1 = 1", "by  rfl  -- trivial")
	require.Equal(t, a, b)
}

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 100)
	key := Key("theorem t : 1 = 1", "by rfl")
	require.NoError(t, s.Put(key, successResult("t1")))

	got, ok := s.Get(key)
	require.True(t, ok)
	require.Equal(t, "t1", got.TaskID)
	require.Equal(t, types.StatusSuccess, got.Status)
}

func TestGetMissesWhenStale(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 100)
	key := Key("theorem t : 1 = 1", "by rfl")
	require.NoError(t, s.Put(key, successResult("t1")))

	s.now = func() time.Time { return time.Now().Add(Freshness + time.Minute) }
	_, ok := s.Get(key)
	require.False(t, ok)
}

func TestEnforceBoundEvictsOldestFirst(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 3)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		stamp := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return stamp }
		require.NoError(t, s.Put(fmt.Sprintf("key-%d", i), successResult(fmt.Sprintf("t%d", i))))
	}
	s.now = time.Now
	require.NoError(t, s.Flush())

	n, err := s.Len()
	require.NoError(t, err)
	require.Equal(t, 3, n)

	// The two oldest are gone, the three newest remain.
	_, ok := s.Get("key-0")
	require.False(t, ok)
	_, ok = s.Get("key-1")
	require.False(t, ok)
	for i := 2; i < 5; i++ {
		_, ok := s.Get(fmt.Sprintf("key-%d", i))
		require.True(t, ok)
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, 100)
	require.NoError(t, s.Put("k", successResult("t1")))
	require.NoError(t, s.Clear())

	n, err := s.Len()
	require.NoError(t, err)
	require.Equal(t, 0, n)
	_, ok := s.Get("k")
	require.False(t, ok)
}

func TestOpenDiscardsCorruptedStore(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	// A truncated manifest makes badger refuse to open the directory.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MANIFEST"), []byte("garbage"), 0o644))

	s, err := Open(Options{Dir: dir, MaxEntries: 10, Logger: logging.Discard()})
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Len()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestOpenRefusesLockHeldStore(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "cache")
	first, err := Open(Options{Dir: dir, MaxEntries: 10, Logger: logging.Discard()})
	require.NoError(t, err)
	defer first.Close()
	require.NoError(t, first.Put("k", successResult("t1")))

	// A second open against a live store must fail, never wipe it.
	_, err = Open(Options{Dir: dir, MaxEntries: 10, Logger: logging.Discard()})
	require.Error(t, err)

	got, ok := first.Get("k")
	require.True(t, ok)
	require.Equal(t, "t1", got.TaskID)
	n, err := first.Len()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "cache")
	s, err := Open(Options{Dir: dir, MaxEntries: 10, Logger: logging.Discard()})
	require.NoError(t, err)
	require.NoError(t, s.Put("k", successResult("t1")))
	require.NoError(t, s.Close())

	s2, err := Open(Options{Dir: dir, MaxEntries: 10, Logger: logging.Discard()})
	require.NoError(t, err)
	defer s2.Close()
	got, ok := s2.Get("k")
	require.True(t, ok)
	require.Equal(t, "t1", got.TaskID)
}
