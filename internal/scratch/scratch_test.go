package scratch

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePrefersGivenDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	got, err := Resolve(dir)
	require.NoError(t, err)
	require.Equal(t, dir, got)
}

func TestResolveFallsBackWhenPreferredNotWritable(t *testing.T) {
	t.Parallel()

	got, err := Resolve(filepath.Join(string(filepath.Separator), "proc", "cannot_write_here"))
	require.NoError(t, err)
	require.NotEmpty(t, got)
	require.True(t, filepath.IsAbs(got))
}

func TestFileNameUniquePerAttempt(t *testing.T) {
	t.Parallel()

	code := "theorem t : 1 = 1 := rfl"
	a := FileName(code)
	b := FileName(code)
	require.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, "verify_"))
	require.True(t, strings.HasSuffix(a, ".lean"))
}

func TestFilePathStaysInDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path, err := FilePath(dir, "theorem t : 1 = 1 := rfl")
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(path))
}
