package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub")
	lfs := LocalFS{}

	require.NoError(t, lfs.MkdirAll(dir, 0o755))
	f, err := lfs.CreateTemp(dir, "blob.tmp-*")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	target := filepath.Join(dir, "blob")
	require.NoError(t, lfs.Rename(f.Name(), target))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, lfs.Remove(target))
	assert.NoFileExists(t, target)
}

func TestFaultyFS_Limit(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.SetLimit(8)

	f, err := ffs.CreateTemp(t.TempDir(), "a.tmp-*")
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("12345"))
	require.NoError(t, err)
	_, err = f.Write([]byte("67890"))
	assert.ErrorIs(t, err, ErrNoSpace)
	assert.Equal(t, int64(5), ffs.Written())
}

func TestFaultyFS_Rules(t *testing.T) {
	dir := t.TempDir()
	ffs := NewFaultyFS(nil)
	ffs.AddRule("sync", Fault{FailAfterBytes: -1, FailOnSync: true})
	ffs.AddRule("short", Fault{FailAfterBytes: 2})
	ffs.AddRule("final", Fault{FailAfterBytes: -1, FailOnRename: true})

	f, err := ffs.CreateTemp(dir, "sync.tmp-*")
	require.NoError(t, err)
	assert.ErrorIs(t, f.Sync(), ErrInjected)
	require.NoError(t, f.Close())

	g, err := ffs.CreateTemp(dir, "short.tmp-*")
	require.NoError(t, err)
	_, err = g.Write([]byte("abc"))
	assert.ErrorIs(t, err, ErrInjected)
	require.NoError(t, g.Close())

	assert.ErrorIs(t, ffs.Rename(f.Name(), filepath.Join(dir, "final")), ErrInjected)
	require.NoError(t, ffs.Rename(f.Name(), filepath.Join(dir, "other")))
}
