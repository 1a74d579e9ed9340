package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestOpenReadClose(t *testing.T) {
	content := []byte("Hello, Mmap!")
	m, err := Open(writeFile(t, content))
	require.NoError(t, err)

	assert.Equal(t, len(content), m.Size())
	assert.Equal(t, content, m.Bytes())
	assert.NoError(t, m.Advise(AccessSequential))

	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "Mmap!", string(buf))

	n, err = m.ReadAt(make([]byte, 10), 100)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	partial := make([]byte, 10)
	n, err = m.ReadAt(partial, 7)
	assert.Equal(t, 5, n)
	assert.Equal(t, io.EOF, err)

	_, err = m.ReadAt(buf, -1)
	assert.Equal(t, ErrInvalidOffset, err)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
	_, err = m.ReadAt(buf, 0)
	assert.Equal(t, ErrClosed, err)
	assert.Equal(t, ErrClosed, m.Advise(AccessRandom))
}

func TestOpenEmptyAndMissing(t *testing.T) {
	m, err := Open(writeFile(t, nil))
	require.NoError(t, err)
	assert.Equal(t, 0, m.Size())
	assert.NoError(t, m.Advise(AccessWillNeed))
	assert.NoError(t, m.Close())

	_, err = Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
