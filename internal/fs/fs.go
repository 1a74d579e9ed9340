package fs

import (
	"io"
	"os"
)

// File is a file opened for writing.
type File interface {
	io.WriteCloser
	Name() string
	Sync() error
}

// FileSystem is the subset of the os package used to publish blobs.
type FileSystem interface {
	CreateTemp(dir, pattern string) (File, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	MkdirAll(path string, perm os.FileMode) error
}

// LocalFS implements FileSystem using the os package.
type LocalFS struct{}

func (LocalFS) CreateTemp(dir, pattern string) (File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (LocalFS) Remove(name string) error                     { return os.Remove(name) }
func (LocalFS) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (LocalFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

// Default is the local file system.
var Default FileSystem = LocalFS{}
