package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	kfs "github.com/alwayslove2013/knowhere/internal/fs"
	"github.com/alwayslove2013/knowhere/internal/mmap"
)

// LocalStore implements BlobStore on the local file system.
type LocalStore struct {
	root string
	fsys kfs.FileSystem
}

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithFileSystem routes writes, renames and removals through fsys.
func WithFileSystem(fsys kfs.FileSystem) LocalOption {
	return func(s *LocalStore) {
		if fsys != nil {
			s.fsys = fsys
		}
	}
}

// NewLocalStore creates a new LocalStore rooted at the given directory.
func NewLocalStore(root string, opts ...LocalOption) *LocalStore {
	s := &LocalStore{root: root, fsys: kfs.Default}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open maps the blob read-only.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	m, err := mmap.Open(s.path(name))
	if err != nil {
		return nil, err
	}
	_ = m.Advise(mmap.AccessSequential)
	return &localBlob{m: m}, nil
}

// Create writes to a temp file in the target directory that is renamed
// into place on Close.
func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	path := s.path(name)
	if err := s.fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := s.fsys.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &localWritableBlob{fsys: s.fsys, f: f, path: path}, nil
}

// Put writes a blob atomically.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.(Abortable).Abort()
		return err
	}
	return w.Close()
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := s.fsys.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.Contains(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			names = append(names, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

type localBlob struct {
	m *mmap.Mapping
}

func (b *localBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return b.m.ReadAt(p, off)
}

func (b *localBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	data := b.m.Bytes()
	if off < 0 || off > int64(len(data)) {
		return nil, io.EOF
	}
	end := min(off+length, int64(len(data)))
	return io.NopCloser(bytes.NewReader(data[off:end])), nil
}

func (b *localBlob) Close() error { return b.m.Close() }

func (b *localBlob) Size() int64 { return int64(b.m.Size()) }

func (b *localBlob) Bytes() ([]byte, error) {
	data := b.m.Bytes()
	if data == nil && b.m.Size() > 0 {
		return nil, mmap.ErrClosed
	}
	return data, nil
}

type localWritableBlob struct {
	fsys kfs.FileSystem
	f    kfs.File
	path string
	done bool
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w *localWritableBlob) Sync() error {
	return w.f.Sync()
}

func (w *localWritableBlob) Close() error {
	if w.done {
		return os.ErrClosed
	}
	w.done = true
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = w.fsys.Remove(w.f.Name())
		return err
	}
	if err := w.f.Close(); err != nil {
		_ = w.fsys.Remove(w.f.Name())
		return err
	}
	if err := w.fsys.Rename(w.f.Name(), w.path); err != nil {
		_ = w.fsys.Remove(w.f.Name())
		return err
	}
	return nil
}

func (w *localWritableBlob) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.f.Close()
	return w.fsys.Remove(w.f.Name())
}
