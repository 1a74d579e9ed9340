package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
var ErrNotFound = os.ErrNotExist

// BlobStore stores named, immutable blobs.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create starts a streaming write. The blob becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.Closer
	// ReadAt reads len(p) bytes at offset off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange streams length bytes starting at off.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.WriteCloser
	// Sync flushes buffered data where the backend supports it.
	Sync() error
}

// Mappable is implemented by blobs whose contents are already in memory.
type Mappable interface {
	// Bytes returns the contents. The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// Abortable is implemented by writable blobs that can discard a partial write.
type Abortable interface {
	Abort() error
}

// NewReader returns a sequential reader over the whole blob. Mappable blobs
// are read without copying.
func NewReader(ctx context.Context, b Blob) (io.ReadCloser, error) {
	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return b.ReadRange(ctx, 0, b.Size())
}
