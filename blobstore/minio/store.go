package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/alwayslove2013/knowhere/blobstore"
)

var _ blobstore.BlobStore = (*Store)(nil)

// ErrAborted is the error seen by an upload whose blob was aborted.
var ErrAborted = errors.New("upload aborted")

// Config holds connection settings for New.
type Config struct {
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool
	Prefix    string
}

// Store implements blobstore.BlobStore on a MinIO bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// New connects to endpoint with static credentials.
func New(endpoint, bucket string, cfg Config) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}
	return NewStore(client, bucket, cfg.Prefix), nil
}

// NewStore wraps client. rootPrefix is prepended to all keys.
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: rootPrefix}
}

// EnsureBucket creates the bucket when it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil || ok {
		return err
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return &blob{client: s.client, bucket: s.bucket, key: key, size: info.Size}, nil
}

func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

// Create streams the blob with an unknown-size multipart upload.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	key := s.key(name)
	pr, pw := io.Pipe()
	w := &writableBlob{pw: pw, done: make(chan error, 1)}

	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, key, pr, -1, minio.PutObjectOptions{})
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(prefix),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		name := strings.TrimPrefix(strings.TrimPrefix(obj.Key, s.prefix), "/")
		if name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

type blob struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
}

func (b *blob) Size() int64 { return b.size }

func (b *blob) Close() error { return nil }

func (b *blob) object(ctx context.Context, off, length int64) (*minio.Object, int64, error) {
	if off >= b.size {
		return nil, 0, io.EOF
	}
	end := min(off+length, b.size) - 1
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, end); err != nil {
		return nil, 0, err
	}
	obj, err := b.client.GetObject(ctx, b.bucket, b.key, opts)
	if err != nil {
		return nil, 0, err
	}
	return obj, end - off + 1, nil
}

func (b *blob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	obj, want, err := b.object(ctx, off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer obj.Close()

	n, err := io.ReadFull(obj, p[:want])
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *blob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	obj, _, err := b.object(ctx, off, length)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

type writableBlob struct {
	pw   *io.PipeWriter
	done chan error

	mu       sync.Mutex
	closed   bool
	closeErr error
}

func (w *writableBlob) Write(p []byte) (int, error) { return w.pw.Write(p) }

func (w *writableBlob) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return w.closeErr
	}
	w.closed = true
	if err := w.pw.Close(); err != nil {
		w.closeErr = err
		return err
	}
	w.closeErr = <-w.done
	return w.closeErr
}

func (w *writableBlob) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	_ = w.pw.CloseWithError(ErrAborted)
	<-w.done
	return nil
}

func (w *writableBlob) Sync() error { return nil }
