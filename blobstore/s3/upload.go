package s3

import (
	"context"
	"encoding/base64"
	"errors"
	"hash/crc32"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrAborted is returned by the upload of a blob that was aborted.
var ErrAborted = errors.New("upload aborted")

// UploadConfig configures multipart uploads.
type UploadConfig struct {
	// PartSize is the minimum part size. Default: 8MB.
	PartSize int64

	// Concurrency is the number of concurrent part uploads. Default: 5.
	Concurrency int

	// EnableChecksum enables CRC32-C integrity validation. Default: true.
	EnableChecksum bool
}

// DefaultUploadConfig returns the default upload settings.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:       8 * 1024 * 1024,
		Concurrency:    5,
		EnableChecksum: true,
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
	})
}

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// computeCRC32C returns the CRC32-C of data in the base64 big-endian form S3 expects.
func computeCRC32C(data []byte) string {
	sum := crc32.Checksum(data, crc32cTable)
	b := []byte{byte(sum >> 24), byte(sum >> 16), byte(sum >> 8), byte(sum)}
	return base64.StdEncoding.EncodeToString(b)
}

// streamingWritableBlob pipes writes into a background multipart upload.
type streamingWritableBlob struct {
	pw   *io.PipeWriter
	done chan error

	mu       sync.Mutex
	closed   bool
	closeErr error
}

func newStreamingWritableBlob(ctx context.Context, uploader *manager.Uploader, bucket, key string, checksum bool) *streamingWritableBlob {
	pr, pw := io.Pipe()
	b := &streamingWritableBlob{pw: pw, done: make(chan error, 1)}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   pr,
	}
	if checksum {
		input.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}

	go func() {
		// The uploader aborts the multipart upload when the body fails.
		_, err := uploader.Upload(ctx, input)
		_ = pr.CloseWithError(err)
		b.done <- err
	}()
	return b
}

func (b *streamingWritableBlob) Write(p []byte) (int, error) {
	return b.pw.Write(p)
}

// Close finishes the upload and waits for it.
func (b *streamingWritableBlob) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return b.closeErr
	}
	b.closed = true
	if err := b.pw.Close(); err != nil {
		b.closeErr = err
		return err
	}
	b.closeErr = <-b.done
	return b.closeErr
}

// Abort fails the upload body so nothing is committed.
func (b *streamingWritableBlob) Abort() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	_ = b.pw.CloseWithError(ErrAborted)
	<-b.done
	return nil
}

// Sync is a no-op; data is only committed on Close.
func (b *streamingWritableBlob) Sync() error { return nil }
