package s3

import (
	"bytes"
	"context"
	"errors"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alwayslove2013/knowhere/blobstore"
)

var _ blobstore.BlobStore = (*Store)(nil)

// Store implements blobstore.BlobStore for S3.
type Store struct {
	client Client
	bucket string
	prefix string
	upload UploadConfig
}

// Options configures New.
type Options struct {
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	Upload       UploadConfig
}

// Option configures a Store created by New.
type Option func(*Options)

// WithPrefix sets the key prefix under which all blobs are stored.
func WithPrefix(prefix string) Option {
	return func(o *Options) { o.Prefix = prefix }
}

// WithRegion overrides the region from the shared AWS config.
func WithRegion(region string) Option {
	return func(o *Options) { o.Region = region }
}

// WithEndpoint points the client at an S3-compatible endpoint using
// path-style addressing.
func WithEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.Endpoint = endpoint
		o.UsePathStyle = true
	}
}

// WithUploadConfig overrides the multipart upload settings.
func WithUploadConfig(cfg UploadConfig) Option {
	return func(o *Options) { o.Upload = cfg }
}

// New creates a store from the default AWS credential chain.
func New(ctx context.Context, bucket string, optFns ...Option) (*Store, error) {
	opts := Options{Upload: DefaultUploadConfig()}
	for _, fn := range optFns {
		fn(&opts)
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	s := NewStore(client, bucket, opts.Prefix)
	s.upload = opts.Upload
	return s, nil
}

// NewStore creates a store on an existing client.
// rootPrefix is prepended to all keys (e.g. "my-db/").
func NewStore(client Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
		upload: DefaultUploadConfig(),
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return &s3Blob{
		client: s.client,
		bucket: s.bucket,
		key:    key,
		size:   aws.ToInt64(head.ContentLength),
	}, nil
}

func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	uploader := newUploader(s.client, s.upload)
	return newStreamingWritableBlob(ctx, uploader, s.bucket, s.key(name), s.upload.EnableChecksum), nil
}

// Put uploads data in a single request with a CRC32-C checksum.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(name)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if s.upload.EnableChecksum {
		input.ChecksumCRC32C = aws.String(computeCRC32C(data))
	}
	_, err := s.client.PutObject(ctx, input)
	return err
}

func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key(prefix)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			keys = append(keys, strings.TrimPrefix(rel, "/"))
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}
