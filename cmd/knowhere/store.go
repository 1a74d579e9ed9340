package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/alwayslove2013/knowhere/blobstore"
	"github.com/alwayslove2013/knowhere/blobstore/minio"
	"github.com/alwayslove2013/knowhere/blobstore/s3"
)

// openStore resolves a store URI.
func openStore(ctx context.Context, uri string) (blobstore.BlobStore, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("store %q: %w", uri, err)
	}
	prefix := strings.TrimPrefix(u.Path, "/")

	switch u.Scheme {
	case "", "file":
		dir := u.Host + u.Path
		if dir == "" {
			dir = "."
		}
		return blobstore.NewLocalStore(dir), nil
	case "mem":
		return blobstore.NewMemoryStore(), nil
	case "s3":
		opts := []s3.Option{s3.WithPrefix(prefix)}
		if region := u.Query().Get("region"); region != "" {
			opts = append(opts, s3.WithRegion(region))
		}
		if endpoint := u.Query().Get("endpoint"); endpoint != "" {
			opts = append(opts, s3.WithEndpoint(endpoint))
		}
		return s3.New(ctx, u.Host, opts...)
	case "minio":
		bucket, rest, _ := strings.Cut(prefix, "/")
		if bucket == "" {
			return nil, fmt.Errorf("store %q: missing bucket", uri)
		}
		store, err := minio.New(u.Host, bucket, minio.Config{
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Region:    u.Query().Get("region"),
			Secure:    u.Query().Get("secure") == "true",
			Prefix:    rest,
		})
		if err != nil {
			return nil, err
		}
		return store, store.EnsureBucket(ctx)
	default:
		return nil, fmt.Errorf("store %q: unsupported scheme %q", uri, u.Scheme)
	}
}
