// Package minio stores index dumps in MinIO or any S3-compatible service
// through the MinIO client.
//
//	store, err := minio.New("localhost:9000", "indexes", minio.Config{
//	    AccessKey: "minioadmin",
//	    SecretKey: "minioadmin",
//	    Prefix:    "knowhere/",
//	})
//
//	err = idx.DumpTo(ctx, store, "ivf.kwbs", persistence.Options{})
//
// Use NewStore to wrap an already configured *minio.Client.
package minio
