// Package s3 stores index dumps in Amazon S3.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	err = idx.DumpTo(ctx, store, "ivf.kwbs", persistence.Options{})
//
// # Features
//
//   - Ranged GETs, so Load streams a dump with a single request
//   - Multipart uploads with CRC32-C checksums for large dumps
//   - Automatic pagination for listing
//   - Custom endpoints for S3-compatible services
package s3
