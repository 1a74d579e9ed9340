// Package blobstore abstracts where index dumps live.
//
// A BlobStore reads and writes whole named blobs. Implementations must be
// safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, reads are memory-mapped
//   - MemoryStore: in-process map, for tests and short-lived tools
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// Remote backends implement ReadRange so a dump streams from a single
// ranged GET instead of many small ReadAt calls.
package blobstore
