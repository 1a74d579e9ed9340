// Package fs abstracts the filesystem calls made by the local blob store so
// tests can inject write, sync and rename failures.
//
// Production code uses [Default]. Tests wrap it in a [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.SetLimit(1024) // writes past 1KB fail with ErrNoSpace
//	store := blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))
package fs
