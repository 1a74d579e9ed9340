package knowhere

import (
	"context"
	"errors"
	"io"

	"github.com/alwayslove2013/knowhere/blobstore"
	"github.com/alwayslove2013/knowhere/persistence"
)

// Dump writes bs to the local file path atomically.
func Dump(ctx context.Context, bs *BinarySet, path string, opts persistence.Options) (int64, error) {
	var n int64
	err := persistence.SaveToFile(path, func(w io.Writer) error {
		var err error
		n, err = persistence.Write(ctx, w, bs, opts)
		return err
	})
	return n, err
}

// Load reads a BinarySet written by Dump.
func Load(ctx context.Context, path string, opts persistence.Options) (*BinarySet, error) {
	var bs *BinarySet
	err := persistence.LoadFromFile(path, func(r io.Reader) error {
		var err error
		bs, err = persistence.Read(ctx, r, opts)
		return err
	})
	return bs, err
}

// DumpTo writes bs as the blob name of store. A failed write is aborted
// when the store supports it, so no partial blob becomes visible.
func DumpTo(ctx context.Context, store blobstore.BlobStore, name string, bs *BinarySet, opts persistence.Options) (int64, error) {
	w, err := store.Create(ctx, name)
	if err != nil {
		return 0, err
	}

	n, err := persistence.Write(ctx, w, bs, opts)
	if err == nil {
		err = w.Sync()
	}
	if err != nil {
		if a, ok := w.(blobstore.Abortable); ok {
			return n, errors.Join(err, a.Abort())
		}
		return n, errors.Join(err, w.Close())
	}
	return n, w.Close()
}

// LoadFrom reads the blob name of store written by DumpTo.
func LoadFrom(ctx context.Context, store blobstore.BlobStore, name string, opts persistence.Options) (*BinarySet, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	r, err := blobstore.NewReader(ctx, b)
	if err != nil {
		return nil, err
	}
	bs, err := persistence.Read(ctx, r, opts)
	return bs, errors.Join(err, r.Close())
}

// Save serializes the index and dumps it to path.
func (i *Index) Save(ctx context.Context, path string, opts persistence.Options) error {
	opts = i.persistOptions(opts)

	i.mu.RLock()
	defer i.mu.RUnlock()

	bs, err := i.serialize(ctx)
	if err != nil {
		return err
	}
	n, err := Dump(ctx, bs, path, opts)
	i.logger.LogDump(ctx, path, n, err)
	return err
}

// Open loads the dump at path into the index.
func (i *Index) Open(ctx context.Context, path string, opts persistence.Options) error {
	bs, err := Load(ctx, path, i.persistOptions(opts))
	i.logger.LogLoad(ctx, path, err)
	if err != nil {
		return err
	}
	return i.Deserialize(ctx, bs)
}

// DumpTo serializes the index and writes it as the blob name of store.
func (i *Index) DumpTo(ctx context.Context, store blobstore.BlobStore, name string, opts persistence.Options) error {
	opts = i.persistOptions(opts)

	i.mu.RLock()
	defer i.mu.RUnlock()

	bs, err := i.serialize(ctx)
	if err != nil {
		return err
	}
	n, err := DumpTo(ctx, store, name, bs, opts)
	i.logger.LogDump(ctx, name, n, err)
	return err
}

// LoadFrom reads the blob name of store into the index.
func (i *Index) LoadFrom(ctx context.Context, store blobstore.BlobStore, name string, opts persistence.Options) error {
	bs, err := LoadFrom(ctx, store, name, i.persistOptions(opts))
	i.logger.LogLoad(ctx, name, err)
	if err != nil {
		return err
	}
	return i.Deserialize(ctx, bs)
}

func (i *Index) persistOptions(opts persistence.Options) persistence.Options {
	if opts.Resources == nil {
		opts.Resources = i.opts.resources
	}
	return opts
}
