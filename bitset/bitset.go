// Package bitset provides the exclusion filter accepted by Search.
//
// A set bit means the id is filtered out. A nil *Bitset excludes nothing, so
// callers that do not filter can pass nil.
package bitset

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Bitset is a set of excluded vector ids backed by a 64-bit roaring bitmap.
//
// A Bitset is safe for concurrent reads. Mutation while a search is using it
// is not supported.
type Bitset struct {
	rb *roaring64.Bitmap
}

// New creates an empty bitset.
func New() *Bitset {
	return &Bitset{rb: roaring64.New()}
}

// Of creates a bitset containing ids. Negative ids are ignored.
func Of(ids ...int64) *Bitset {
	b := New()
	for _, id := range ids {
		b.Set(id)
	}
	return b
}

// FromBools creates a bitset where id i is excluded when excluded[i] is true.
func FromBools(excluded []bool) *Bitset {
	b := New()
	for i, ex := range excluded {
		if ex {
			b.rb.Add(uint64(i))
		}
	}
	return b
}

// FromBytes decodes a packed bit array where bit i%8 of byte i/8 marks id i.
// Only the first n bits are read.
func FromBytes(data []byte, n int) *Bitset {
	b := New()
	n = min(n, len(data)*8)
	for i := 0; i < n; i++ {
		if data[i>>3]&(1<<(i&7)) != 0 {
			b.rb.Add(uint64(i))
		}
	}
	return b
}

// Set marks id as excluded.
func (b *Bitset) Set(id int64) {
	if id < 0 {
		return
	}
	b.rb.Add(uint64(id))
}

// Clear removes id from the set.
func (b *Bitset) Clear(id int64) {
	if id < 0 {
		return
	}
	b.rb.Remove(uint64(id))
}

// Test reports whether id is excluded.
func (b *Bitset) Test(id int64) bool {
	if b == nil || id < 0 {
		return false
	}
	return b.rb.Contains(uint64(id))
}

// Count returns the number of excluded ids.
func (b *Bitset) Count() uint64 {
	if b == nil {
		return 0
	}
	return b.rb.GetCardinality()
}

// IsEmpty reports whether nothing is excluded.
func (b *Bitset) IsEmpty() bool {
	return b == nil || b.rb.IsEmpty()
}

// Clone returns a deep copy of the bitset.
func (b *Bitset) Clone() *Bitset {
	if b == nil {
		return nil
	}
	return &Bitset{rb: b.rb.Clone()}
}

// All iterates the excluded ids in ascending order.
func (b *Bitset) All() iter.Seq[int64] {
	return func(yield func(int64) bool) {
		if b == nil {
			return
		}
		it := b.rb.Iterator()
		for it.HasNext() {
			if !yield(int64(it.Next())) {
				return
			}
		}
	}
}

// ToBytes encodes the first n ids as a packed bit array.
func (b *Bitset) ToBytes(n int) []byte {
	out := make([]byte, (n+7)/8)
	for id := range b.All() {
		if id >= int64(n) {
			break
		}
		out[id>>3] |= 1 << (id & 7)
	}
	return out
}

// MarshalBinary encodes the bitset in the portable roaring format.
func (b *Bitset) MarshalBinary() ([]byte, error) {
	return b.rb.MarshalBinary()
}

// UnmarshalBinary decodes data produced by MarshalBinary.
func (b *Bitset) UnmarshalBinary(data []byte) error {
	rb := roaring64.New()
	if err := rb.UnmarshalBinary(data); err != nil {
		return err
	}
	b.rb = rb
	return nil
}
