package index

import "slices"

// BinarySet is an ordered collection of named binary sections.
type BinarySet struct {
	names    []string
	sections map[string][]byte
}

// NewBinarySet creates an empty set.
func NewBinarySet() *BinarySet {
	return &BinarySet{sections: make(map[string][]byte)}
}

// Append adds or replaces the section name.
func (b *BinarySet) Append(name string, data []byte) {
	if _, ok := b.sections[name]; !ok {
		b.names = append(b.names, name)
	}
	b.sections[name] = data
}

// Get returns the section name.
func (b *BinarySet) Get(name string) ([]byte, bool) {
	data, ok := b.sections[name]
	return data, ok
}

// Require returns the section name or a *CorruptError when it is missing.
func (b *BinarySet) Require(name string) ([]byte, error) {
	data, ok := b.sections[name]
	if !ok {
		return nil, Corrupt(name, "missing section")
	}
	return data, nil
}

// Names returns section names in insertion order.
func (b *BinarySet) Names() []string {
	return slices.Clone(b.names)
}

// Len returns the number of sections.
func (b *BinarySet) Len() int {
	return len(b.names)
}

// Size returns the total payload size in bytes.
func (b *BinarySet) Size() int64 {
	var n int64
	for _, data := range b.sections {
		n += int64(len(data))
	}
	return n
}
