package index

import (
	"encoding/binary"
	"encoding/json"
	"math"

	"github.com/alwayslove2013/knowhere/distance"
)

// SectionMeta is the name of the JSON header section every family writes.
const SectionMeta = "meta"

// Meta is the header section shared by all families.
type Meta struct {
	Type    string          `json:"type"`
	Version Version         `json:"version"`
	Dim     int             `json:"dim"`
	Metric  distance.Metric `json:"metric_type"`
	Count   int64           `json:"count"`
	NList   int             `json:"nlist,omitempty"`
	SSize   int             `json:"ssize,omitempty"`
}

// EncodeMeta appends the meta section to bs.
func EncodeMeta(bs *BinarySet, m Meta) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	bs.Append(SectionMeta, data)
	return nil
}

// DecodeMeta reads the meta section of bs and checks it was written by the
// family typ with a version running can read.
func DecodeMeta(bs *BinarySet, typ string, running Version) (Meta, error) {
	data, err := bs.Require(SectionMeta)
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, CorruptWrap(SectionMeta, err)
	}
	if err := CheckLoadable(m.Version, running); err != nil {
		return Meta{}, err
	}
	if m.Type != typ {
		return Meta{}, Corrupt(SectionMeta, "written by %q, loading as %q", m.Type, typ)
	}
	if m.Dim <= 0 || m.Dim > MaxDim {
		return Meta{}, Corrupt(SectionMeta, "invalid dim %d", m.Dim)
	}
	if m.Count < 0 || m.Count > MaxRows {
		return Meta{}, Corrupt(SectionMeta, "invalid count %d", m.Count)
	}
	if m.NList < 0 || m.NList > MaxNList {
		return Meta{}, Corrupt(SectionMeta, "invalid nlist %d", m.NList)
	}
	return m, nil
}

// Writer appends little-endian values to a buffer.
type Writer struct {
	buf []byte
}

// NewWriter creates a writer with capacity hint n bytes.
func NewWriter(n int) *Writer {
	return &Writer{buf: make([]byte, 0, n)}
}

func (w *Writer) Uint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) Int64s(vs []int64) {
	for _, v := range vs {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
	}
}

func (w *Writer) Float32s(vs []float32) {
	for _, v := range vs {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
	}
}

// Bytes returns the encoded buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reader decodes little-endian values from a section. The first failure is
// sticky and reported by Err.
type Reader struct {
	section string
	data    []byte
	err     error
}

// NewReader reads from the section named section.
func NewReader(section string, data []byte) *Reader {
	return &Reader{section: section, data: data}
}

// take consumes n elements of size bytes each. n is checked against the
// remaining bytes before multiplying so a hostile count cannot overflow.
func (r *Reader) take(n, size int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > len(r.data)/size {
		r.err = Corrupt(r.section, "truncated: need %d elements of %d bytes, have %d bytes", n, size, len(r.data))
		return nil
	}
	b := r.data[:n*size]
	r.data = r.data[n*size:]
	return b
}

func (r *Reader) Uint32() uint32 {
	b := r.take(1, 4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *Reader) Int64s(n int) []int64 {
	b := r.take(n, 8)
	if b == nil {
		return nil
	}
	out := make([]int64, n)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out
}

func (r *Reader) Float32s(n int) []float32 {
	b := r.take(n, 4)
	if b == nil {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// Done fails unless every byte was consumed.
func (r *Reader) Done() error {
	if r.err == nil && len(r.data) != 0 {
		r.err = Corrupt(r.section, "%d trailing bytes", len(r.data))
	}
	return r.err
}

// Err returns the first decoding error.
func (r *Reader) Err() error {
	return r.err
}
