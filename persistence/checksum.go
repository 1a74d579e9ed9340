package persistence

import (
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// CRC32Table is the Castagnoli table used for every checksum in a dump.
var CRC32Table = crc32.MakeTable(crc32.Castagnoli)

// ComputeChecksum returns the CRC32-C of data.
func ComputeChecksum(data []byte) uint32 {
	return crc32.Checksum(data, CRC32Table)
}

// ChecksumWriter wraps an io.Writer and computes a running CRC32-C.
type ChecksumWriter struct {
	w    io.Writer
	hash hash.Hash32
}

// NewChecksumWriter creates a new checksumming writer.
func NewChecksumWriter(w io.Writer) *ChecksumWriter {
	return &ChecksumWriter{w: w, hash: crc32.New(CRC32Table)}
}

func (cw *ChecksumWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.hash.Write(p[:n])
	return n, err
}

// Sum returns the checksum of everything written so far.
func (cw *ChecksumWriter) Sum() uint32 { return cw.hash.Sum32() }

// ChecksumReader wraps an io.Reader and computes a running CRC32-C.
type ChecksumReader struct {
	r    io.Reader
	hash hash.Hash32
}

// NewChecksumReader creates a new checksumming reader.
func NewChecksumReader(r io.Reader) *ChecksumReader {
	return &ChecksumReader{r: r, hash: crc32.New(CRC32Table)}
}

func (cr *ChecksumReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}

// Sum returns the checksum of everything read so far.
func (cr *ChecksumReader) Sum() uint32 { return cr.hash.Sum32() }

// Verify checks the computed checksum against expected.
func (cr *ChecksumReader) Verify(expected uint32) error {
	if actual := cr.Sum(); actual != expected {
		return &ChecksumMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}

// ChecksumMismatchError is returned when checksum verification fails.
type ChecksumMismatchError struct {
	Section  string
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
	}
	return fmt.Sprintf("section %q: checksum mismatch: expected 0x%08x, got 0x%08x", e.Section, e.Expected, e.Actual)
}
