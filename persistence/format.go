package persistence

import (
	"errors"

	"github.com/alwayslove2013/knowhere/internal/compress"
)

// Magic identifies dump files.
var Magic = [4]byte{'K', 'W', 'B', 'S'}

// FormatVersion is the current dump layout version.
const FormatVersion uint32 = 1

// maxSectionName bounds section names read from a file.
const maxSectionName = 1 << 10

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported format version")
	ErrTruncated      = errors.New("truncated file")
)

// FileHeader is the fixed-size header at the start of every dump.
type FileHeader struct {
	Magic       [4]byte
	Version     uint32
	Compression compress.Type
	Padding     [3]byte
	Sections    uint32
}

// SectionHeader describes one section in the table.
type SectionHeader struct {
	Name        string
	Compression compress.Type
	RawLen      uint64
	StoredLen   uint64
	Checksum    uint32
}
