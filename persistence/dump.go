package persistence

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alwayslove2013/knowhere/index"
	"github.com/alwayslove2013/knowhere/internal/compress"
	"github.com/alwayslove2013/knowhere/resource"
)

// fileSection is the section name used in errors about the file itself.
const fileSection = "dump"

// maxSectionLen bounds lengths read from the table before allocating.
const maxSectionLen = 1 << 40

// Options configures Write and Read.
type Options struct {
	// Compression is applied per section when it shrinks the payload.
	Compression compress.Type

	// Resources throttles IO and parallelizes section encoding.
	// A nil controller means unlimited IO on GOMAXPROCS workers.
	Resources *resource.Controller
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Write encodes bs to w and returns the number of bytes written.
func Write(ctx context.Context, w io.Writer, bs *index.BinarySet, opts Options) (int64, error) {
	if !opts.Compression.Valid() {
		return 0, fmt.Errorf("unknown compression %v", opts.Compression)
	}
	names := bs.Names()
	headers := make([]SectionHeader, len(names))
	payloads := make([][]byte, len(names))

	err := opts.Resources.BuildPool().ParallelFor(ctx, len(names), func(_ context.Context, i int) error {
		raw, _ := bs.Get(names[i])
		stored, used, err := compress.Encode(raw, opts.Compression)
		if err != nil {
			return fmt.Errorf("section %q: %w", names[i], err)
		}
		headers[i] = SectionHeader{
			Name:        names[i],
			Compression: used,
			RawLen:      uint64(len(raw)),
			StoredLen:   uint64(len(stored)),
			Checksum:    ComputeChecksum(raw),
		}
		payloads[i] = stored
		return nil
	})
	if err != nil {
		return 0, err
	}

	cw := &countingWriter{w: resource.NewRateLimitedWriter(ctx, w, opts.Resources)}
	header := FileHeader{
		Magic:       Magic,
		Version:     FormatVersion,
		Compression: opts.Compression,
		Sections:    uint32(len(names)),
	}
	if err := binary.Write(cw, binary.LittleEndian, &header); err != nil {
		return cw.n, err
	}

	tw := NewChecksumWriter(cw)
	for _, h := range headers {
		if err := writeSectionHeader(tw, h); err != nil {
			return cw.n, err
		}
	}
	if err := binary.Write(cw, binary.LittleEndian, tw.Sum()); err != nil {
		return cw.n, err
	}

	for _, p := range payloads {
		if err := ctx.Err(); err != nil {
			return cw.n, err
		}
		if _, err := cw.Write(p); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

func writeSectionHeader(w io.Writer, h SectionHeader) error {
	if len(h.Name) > maxSectionName {
		return fmt.Errorf("section name too long: %d bytes", len(h.Name))
	}
	buf := make([]byte, 0, 2+len(h.Name)+1+8+8+4)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(h.Name)))
	buf = append(buf, h.Name...)
	buf = append(buf, byte(h.Compression))
	buf = binary.LittleEndian.AppendUint64(buf, h.RawLen)
	buf = binary.LittleEndian.AppendUint64(buf, h.StoredLen)
	buf = binary.LittleEndian.AppendUint32(buf, h.Checksum)
	_, err := w.Write(buf)
	return err
}

// ReadHeader reads the file header and section table from r. r is left
// positioned at the first payload.
func ReadHeader(r io.Reader) (FileHeader, []SectionHeader, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return header, nil, corrupt(err)
	}
	if header.Magic != Magic {
		return header, nil, index.CorruptWrap(fileSection, fmt.Errorf("%w: %q", ErrInvalidMagic, header.Magic[:]))
	}
	if header.Version == 0 || header.Version > FormatVersion {
		return header, nil, index.CorruptWrap(fileSection, fmt.Errorf("%w: %d", ErrInvalidVersion, header.Version))
	}

	tr := NewChecksumReader(r)
	var sections []SectionHeader
	for i := uint32(0); i < header.Sections; i++ {
		h, err := readSectionHeader(tr)
		if err != nil {
			return header, nil, corrupt(err)
		}
		sections = append(sections, h)
	}
	var sum uint32
	if err := binary.Read(r, binary.LittleEndian, &sum); err != nil {
		return header, nil, corrupt(err)
	}
	if err := tr.Verify(sum); err != nil {
		return header, nil, index.CorruptWrap(fileSection, err)
	}
	return header, sections, nil
}

func readSectionHeader(r io.Reader) (SectionHeader, error) {
	var h SectionHeader
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return h, err
	}
	if n > maxSectionName {
		return h, fmt.Errorf("section name too long: %d bytes", n)
	}
	name := make([]byte, n)
	if _, err := io.ReadFull(r, name); err != nil {
		return h, err
	}
	var fixed [1 + 8 + 8 + 4]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return h, err
	}
	h.Name = string(name)
	h.Compression = compress.Type(fixed[0])
	h.RawLen = binary.LittleEndian.Uint64(fixed[1:])
	h.StoredLen = binary.LittleEndian.Uint64(fixed[9:])
	h.Checksum = binary.LittleEndian.Uint32(fixed[17:])
	if !h.Compression.Valid() {
		return h, fmt.Errorf("section %q: unknown compression %d", h.Name, fixed[0])
	}
	if h.RawLen > maxSectionLen || h.StoredLen > maxSectionLen {
		return h, fmt.Errorf("section %q: length out of range", h.Name)
	}
	return h, nil
}

// Read decodes a dump written by Write.
func Read(ctx context.Context, r io.Reader, opts Options) (*index.BinarySet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r = resource.NewRateLimitedReader(ctx, r, opts.Resources)
	_, sections, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}

	bs := index.NewBinarySet()
	for _, h := range sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stored, err := readPayload(r, h.StoredLen)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, index.CorruptWrap(h.Name, err)
		}
		raw, err := compress.Decode(stored, h.Compression, int(h.RawLen))
		if err != nil {
			return nil, index.CorruptWrap(h.Name, err)
		}
		if sum := ComputeChecksum(raw); sum != h.Checksum {
			return nil, index.CorruptWrap(h.Name, &ChecksumMismatchError{Section: h.Name, Expected: h.Checksum, Actual: sum})
		}
		bs.Append(h.Name, raw)
	}
	return bs, nil
}

// payloadChunk is the largest payload allocated before any of it is read.
const payloadChunk = 1 << 20

// readPayload reads n bytes. Large payloads grow with the data actually
// read, so a forged table length fails with ErrTruncated instead of
// reserving n bytes up front.
func readPayload(r io.Reader, n uint64) ([]byte, error) {
	if n <= payloadChunk {
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, truncated(err)
		}
		return buf, nil
	}
	var buf bytes.Buffer
	buf.Grow(payloadChunk)
	got, err := io.CopyN(&buf, r, int64(n))
	if err != nil {
		return nil, truncated(err)
	}
	if uint64(got) != n {
		return nil, ErrTruncated
	}
	return buf.Bytes(), nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	return err
}

func corrupt(err error) error {
	return index.CorruptWrap(fileSection, truncated(err))
}

// SaveToFile writes a file atomically: writeFunc fills a temp file in the
// same directory, which is synced and renamed over filename.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""
	return nil
}

// LoadFromFile opens filename and hands a buffered reader to readFunc.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	return readFunc(bufio.NewReaderSize(f, 256*1024))
}
