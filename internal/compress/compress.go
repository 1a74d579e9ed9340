// Package compress implements the section codecs of the dump format.
package compress

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies a compression algorithm.
type Type uint8

const (
	// None stores bytes as they are.
	None Type = 0
	// LZ4 is LZ4 block compression (fast).
	LZ4 Type = 1
	// ZSTD is ZSTD block compression (better ratio).
	ZSTD Type = 2
)

// ErrSizeMismatch is returned when a decoded payload is not the recorded size.
var ErrSizeMismatch = errors.New("decompressed size mismatch")

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Valid reports whether t is a known algorithm.
func (t Type) Valid() bool { return t <= ZSTD }

// Parse parses "none", "lz4" or "zstd" (case-insensitive). The empty string is None.
func Parse(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	default:
		return None, fmt.Errorf("unknown compression %q", s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode compresses data with t. When the result would not be smaller than
// data, data is returned unchanged together with None.
func Encode(data []byte, t Type) ([]byte, Type, error) {
	if t == None || len(data) == 0 {
		return data, None, nil
	}

	var out []byte
	switch t {
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, None, err
		}
		out = buf[:n] // n == 0 means incompressible
	case ZSTD:
		enc := getZstdEncoder()
		out = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, None, fmt.Errorf("unknown compression %v", t)
	}

	if len(out) == 0 || len(out) >= len(data) {
		return data, None, nil
	}
	return out, t, nil
}

const (
	// maxLZ4Ratio bounds the expansion of one LZ4 block.
	maxLZ4Ratio = 255
	// maxPrealloc caps the buffer reserved from an untrusted length.
	maxPrealloc = 64 << 20
)

// Decode reverses Encode. rawLen is the size of the original payload.
func Decode(data []byte, t Type, rawLen int) ([]byte, error) {
	switch t {
	case None:
		if len(data) != rawLen {
			return nil, ErrSizeMismatch
		}
		return data, nil

	case LZ4:
		if rawLen < 0 || rawLen > maxLZ4Ratio*len(data)+16 {
			return nil, ErrSizeMismatch
		}
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, err
		}
		if n != rawLen {
			return nil, ErrSizeMismatch
		}
		return out, nil

	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		if rawLen < 0 {
			return nil, ErrSizeMismatch
		}
		out, err := dec.DecodeAll(data, make([]byte, 0, min(rawLen, maxPrealloc)))
		if err != nil {
			return nil, err
		}
		if len(out) != rawLen {
			return nil, ErrSizeMismatch
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unknown compression %v", t)
	}
}
