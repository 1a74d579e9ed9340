package compress

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("knowhere ivf bucket "), 512)
	random := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(random)

	tests := []struct {
		name   string
		data   []byte
		typ    Type
		stored Type
	}{
		{"NoneCompressible", compressible, None, None},
		{"LZ4Compressible", compressible, LZ4, LZ4},
		{"ZSTDCompressible", compressible, ZSTD, ZSTD},
		{"LZ4Random", random, LZ4, None},
		{"ZSTDRandom", random, ZSTD, None},
		{"Empty", nil, ZSTD, None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, used, err := Encode(tt.data, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.stored, used)
			if used != None {
				assert.Less(t, len(enc), len(tt.data))
			}

			dec, err := Decode(enc, used, len(tt.data))
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.data, dec))
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	data := bytes.Repeat([]byte{7}, 1024)
	enc, used, err := Encode(data, ZSTD)
	require.NoError(t, err)
	require.Equal(t, ZSTD, used)

	_, err = Decode(enc, ZSTD, 10)
	assert.Error(t, err)

	_, err = Decode(enc[:len(enc)/2], ZSTD, len(data))
	assert.Error(t, err)

	_, err = Decode(data, None, 10)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	lz, used, err := Encode(data, LZ4)
	require.NoError(t, err)
	require.Equal(t, LZ4, used)
	_, err = Decode(lz, LZ4, 1<<40)
	assert.ErrorIs(t, err, ErrSizeMismatch)
	_, err = Decode(lz, LZ4, -1)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	_, err = Decode(enc, ZSTD, 1<<40)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	_, err = Decode(data, Type(9), len(data))
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	for in, want := range map[string]Type{"": None, "none": None, "LZ4": LZ4, " zstd ": ZSTD} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
		if in != "" {
			assert.True(t, got.Valid())
		}
	}
	_, err := Parse("snappy")
	assert.Error(t, err)
	assert.False(t, Type(3).Valid())
	assert.Equal(t, "zstd", ZSTD.String())
}
