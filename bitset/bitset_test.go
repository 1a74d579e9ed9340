package bitset

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitset(t *testing.T) {
	b := Of(1, 5, 1<<40, -3)

	assert.True(t, b.Test(1))
	assert.True(t, b.Test(5))
	assert.True(t, b.Test(1<<40))
	assert.False(t, b.Test(2))
	assert.False(t, b.Test(-3))
	assert.Equal(t, uint64(3), b.Count())

	b.Clear(5)
	assert.False(t, b.Test(5))
	assert.Equal(t, []int64{1, 1 << 40}, slices.Collect(b.All()))
}

func TestBitset_Nil(t *testing.T) {
	var b *Bitset

	assert.False(t, b.Test(0))
	assert.True(t, b.IsEmpty())
	assert.Zero(t, b.Count())
	assert.Nil(t, b.Clone())
	assert.Empty(t, slices.Collect(b.All()))
}

func TestFromBools(t *testing.T) {
	b := FromBools([]bool{true, false, false, true})
	assert.Equal(t, []int64{0, 3}, slices.Collect(b.All()))
}

func TestBytesRoundTrip(t *testing.T) {
	data := []byte{0b1000_0001, 0b0000_0100}

	b := FromBytes(data, 16)
	assert.Equal(t, []int64{0, 7, 10}, slices.Collect(b.All()))
	assert.Equal(t, data, b.ToBytes(16))

	truncated := FromBytes(data, 8)
	assert.Equal(t, []int64{0, 7}, slices.Collect(truncated.All()))
}

func TestBinaryRoundTrip(t *testing.T) {
	b := Of(3, 9, 12345678901)

	data, err := b.MarshalBinary()
	require.NoError(t, err)

	var got Bitset
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, slices.Collect(b.All()), slices.Collect(got.All()))

	clone := b.Clone()
	clone.Set(4)
	assert.False(t, b.Test(4))
}
