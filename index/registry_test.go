package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alwayslove2013/knowhere/bitset"
	"github.com/alwayslove2013/knowhere/distance"
)

type stubIndex struct {
	version Version
	env     Env
}

func (s *stubIndex) Type() string     { return "STUB" }
func (s *stubIndex) Version() Version { return s.version }
func (s *stubIndex) Build(context.Context, *Dataset, Config) error {
	return nil
}
func (s *stubIndex) Search(context.Context, *Dataset, Config, *bitset.Bitset) (*Result, error) {
	return nil, nil
}
func (s *stubIndex) RangeSearch(context.Context, *Dataset, Config, *bitset.Bitset) (*RangeResult, error) {
	return nil, nil
}
func (s *stubIndex) GetVectorByIDs(context.Context, []int64) (*Dataset, error) { return nil, nil }
func (s *stubIndex) Serialize(context.Context) (*BinarySet, error)             { return nil, nil }
func (s *stubIndex) Deserialize(context.Context, *BinarySet) error             { return nil }
func (s *stubIndex) Dim() int                                                  { return 0 }
func (s *stubIndex) Metric() distance.Metric                                   { return distance.MetricL2 }
func (s *stubIndex) Count() int64                                              { return 0 }
func (s *stubIndex) Size() int64                                               { return 0 }
func (s *stubIndex) IsBuilt() bool                                             { return false }

func TestRegistry(t *testing.T) {
	Register("stub", func(v Version, env Env) (Index, error) {
		return &stubIndex{version: v, env: env}, nil
	}, "STUBBY")

	idx, err := New("Stub", CurrentVersion, Env{})
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, idx.Version())

	stub := idx.(*stubIndex)
	assert.NotNil(t, stub.env.Resources)
	assert.NotNil(t, stub.env.Logger)

	name, ok := Canonical("stubby")
	assert.True(t, ok)
	assert.Equal(t, "STUB", name)
	assert.Contains(t, Types(), "STUB")

	_, err = New("nope", CurrentVersion, Env{})
	assert.ErrorIs(t, err, ErrUnknownIndexType)

	_, err = New("stub", CurrentVersion+1, Env{})
	assert.ErrorIs(t, err, ErrVersionMismatch)

	_, err = New("stub", MinimalVersion-1, Env{})
	var ve *VersionError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, MinimalVersion-1, ve.Version)
}
