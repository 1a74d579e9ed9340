package index

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alwayslove2013/knowhere/distance"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{
		"metric_type": "IP",
		"nlist": 66,
		"nprobe": 12,
		"k": 10,
		"record_bucket_stats": true,
		"bucket_stats_file": "/tmp/stats.csv",
		"return_visited_buckets": true,
		"radius": 1.5
	}`))
	require.NoError(t, err)

	assert.Equal(t, distance.MetricIP, cfg.Metric)
	assert.Equal(t, 66, cfg.NList)
	assert.Equal(t, 12, cfg.NProbe)
	assert.True(t, cfg.RecordBucketStats)
	assert.True(t, cfg.ReturnVisitedBuckets)
	require.NotNil(t, cfg.Radius)
	assert.Equal(t, float32(1.5), *cfg.Radius)
	assert.Nil(t, cfg.RangeFilter)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		key  string
	}{
		{"UnknownKey", `{"nlsit": 5}`, ""},
		{"UnknownMetric", `{"metric_type": "HAMMING"}`, ""},
		{"NotAnObject", `[1,2]`, ""},
		{"Trailing", `{} {}`, ""},
		{"NegativeNList", `{"nlist": -1}`, "nlist"},
		{"NegativeNProbe", `{"nprobe": -3}`, "nprobe"},
		{"HugeK", `{"k": 1125899906842624}`, "k"},
		{"NListAboveLimit", `{"nlist": 65537}`, "nlist"},
		{"DimAboveLimit", `{"dim": 32769}`, "dim"},
		{"BadInit", `{"kmeans_init": "spectral"}`, "kmeans_init"},
		{"StatsFileWithoutRecord", `{"bucket_stats_file": "x.csv"}`, "bucket_stats_file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.in))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfigParse)

			if tt.key != "" {
				var ce *ConfigError
				require.True(t, errors.As(err, &ce))
				assert.Equal(t, tt.key, ce.Key)
			}
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	err := Config{K: -1, NList: -1}.Validate()
	require.Error(t, err)

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	assert.Len(t, joined.Unwrap(), 2)
}

func TestCheckResultSize(t *testing.T) {
	cfg := Config{K: MaxK}.WithDefaults()
	assert.NoError(t, cfg.CheckResultSize(MaxResultEntries/MaxK))

	err := cfg.CheckResultSize(MaxResultEntries/MaxK + 1)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "k", ce.Key)

	assert.NoError(t, DefaultConfig().CheckResultSize(1_000_000))
}

func TestParseYAMLConfig(t *testing.T) {
	cfg, err := ParseYAMLConfig([]byte("metric_type: cosine\nnlist: 32\nssize: 16\n"))
	require.NoError(t, err)
	assert.Equal(t, distance.MetricCosine, cfg.Metric)
	assert.Equal(t, 32, cfg.NList)
	assert.Equal(t, 16, cfg.SSize)

	_, err = ParseYAMLConfig([]byte("nlist: 4\nbogus: 1\n"))
	assert.ErrorIs(t, err, ErrConfigParse)

	cfg, err = ParseYAMLConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, Config{}, cfg)
}

func TestWithDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultK, cfg.K)
	assert.Equal(t, DefaultNList, cfg.NList)
	assert.Equal(t, DefaultNProbe, cfg.NProbe)
	assert.Equal(t, DefaultSSize, cfg.SSize)
	assert.Equal(t, KMeansInitRandom, cfg.KMeansInit)

	custom := Config{NProbe: 3}.WithDefaults()
	assert.Equal(t, 3, custom.NProbe)
	assert.Contains(t, custom.String(), `"nprobe":3`)
}
