package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
log:
  level: debug
  format: json
cache:
  max_entries: 1000
  eviction: LFU
  stale_time: 30s
  clean_time: 5m
metrics:
  enabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 16, cfg.Cache.Shards)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, "LFU", cfg.Cache.Eviction)
	assert.Equal(t, 30*time.Second, cfg.Cache.StaleTime)
	assert.Equal(t, 5*time.Minute, cfg.Cache.CleanTime)
	assert.Zero(t, cfg.Cache.RefreshInterval)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "querycache", cfg.Metrics.Namespace)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	for name, doc := range map[string]string{
		"level":            "log: {level: loud}",
		"format":           "log: {format: xml}",
		"shards":           "cache: {shards: 0}",
		"eviction":         "cache: {max_entries: 10, eviction: MRU}",
		"stale time":       "cache: {stale_time: -1s}",
		"refresh interval": "cache: {refresh_interval: -1s}",
		"namespace":        "metrics: {enabled: true, namespace: ''}",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("cache: ["))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  shards: 4\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Cache.Shards)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
	assert.NoError(t, Default().Cache.Validate())
}
