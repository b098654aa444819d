package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camilorv/aeropolicy/internal/policy"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, 2000, cfg.Fetch.MinDelayMs)
	assert.Equal(t, 5000, cfg.Fetch.MaxDelayMs)
	assert.NotEmpty(t, cfg.Fetch.UserAgents)
	assert.Equal(t, "local", cfg.Snapshot.Backend)
	assert.Equal(t, "airline_policies", cfg.DB.Table)
	assert.InDelta(t, 0.4, cfg.Score.ReviewThreshold, 0.001)
	assert.Equal(t, 10_000_000, cfg.Score.MaxCostCOP)
	assert.InDelta(t, 60, cfg.Viability.CoverageViablePct, 0.001)
	assert.Equal(t, 200_000, cfg.Viability.MaxAcceptableCostCOP)

	require.Len(t, cfg.Sources, 7)
	codes := make(map[string]bool)
	for _, src := range cfg.Sources {
		codes[src.Code] = true
	}
	for _, want := range []string{"AV", "LA", "P5", "VE", "9R", "CM", "JA"} {
		assert.True(t, codes[want], "missing source %s", want)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
fetch:
  max_retries: 5
  min_delay_ms: 100
  max_delay_ms: 200
snapshot:
  backend: memory
sources:
  - code: AV
    name: Avianca
    policy_url: https://example.com/av
    pattern_set: avianca
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Fetch.MaxRetries)
	assert.Equal(t, "memory", cfg.Snapshot.Backend)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "AV", cfg.Sources[0].Code)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Valid", func(*Config) {}, ""},
		{"ZeroTimeout", func(c *Config) { c.Fetch.TimeoutSeconds = 0 }, "timeout_seconds"},
		{"ZeroRetries", func(c *Config) { c.Fetch.MaxRetries = 0 }, "max_retries"},
		{"InvertedDelayInterval", func(c *Config) {
			c.Fetch.MinDelayMs = 500
			c.Fetch.MaxDelayMs = 100
		}, "delay interval"},
		{"NoUserAgents", func(c *Config) { c.Fetch.UserAgents = nil }, "user_agents"},
		{"UnknownSnapshotBackend", func(c *Config) { c.Snapshot.Backend = "s3" }, "snapshot backend"},
		{"GCSWithoutBucket", func(c *Config) {
			c.Snapshot.Backend = "gcs"
			c.Snapshot.GCSBucket = ""
		}, "gcs_bucket"},
		{"ThresholdOutOfRange", func(c *Config) { c.Score.ReviewThreshold = 1.5 }, "review_threshold"},
		{"DuplicateSourceCodes", func(c *Config) {
			c.Sources = []policy.Source{
				{Code: "AV", Name: "a", PolicyURL: "https://a"},
				{Code: "AV", Name: "b", PolicyURL: "https://b"},
			}
		}, "duplicate"},
		{"SourceWithoutURL", func(c *Config) {
			c.Sources = []policy.Source{{Code: "AV", Name: "a"}}
		}, "policy_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefaultSourcesStatic(t *testing.T) {
	a := DefaultSources()
	b := DefaultSources()
	assert.Equal(t, a, b)
	for _, src := range a {
		assert.NotEmpty(t, src.PatternSet, "source %s needs a pattern set", src.Code)
	}
}
