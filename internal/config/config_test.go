package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into dir for the duration of the test. Load reads config.yaml
// from the working directory.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) }) //nolint:errcheck
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "enrich.db", cfg.Store.SQLitePath)
	assert.Equal(t, "https://api.data.gov/ed/collegescorecard", cfg.Scorecard.BaseURL)
	assert.Empty(t, cfg.Scorecard.Key)
	assert.Equal(t, "https://www.wikidata.org", cfg.Knowledge.BaseURL)
	assert.Equal(t, "https://en.wikipedia.org", cfg.Wikipedia.BaseURL)
	assert.Empty(t, cfg.WebSearch.BaseURL, "web search is disabled until an endpoint is configured")
	assert.Equal(t, 500, cfg.Sources.PolitenessMillis)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1000, cfg.Retry.InitialBackoffMs)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 30, cfg.Breaker.RecoveryTimeoutSecs)
	assert.Equal(t, 5, cfg.Worker.PollIntervalSecs)
	assert.Equal(t, 3, cfg.Worker.MaxConcurrent)
	assert.Equal(t, 30, cfg.Jobs.RetentionDays)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/enrich
scorecard:
  key: file-key
sources:
  politeness_millis: 250
  rate_limits:
    scorecard:
      rps: 2.5
      burst: 5
worker:
  max_concurrent: 8
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/enrich", cfg.Store.DatabaseURL)
	assert.Equal(t, "file-key", cfg.Scorecard.Key)
	assert.Equal(t, 250, cfg.Sources.PolitenessMillis)
	require.Contains(t, cfg.Sources.RateLimits, "scorecard")
	assert.Equal(t, 2.5, cfg.Sources.RateLimits["scorecard"].RPS)
	assert.Equal(t, 5, cfg.Sources.RateLimits["scorecard"].Burst)
	assert.Equal(t, 8, cfg.Worker.MaxConcurrent)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	// Defaults still apply to sections the file does not mention.
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ENRICH_SCORECARD_KEY", "env-key")
	t.Setenv("ENRICH_STORE_DRIVER", "postgres")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Scorecard.Key)
	assert.Equal(t, "postgres", cfg.Store.Driver)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: ["), 0o644))
	chdir(t, dir)

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))

	err := InitLogger(LogConfig{Level: "loudest", Format: "json"})
	assert.Error(t, err)
}
