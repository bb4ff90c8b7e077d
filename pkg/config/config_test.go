package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Index.NumShards)
	assert.Equal(t, 1024, cfg.Search.MaxClauseCount)
	assert.Equal(t, "body", cfg.Search.DefaultField)
	assert.True(t, cfg.Search.Parallel)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "searcher.yaml")
	yaml := `
server:
  port: 9000
index:
  corpusPath: /data/docs.jsonl
  numShards: 4
  keywordFields: [id, category]
cache:
  enabled: true
  ttl: 2m
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("SP_SERVER_PORT", "9100")
	t.Setenv("SP_SEARCH_PARALLEL", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "/data/docs.jsonl", cfg.Index.CorpusPath)
	assert.Equal(t, 4, cfg.Index.NumShards)
	assert.Equal(t, []string{"id", "category"}, cfg.Index.KeywordFields)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Search.Parallel)
	assert.Equal(t, "english", cfg.Index.Analyzer)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("SP_INDEX_NUM_SHARDS", "0")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRateLimitSettings(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 50.0, cfg.Server.RateLimit.RequestsPerSecond)
	assert.Equal(t, 100, cfg.Server.RateLimit.Burst)

	t.Setenv("SP_SERVER_RATE_LIMIT_RPS", "2.5")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Server.RateLimit.RequestsPerSecond)

	t.Setenv("SP_SERVER_RATE_LIMIT_RPS", "-1")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadDevelopmentConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "data/corpus.jsonl", cfg.Index.CorpusPath)
	assert.Equal(t, []string{"year", "category"}, cfg.Index.KeywordFields)
	assert.Equal(t, "body", cfg.Search.DefaultField)
	assert.Equal(t, 100*time.Millisecond, cfg.Cache.OperationTimeout)
	assert.Equal(t, "text", cfg.Logging.Format)
}
