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
	assert.Equal(t, SourceJSONL, cfg.Indexer.Source)
	assert.Equal(t, "indexes", cfg.Indexer.OutputDir)
	assert.GreaterOrEqual(t, cfg.Indexer.Workers, 1)
	assert.False(t, cfg.Postgres.Enabled)
	assert.Equal(t, "index.complete", cfg.Kafka.Topics.IndexComplete)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
indexer:
  inputPath: /data/products.jsonl
  workers: 3
redis:
  enabled: true
  cacheTTL: 2m
logging:
  level: debug
`), 0o644))

	t.Setenv("CI_INDEXER_OUTPUT_DIR", "/tmp/out")
	t.Setenv("CI_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CI_POSTGRES_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/products.jsonl", cfg.Indexer.InputPath)
	assert.Equal(t, 3, cfg.Indexer.Workers)
	assert.Equal(t, "/tmp/out", cfg.Indexer.OutputDir)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Postgres.Enabled)
	assert.Equal(t, "localhost", cfg.Postgres.Host)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("CI_INDEXER_SOURCE", "ftp")
	_, err := Load("")
	assert.ErrorContains(t, err, "indexer.source")
}

func TestLoadRejectsZeroWorkers(t *testing.T) {
	t.Setenv("CI_INDEXER_WORKERS", "0")
	_, err := Load("")
	assert.ErrorContains(t, err, "indexer.workers")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "catalog", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=catalog sslmode=disable", p.DSN())
}
