package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/metrics"
)

func buildSnapshot(t *testing.T) *indexer.Snapshot {
	t.Helper()
	b := indexer.NewBuilder(config.IndexerConfig{Workers: 1, LockShards: 4}, nil)
	for _, rec := range []ingestion.Record{
		{
			"url":              "u1",
			"title":            "Blue Widget & Co",
			"description":      "a blue widget, very blue",
			"product_features": map[string]any{"brand": "Acme", "made in": "France"},
			"product_reviews":  []any{map[string]any{"rating": 3.0}, map[string]any{"rating": 4.0}},
		},
		{"url": "u2", "title": "Red Widget", "product_features": map[string]any{"brand": "Acme"}},
	} {
		_, err := b.Ingest(rec)
		require.NoError(t, err)
	}
	return b.Freeze()
}

func TestJSONWriteAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	snap := buildSnapshot(t)

	require.NoError(t, NewJSONWriter(dir, nil).Write(snap))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, Files, names)

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
	assert.Equal(t, []string{"u1", "u2"}, resolver.Resolve("widget", loaded.Title))
	assert.Equal(t, []int{0, 3}, loaded.Description.Positions("blue", "u1"))
}

func TestJSONFileShape(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewJSONWriter(dir, nil).Write(buildSnapshot(t)))

	raw, err := os.ReadFile(filepath.Join(dir, ReviewsFile))
	require.NoError(t, err)
	var stats map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &stats))
	assert.Equal(t, map[string]any{"total_reviews": 2.0, "mean_mark": 3.5, "last_rating": 4.0}, stats["u1"])
	assert.Equal(t, map[string]any{"total_reviews": 0.0, "mean_mark": 0.0, "last_rating": 0.0}, stats["u2"])

	raw, err = os.ReadFile(filepath.Join(dir, BrandFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"acme\": [\n    \"u1\",\n    \"u2\"\n  ]")
}

func TestJSONWriteUnwritable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	reg := prometheus.NewRegistry()
	err := NewJSONWriter(filepath.Join(blocker, "out"), metrics.New(reg)).Write(buildSnapshot(t))
	assert.ErrorIs(t, err, apperrors.ErrDestinationUnwritable)

	families, gerr := reg.Gather()
	require.NoError(t, gerr)
	found := false
	for _, mf := range families {
		if mf.GetName() == "catalog_exports_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestLoadMissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, apperrors.ErrSourceUnreadable)
}

type failingBeginner struct{ err error }

func (f failingBeginner) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return nil, f.err
}

func TestPostgresWriteWrapsFailure(t *testing.T) {
	err := NewPostgresWriter(failingBeginner{err: errors.New("connection reset")}, nil).
		Write(context.Background(), buildSnapshot(t))
	assert.ErrorIs(t, err, apperrors.ErrDestinationUnwritable)
	assert.ErrorContains(t, err, "connection reset")
}

func TestToInt64(t *testing.T) {
	assert.Equal(t, []int64{0, 3, 9}, toInt64([]int{0, 3, 9}))
	assert.Empty(t, toInt64(nil))
}

func TestOpenPostgresFailsOnUnreachableServer(t *testing.T) {
	db, err := OpenPostgres(context.Background(), config.PostgresConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "catalog",
		Database: "catalog",
		SSLMode:  "disable",
	})
	assert.Nil(t, db)
	assert.ErrorContains(t, err, "pinging postgres 127.0.0.1:1/catalog")
}
