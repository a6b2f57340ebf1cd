//go:build integration

// Run with:
//
//	go test -v -tags=integration ./internal/export/...
package export

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/config"
)

func skipIfNoPostgres(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenPostgres(context.Background(), config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "catalog_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "catalog"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresWriteRoundTrip(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	w := NewPostgresWriter(db, nil)

	// Twice: the second write must replace, not append.
	require.NoError(t, w.Write(ctx, buildSnapshot(t)))
	require.NoError(t, w.Write(ctx, buildSnapshot(t)))

	var positions pq.Int64Array
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT positions FROM catalog_positional_postings WHERE index_name = 'description' AND term = 'blue' AND doc_id = 'u1'`,
	).Scan(&positions))
	assert.Equal(t, pq.Int64Array{0, 3}, positions)

	var brandDocs int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT count(*) FROM catalog_categorical_postings WHERE index_name = 'brand' AND term = 'acme'`,
	).Scan(&brandDocs))
	assert.Equal(t, 2, brandDocs)

	var mean float64
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT mean_mark FROM catalog_reviews WHERE doc_id = 'u1'`,
	).Scan(&mean))
	assert.Equal(t, 3.5, mean)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
