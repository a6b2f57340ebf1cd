package export

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/metrics"
)

// Beginner starts database transactions. *sql.DB satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// OpenPostgres opens a lib/pq pool sized by cfg and pings it.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS catalog_positional_postings (
		index_name TEXT NOT NULL,
		term       TEXT NOT NULL,
		doc_id     TEXT NOT NULL,
		positions  INTEGER[] NOT NULL,
		PRIMARY KEY (index_name, term, doc_id)
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_categorical_postings (
		index_name TEXT NOT NULL,
		term       TEXT NOT NULL,
		doc_id     TEXT NOT NULL,
		PRIMARY KEY (index_name, term, doc_id)
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_reviews (
		doc_id        TEXT PRIMARY KEY,
		total_reviews INTEGER NOT NULL,
		mean_mark     DOUBLE PRECISION NOT NULL,
		last_rating   DOUBLE PRECISION NOT NULL
	)`,
}

const truncateTables = `TRUNCATE catalog_positional_postings, catalog_categorical_postings, catalog_reviews`

// PostgresWriter replaces the relational copy of the indexes with the
// contents of a snapshot.
type PostgresWriter struct {
	db      Beginner
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPostgresWriter creates a writer over db. m may be nil.
func NewPostgresWriter(db Beginner, m *metrics.Metrics) *PostgresWriter {
	return &PostgresWriter{
		db:      db,
		metrics: m,
		logger:  slog.Default().With("component", "postgres-export"),
	}
}

// Write creates the tables if needed, truncates them and bulk-loads snap
// with COPY, all in one transaction. Failures wrap ErrDestinationUnwritable.
func (w *PostgresWriter) Write(ctx context.Context, snap *indexer.Snapshot) error {
	start := time.Now()
	var rows int64
	err := w.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("creating schema: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, truncateTables); err != nil {
			return fmt.Errorf("truncating tables: %w", err)
		}
		n, err := copyPositional(ctx, tx, map[string]index.PositionalSnapshot{
			indexer.IndexTitle:       snap.Title,
			indexer.IndexDescription: snap.Description,
		})
		if err != nil {
			return err
		}
		rows += n
		n, err = copyCategorical(ctx, tx, map[string]index.CategoricalSnapshot{
			indexer.IndexBrand:  snap.Brand,
			indexer.IndexOrigin: snap.Origin,
		})
		if err != nil {
			return err
		}
		rows += n
		n, err = copyReviews(ctx, tx, snap)
		if err != nil {
			return err
		}
		rows += n
		return nil
	})

	status := "ok"
	if err != nil {
		status = "error"
		err = fmt.Errorf("%w: postgres: %v", apperrors.ErrDestinationUnwritable, err)
	}
	if w.metrics != nil {
		w.metrics.ExportsTotal.WithLabelValues("postgres", status).Inc()
	}
	if err != nil {
		return err
	}
	w.logger.Info("indexes exported", "rows", rows, "elapsed", time.Since(start))
	return nil
}

// inTx commits when fn succeeds and rolls back otherwise.
func (w *PostgresWriter) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back after %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func copyPositional(ctx context.Context, tx *sql.Tx, indexes map[string]index.PositionalSnapshot) (int64, error) {
	return copyRows(ctx, tx, pq.CopyIn("catalog_positional_postings", "index_name", "term", "doc_id", "positions"),
		func(emit func(args ...any) error) error {
			for name, snap := range indexes {
				for term, postings := range snap {
					for docID, positions := range postings {
						if err := emit(name, term, docID, pq.Array(toInt64(positions))); err != nil {
							return err
						}
					}
				}
			}
			return nil
		})
}

func copyCategorical(ctx context.Context, tx *sql.Tx, indexes map[string]index.CategoricalSnapshot) (int64, error) {
	return copyRows(ctx, tx, pq.CopyIn("catalog_categorical_postings", "index_name", "term", "doc_id"),
		func(emit func(args ...any) error) error {
			for name, snap := range indexes {
				for term, docIDs := range snap {
					for _, docID := range docIDs {
						if err := emit(name, term, docID); err != nil {
							return err
						}
					}
				}
			}
			return nil
		})
}

func copyReviews(ctx context.Context, tx *sql.Tx, snap *indexer.Snapshot) (int64, error) {
	return copyRows(ctx, tx, pq.CopyIn("catalog_reviews", "doc_id", "total_reviews", "mean_mark", "last_rating"),
		func(emit func(args ...any) error) error {
			for docID, s := range snap.Reviews {
				if err := emit(docID, s.TotalReviews, s.MeanMark, s.LastRating); err != nil {
					return err
				}
			}
			return nil
		})
}

// copyRows prepares a COPY statement, feeds it every row produced by fill
// and flushes it.
func copyRows(ctx context.Context, tx *sql.Tx, query string, fill func(emit func(args ...any) error) error) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("preparing %q: %w", query, err)
	}
	defer stmt.Close()

	var rows int64
	emit := func(args ...any) error {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("copying row: %w", err)
		}
		rows++
		return nil
	}
	if err := fill(emit); err != nil {
		return rows, err
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return rows, fmt.Errorf("flushing copy: %w", err)
	}
	return rows, nil
}

func toInt64(positions []int) []int64 {
	out := make([]int64, len(positions))
	for i, p := range positions {
		out[i] = int64(p)
	}
	return out
}
