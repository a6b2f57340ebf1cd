// Package export persists a frozen catalog snapshot: five JSON files for
// the query service and, optionally, PostgreSQL tables for ad-hoc analysis.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/reviews"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/metrics"
)

const (
	TitleFile       = "title_index.json"
	DescriptionFile = "description_index.json"
	BrandFile       = "brand_index.json"
	OriginFile      = "origin_index.json"
	ReviewsFile     = "reviews_index.json"
)

// Files lists the output file names in write order.
var Files = []string{TitleFile, DescriptionFile, BrandFile, OriginFile, ReviewsFile}

// JSONWriter writes snapshots into a directory as indented JSON.
type JSONWriter struct {
	dir     string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewJSONWriter creates a writer for dir. m may be nil.
func NewJSONWriter(dir string, m *metrics.Metrics) *JSONWriter {
	return &JSONWriter{
		dir:     dir,
		metrics: m,
		logger:  slog.Default().With("component", "json-export"),
	}
}

// Write stores the five structures of snap. Each file is written to a .tmp
// sibling and renamed into place, so a reader never observes a partial file.
// Any failure wraps ErrDestinationUnwritable.
func (w *JSONWriter) Write(snap *indexer.Snapshot) error {
	err := w.write(snap)
	w.count(err)
	return err
}

func (w *JSONWriter) write(snap *indexer.Snapshot) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", apperrors.ErrDestinationUnwritable, w.dir, err)
	}
	payloads := map[string]any{
		TitleFile:       snap.Title,
		DescriptionFile: snap.Description,
		BrandFile:       snap.Brand,
		OriginFile:      snap.Origin,
		ReviewsFile:     snap.Reviews,
	}
	for _, name := range Files {
		if err := writeFile(filepath.Join(w.dir, name), payloads[name]); err != nil {
			return err
		}
		w.logger.Debug("index file written", "file", name)
	}
	w.logger.Info("indexes exported", "dir", w.dir, "files", len(Files))
	return nil
}

func (w *JSONWriter) count(err error) {
	if w.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	w.metrics.ExportsTotal.WithLabelValues("json", status).Inc()
}

func writeFile(path string, v any) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", apperrors.ErrDestinationUnwritable, tmpPath, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: encoding %s: %v", apperrors.ErrDestinationUnwritable, path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing %s: %v", apperrors.ErrDestinationUnwritable, tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming %s: %v", apperrors.ErrDestinationUnwritable, tmpPath, err)
	}
	return nil
}

// Load reads a snapshot previously written by JSONWriter.
func Load(dir string) (*indexer.Snapshot, error) {
	title, err := LoadPositional(filepath.Join(dir, TitleFile))
	if err != nil {
		return nil, err
	}
	description, err := LoadPositional(filepath.Join(dir, DescriptionFile))
	if err != nil {
		return nil, err
	}
	brand, err := LoadCategorical(filepath.Join(dir, BrandFile))
	if err != nil {
		return nil, err
	}
	origin, err := LoadCategorical(filepath.Join(dir, OriginFile))
	if err != nil {
		return nil, err
	}
	stats, err := LoadReviews(filepath.Join(dir, ReviewsFile))
	if err != nil {
		return nil, err
	}
	return &indexer.Snapshot{
		Title:       title,
		Description: description,
		Brand:       brand,
		Origin:      origin,
		Reviews:     stats,
	}, nil
}

func LoadPositional(path string) (index.PositionalSnapshot, error) {
	out := index.PositionalSnapshot{}
	if err := readFile(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func LoadCategorical(path string) (index.CategoricalSnapshot, error) {
	out := index.CategoricalSnapshot{}
	if err := readFile(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func LoadReviews(path string) (map[string]reviews.Stats, error) {
	out := map[string]reviews.Stats{}
	if err := readFile(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func readFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrSourceUnreadable, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", apperrors.ErrSourceUnreadable, path, err)
	}
	return nil
}
