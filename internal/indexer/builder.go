package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/reviews"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/shard"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/ingestion/validator"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/source"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/metrics"
)

// maxReportedErrors caps Report.Errors; counters keep counting past it.
const maxReportedErrors = 1000

// Outcome classifies what happened to one input record.
type Outcome int

const (
	OutcomeIndexed Outcome = iota
	OutcomeSkipped
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIndexed:
		return "indexed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// RecordError ties a per-record failure to its input line.
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Report summarises a Run. Errors holds malformed records and field-level
// problems in the order workers observed them.
type Report struct {
	Processed   int64         `json:"processed"`
	Indexed     int64         `json:"indexed"`
	Skipped     int64         `json:"skipped"`
	Malformed   int64         `json:"malformed"`
	FieldErrors int64         `json:"field_errors"`
	Errors      []RecordError `json:"-"`
	Duration    time.Duration `json:"duration_ns,omitempty"`
}

// Builder accumulates the five catalog structures for a single build run.
// It is safe for concurrent Ingest calls from distinct documents. Once
// frozen it rejects further writes.
type Builder struct {
	title       *index.PositionalIndex
	description *index.PositionalIndex
	brand       *index.CategoricalIndex
	origin      *index.CategoricalIndex
	reviews     *reviews.Table

	cfg     config.IndexerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	frozen  atomic.Bool

	mu     sync.Mutex
	report Report
}

// NewBuilder creates an empty Builder. m may be nil.
func NewBuilder(cfg config.IndexerConfig, m *metrics.Metrics) *Builder {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Builder{
		title:       index.NewPositionalIndex(cfg.LockShards),
		description: index.NewPositionalIndex(cfg.LockShards),
		brand:       index.NewCategoricalIndex(cfg.LockShards),
		origin:      index.NewCategoricalIndex(cfg.LockShards),
		reviews:     reviews.NewTable(),
		cfg:         cfg,
		metrics:     m,
		logger:      slog.Default().With("component", "index-builder"),
	}
}

// Ingest routes one decoded record into the indexes. Records without a URL
// are skipped without error. A *validator.FieldErrors result means the
// document was indexed without the fields it lists.
func (b *Builder) Ingest(rec ingestion.Record) (Outcome, error) {
	if b.frozen.Load() {
		return OutcomeSkipped, apperrors.ErrFrozen
	}
	product, fieldErrs := validator.Extract(rec)
	if product.URL == "" {
		return OutcomeSkipped, nil
	}
	url := product.URL

	if product.Title != "" {
		b.indexText(IndexTitle, b.title, url, product.Title)
	}
	if product.Description != "" {
		b.indexText(IndexDescription, b.description, url, product.Description)
	}
	if product.Brand != "" {
		b.indexAttribute(IndexBrand, b.brand, url, product.Brand)
	}
	if product.Origin != "" {
		b.indexAttribute(IndexOrigin, b.origin, url, product.Origin)
	}
	b.reviews.Put(url, reviews.Aggregate(product.Ratings))

	if fieldErrs != nil {
		return OutcomeIndexed, fieldErrs
	}
	return OutcomeIndexed, nil
}

// IngestRaw decodes raw and ingests it. Decoding failures are returned as
// *RecordError wrapping ErrMalformedRecord.
func (b *Builder) IngestRaw(raw source.Raw) (Outcome, error) {
	rec, err := ingestion.Decode(raw.Data)
	return b.ingestDecoded(job{raw: raw, rec: rec, err: err})
}

// job is one source record, decoded by the dispatcher.
type job struct {
	raw source.Raw
	rec ingestion.Record
	err error
}

func (b *Builder) ingestDecoded(j job) (Outcome, error) {
	if j.err != nil {
		return OutcomeMalformed, &RecordError{Line: j.raw.Line, Err: j.err}
	}
	outcome, err := b.Ingest(j.rec)
	if apperrors.IsRecordLevel(err) {
		err = &RecordError{Line: j.raw.Line, Err: err}
	}
	return outcome, err
}

// Run drains src with cfg.Workers concurrent workers. Each record is
// routed to a worker by its URL, so records sharing a URL are applied in
// input order. Per-record problems are logged and collected in the Report;
// a failing source aborts the run and no Report is returned. Each Run
// reports only the records it read.
func (b *Builder) Run(ctx context.Context, src source.Source) (*Report, error) {
	if b.frozen.Load() {
		return nil, apperrors.ErrFrozen
	}
	start := time.Now()
	workers := b.cfg.Workers
	b.logger.Info("build started", "workers", workers)

	b.mu.Lock()
	b.report = Report{}
	b.mu.Unlock()

	router := shard.NewRouter(workers)
	queues := make([]chan job, workers)
	for i := range queues {
		queues[i] = make(chan job, 16)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for {
			raw, err := src.Next(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading source: %w", err)
			}
			rec, decodeErr := ingestion.Decode(raw.Data)
			url, _ := rec[ingestion.FieldURL].(string)
			select {
			case queues[router.Route(url)] <- job{raw: raw, rec: rec, err: decodeErr}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})
	for _, q := range queues {
		q := q
		g.Go(func() error {
			for j := range q {
				if err := b.process(j); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		b.logger.Error("build aborted", "error", err)
		return nil, err
	}

	report := b.Progress()
	b.mu.Lock()
	report.Errors = append([]RecordError(nil), b.report.Errors...)
	b.mu.Unlock()
	report.Duration = time.Since(start)
	if b.metrics != nil {
		b.metrics.BuildDuration.Observe(report.Duration.Seconds())
	}

	b.logger.Info("build complete",
		"processed", report.Processed,
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"malformed", report.Malformed,
		"field_errors", report.FieldErrors,
		"duration", report.Duration,
	)
	return &report, nil
}

// Progress returns the counters of the current or last Run, without the
// collected errors.
func (b *Builder) Progress() Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	report := b.report
	report.Errors = nil
	return report
}

// Freeze stops further ingestion and returns an immutable Snapshot.
func (b *Builder) Freeze() *Snapshot {
	b.frozen.Store(true)
	snap := &Snapshot{
		Title:       b.title.Snapshot(),
		Description: b.description.Snapshot(),
		Brand:       b.brand.Snapshot(),
		Origin:      b.origin.Snapshot(),
		Reviews:     b.reviews.Snapshot(),
	}
	if b.metrics != nil {
		summary := snap.Summary()
		b.metrics.IndexTerms.WithLabelValues(IndexTitle).Set(float64(summary.TitleTerms))
		b.metrics.IndexTerms.WithLabelValues(IndexDescription).Set(float64(summary.DescriptionTerms))
		b.metrics.IndexTerms.WithLabelValues(IndexBrand).Set(float64(summary.BrandTerms))
		b.metrics.IndexTerms.WithLabelValues(IndexOrigin).Set(float64(summary.OriginTerms))
	}
	return snap
}

// process ingests one record and tallies the outcome. Errors that are not
// record-level, such as ErrFrozen, stop the worker; the rest are recorded.
func (b *Builder) process(j job) error {
	outcome, err := b.ingestDecoded(j)
	if err != nil && !apperrors.IsRecordLevel(err) {
		return err
	}
	raw := j.raw

	var fieldErrs *validator.FieldErrors
	hasFieldErrs := errors.As(err, &fieldErrs)

	b.mu.Lock()
	b.report.Processed++
	switch outcome {
	case OutcomeIndexed:
		b.report.Indexed++
	case OutcomeSkipped:
		b.report.Skipped++
	case OutcomeMalformed:
		b.report.Malformed++
	}
	if hasFieldErrs {
		b.report.FieldErrors += int64(len(fieldErrs.Fields))
	}
	var recErr *RecordError
	if errors.As(err, &recErr) && len(b.report.Errors) < maxReportedErrors {
		b.report.Errors = append(b.report.Errors, *recErr)
	}
	b.mu.Unlock()

	switch {
	case outcome == OutcomeMalformed:
		b.logger.Warn("skipping malformed record", "line", raw.Line, "error", err)
	case hasFieldErrs:
		b.logger.Debug("record indexed with skipped fields", "line", raw.Line, "fields", fieldErrs.Error())
	}

	if b.metrics != nil {
		b.metrics.RecordsTotal.WithLabelValues(outcome.String()).Inc()
		if hasFieldErrs {
			for field := range fieldErrs.Fields {
				b.metrics.FieldErrorsTotal.WithLabelValues(field).Inc()
			}
		}
	}
	return nil
}

func (b *Builder) indexText(name string, idx *index.PositionalIndex, url, text string) {
	tokens := tokenizer.Tokenize(text)
	idx.AddTokens(url, tokens)
	b.countTokens(name, len(tokens))
}

func (b *Builder) indexAttribute(name string, idx *index.CategoricalIndex, url, value string) {
	terms := tokenizer.Terms(value)
	for _, term := range terms {
		idx.Add(term, url)
	}
	b.countTokens(name, len(terms))
}

func (b *Builder) countTokens(name string, n int) {
	if b.metrics != nil && n > 0 {
		b.metrics.TokensIndexedTotal.WithLabelValues(name).Add(float64(n))
	}
}
