package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/export"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/source"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	input := flag.String("input", "", "JSONL input file (overrides indexer.inputPath)")
	output := flag.String("output", "", "output directory (overrides indexer.outputDir)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *input != "" {
		cfg.Indexer.InputPath = *input
	}
	if *output != "" {
		cfg.Indexer.OutputDir = *output
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("index build failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(nil)
	builder := indexer.NewBuilder(cfg.Indexer, m)
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, func() any { return builder.Progress() })
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutdownCtx)
		}()
	}

	slog.Info("starting index build",
		"source", cfg.Indexer.Source,
		"workers", cfg.Indexer.Workers,
		"lock_shards", cfg.Indexer.LockShards,
		"output_dir", cfg.Indexer.OutputDir,
	)

	src, finish, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer finish()

	report, err := builder.Run(ctx, src)
	if err != nil {
		return err
	}
	snap := builder.Freeze()
	summary := snap.Summary()

	if err := export.NewJSONWriter(cfg.Indexer.OutputDir, m).Write(snap); err != nil {
		return err
	}
	if cfg.Postgres.Enabled {
		if err := exportPostgres(ctx, cfg.Postgres, m, snap); err != nil {
			return err
		}
	}

	// Offsets are committed only once the indexes are safely on disk.
	if ks, ok := src.(*source.KafkaSource); ok {
		if err := ks.Commit(ctx); err != nil {
			slog.Warn("committing kafka offsets failed", "error", err)
		}
	}

	slog.Info("index build complete",
		"processed", report.Processed,
		"indexed", report.Indexed,
		"skipped", report.Skipped,
		"malformed", report.Malformed,
		"field_errors", report.FieldErrors,
		"title_terms", summary.TitleTerms,
		"description_terms", summary.DescriptionTerms,
		"brand_terms", summary.BrandTerms,
		"origin_terms", summary.OriginTerms,
		"duration", report.Duration,
	)

	if cfg.Kafka.Enabled {
		publishComplete(ctx, cfg, report, summary)
	}
	return nil
}

// openSource returns the configured record source and a func releasing it.
func openSource(cfg *config.Config) (source.Source, func(), error) {
	switch cfg.Indexer.Source {
	case config.SourceKafka:
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ProductRecords)
		slog.Info("reading product records from kafka",
			"topic", cfg.Kafka.Topics.ProductRecords,
			"group", cfg.Kafka.ConsumerGroup,
			"idle_timeout", cfg.Kafka.IdleTimeout,
		)
		return source.NewKafkaSource(consumer, cfg.Kafka.IdleTimeout), func() {
			if err := consumer.Close(); err != nil {
				slog.Warn("closing kafka consumer", "error", err)
			}
		}, nil
	default:
		src, err := source.OpenJSONL(cfg.Indexer.InputPath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("reading product records from file", "path", cfg.Indexer.InputPath)
		return src, func() { src.Close() }, nil
	}
}

func exportPostgres(ctx context.Context, cfg config.PostgresConfig, m *metrics.Metrics, snap *indexer.Snapshot) error {
	var db *sql.DB
	err := resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{}, func() error {
		var err error
		db, err = export.OpenPostgres(ctx, cfg)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrDestinationUnwritable, err)
	}
	defer db.Close()
	return export.NewPostgresWriter(db, m).Write(ctx, snap)
}

// publishComplete announces a finished build. Failure is logged only: the
// indexes are already exported.
func publishComplete(ctx context.Context, cfg *config.Config, report *indexer.Report, summary indexer.Summary) {
	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()

	event := ingestion.IndexCompleteEvent{
		OutputDir:   cfg.Indexer.OutputDir,
		Processed:   report.Processed,
		Indexed:     report.Indexed,
		Skipped:     report.Skipped,
		Malformed:   report.Malformed,
		TitleTerms:  summary.TitleTerms,
		DescTerms:   summary.DescriptionTerms,
		BrandTerms:  summary.BrandTerms,
		OriginTerms: summary.OriginTerms,
		DurationMs:  report.Duration.Milliseconds(),
		CompletedAt: time.Now().UTC(),
	}
	pubCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err := resilience.Retry(pubCtx, "index-complete-publish", resilience.RetryConfig{}, func() error {
		return producer.Publish(pubCtx, kafka.Event{Key: cfg.Indexer.OutputDir, Value: event})
	})
	if err != nil {
		slog.Warn("index-complete event not published", "topic", cfg.Kafka.Topics.IndexComplete, "error", err)
		return
	}
	slog.Info("index-complete event published", "topic", cfg.Kafka.Topics.IndexComplete)
}
