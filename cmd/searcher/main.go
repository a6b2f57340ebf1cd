package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/export"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/catalog-indexer/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "index_dir", cfg.Search.IndexDir)

	snap, err := export.Load(cfg.Search.IndexDir)
	if err != nil {
		slog.Error("failed to load indexes", "dir", cfg.Search.IndexDir, "error", err)
		os.Exit(1)
	}
	summary := snap.Summary()
	slog.Info("indexes loaded",
		"documents", summary.Documents,
		"title_terms", summary.TitleTerms,
		"description_terms", summary.DescriptionTerms,
		"brand_terms", summary.BrandTerms,
		"origin_terms", summary.OriginTerms,
	)

	m := metrics.New(nil)
	res := resolver.New(snap, m)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	checker := health.NewChecker()
	checker.Register("indexes", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents", summary.Documents),
		}
	})
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient.Ping, false))
	}

	h := handler.New(res, queryCache, m, cfg.Search.MaxResults)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/reviews", h.Reviews)
	mux.HandleFunc("GET /api/v1/indexes", h.Indexes)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
