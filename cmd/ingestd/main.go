package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blueledger/mpesa-ingest-go/internal/catalog"
	"github.com/blueledger/mpesa-ingest-go/internal/config"
	"github.com/blueledger/mpesa-ingest-go/internal/domain"
	"github.com/blueledger/mpesa-ingest-go/internal/handler"
	"github.com/blueledger/mpesa-ingest-go/internal/infra/cache"
	"github.com/blueledger/mpesa-ingest-go/internal/infra/observability"
	"github.com/blueledger/mpesa-ingest-go/internal/infra/resilience"
	"github.com/blueledger/mpesa-ingest-go/internal/infra/supabase"
	"github.com/blueledger/mpesa-ingest-go/internal/port"
	"github.com/blueledger/mpesa-ingest-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("dedup_window", cfg.DedupWindow),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	if cfg.SupabaseURL == "" {
		logger.Fatal("SUPABASE_URL is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "blueledger-ingest")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache (source/category id lookups) ---
	ledgerCache := cache.New[string](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("supabase")
	bulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Store ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)
	logger.Info("using Supabase as transaction store",
		zap.String("supabase_url", cfg.SupabaseURL),
	)

	// --- Observer + unmatched sink ---
	// The observer slot is where a push/refresh integration plugs in; the
	// service itself only logs.
	observer := port.ObserverFunc(func(candidate domain.ParsedCandidate) {
		logger.Info("observer: transaction ingested",
			zap.String("direction", string(candidate.Direction)),
			zap.String("amount", candidate.Amount.String()),
			zap.Time("timestamp", candidate.Timestamp),
		)
	})
	unmatchedLog := logger.Named("unmatched")
	unmatched := port.UnmatchedSinkFunc(func(userID, rawBody string) {
		unmatchedLog.Warn("no template matched",
			zap.String("user_id", userID),
			zap.String("body", rawBody),
		)
	})

	// --- Service ---
	ingestSvc := service.NewIngest(
		catalog.NewMpesaCatalog(),
		store,
		store,
		ledgerCache,
		observer,
		unmatched,
		cfg.DedupWindow,
		metrics,
		logger,
	)

	// --- Router ---
	router := handler.NewRouter(ingestSvc, bulkhead, metrics, []byte(cfg.JWTSecret), logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
