package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperengineering/claimgate/internal/api"
	"github.com/hyperengineering/claimgate/internal/config"
	"github.com/hyperengineering/claimgate/internal/corpus"
	"github.com/hyperengineering/claimgate/internal/embedding"
	"github.com/hyperengineering/claimgate/internal/history"
	"github.com/hyperengineering/claimgate/internal/resolver"
	"github.com/hyperengineering/claimgate/internal/rules"
	"github.com/hyperengineering/claimgate/internal/store"
	"github.com/hyperengineering/claimgate/internal/summary"
	"github.com/hyperengineering/claimgate/internal/vecindex"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "claimgate",
	Short: "Claimgate - Medical Claim Validation Service",
	RunE:  run,
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	logger := slog.New(newLogHandler(cfg.Log))
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Log.Level)

	// 4. Load the rule corpus. A malformed rule feed is fatal: validating
	// claims against a partial corpus would approve pairs it never saw.
	rc, err := corpus.LoadFile(cfg.Data.RulesPath)
	if err != nil {
		return fmt.Errorf("load rule corpus: %w", err)
	}
	slog.Info("rule corpus loaded",
		"path", cfg.Data.RulesPath,
		"rules", rc.Len(),
		"skipped", rc.Skipped(),
	)

	// 5. Load the claim history index
	hist, err := history.LoadFile(cfg.Data.HistoryPath)
	if err != nil {
		return fmt.Errorf("load claim history: %w", err)
	}
	slog.Info("claim history loaded",
		"path", cfg.Data.HistoryPath,
		"patients", hist.PatientCount(),
	)

	// 6. Initialize embedding service
	embedder := embedding.NewOpenAI(cfg.Embedding.APIKey, cfg.Embedding.Model)
	slog.Info("embedder initialized", "model", cfg.Embedding.Model)

	// 7. Build the vector index before accepting traffic. Build failure
	// aborts startup: a half-built index would silently skew resolution.
	buildStart := time.Now()
	index, err := vecindex.Build(ctx, rc.Rules(), embedder, vecindex.Options{
		BatchSize: cfg.Index.BatchSize,
		Workers:   cfg.Index.Workers,
	})
	if err != nil {
		return fmt.Errorf("build vector index: %w", err)
	}
	slog.Info("vector index ready",
		"entries", index.Len(),
		"duration_ms", time.Since(buildStart).Milliseconds(),
	)

	// 8. Assemble the validation pipeline
	res := resolver.New(index, rc)
	pipeline := rules.NewPipeline(
		[]rules.Handler{rules.NewPTPRule(res)},
		[]rules.Handler{rules.NewOneTimeBillingRule(hist, rules.DefaultOneTimeCode)},
	)
	slog.Info("validation pipeline assembled")

	// 9. Initialize audit store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	slog.Info("audit store initialized", "path", cfg.Database.Path)

	// 10. Optional claim summarizer
	var summarizer summary.Summarizer
	if cfg.Summary.Enabled {
		summarizer = summary.NewOpenAI(cfg.Embedding.APIKey, cfg.Summary.Model)
		slog.Info("summarizer initialized", "model", cfg.Summary.Model)
	}

	// 11. Initialize HTTP router
	info := api.IndexInfo{
		RuleCount:    rc.Len(),
		IndexedRules: index.Len(),
		PatientCount: hist.PatientCount(),
	}
	handler := api.NewHandler(pipeline, db, summarizer, info, cfg.Embedding.Model, cfg.Auth.APIKey, Version)
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	// 12. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 13. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		// Any other error indicates an actual server failure that should trigger shutdown.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel() // Trigger shutdown on server failure
		}
	}()

	// 14. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 15. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 15a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 15b. Close audit store
	if err := db.Close(); err != nil {
		slog.Error("audit store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func newLogHandler(cfg config.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
