package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/linkwell/linkwell/internal/api"
	"github.com/linkwell/linkwell/internal/completion"
	"github.com/linkwell/linkwell/internal/config"
	"github.com/linkwell/linkwell/internal/content"
	"github.com/linkwell/linkwell/internal/enrich"
	"github.com/linkwell/linkwell/internal/ratelimit"
	"github.com/linkwell/linkwell/internal/storage"
	"github.com/linkwell/linkwell/internal/taskqueue"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the linkwell server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "linkwell version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	// Build the enrichment stack.
	factory := completion.NewFactory(cfg.AI.APIKey, completion.Options{
		BaseURL:      cfg.AI.BaseURL,
		PrimaryModel: cfg.AI.PrimaryModel,
		FastModel:    cfg.AI.FastModel,
		Timeout:      time.Duration(cfg.AI.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.AI.MaxRetries,
		BaseDelay:    time.Duration(cfg.AI.BaseDelayMs) * time.Millisecond,
	})
	if cfg.AI.APIKey == "" {
		slog.Warn("no AI API key configured, enrichment calls will fail until one is set",
			"env", "LINKWELL_AI_API_KEY")
	}

	limiter := buildLimiter(cfg.RateLimit, store)
	recorder := &storageRecorder{store: store}
	orch := enrich.New(factory, limiter, recorder, enrich.Options{
		SummaryMaxTokens:  cfg.AI.SummaryMaxTokens,
		TagsMaxTokens:     cfg.AI.TagsMaxTokens,
		CategoryMaxTokens: cfg.AI.CategoryMaxTokens,
		SearchMaxTokens:   cfg.AI.SearchMaxTokens,
		Temperature:       cfg.AI.Temperature,
	})

	// Task queue and workers.
	queue := taskqueue.New()
	handler := enrich.NewTaskHandler(orch)
	poll := time.Duration(cfg.Queue.PollInterval) * time.Millisecond

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Queue.Workers; i++ {
		worker := taskqueue.NewWorker(queue, handler, poll)
		g.Go(func() error {
			worker.Run(gctx)
			return nil
		})
	}
	slog.Info("task workers started", "count", cfg.Queue.Workers)

	// HTTP server.
	appHandler := api.NewAppHandler(api.AppDeps{
		Enricher:   orch,
		Queue:      queue,
		Operations: store,
		Fetcher:    content.NewFetcher(15 * time.Second),
		Token:      cfg.Server.AuthToken,
	})
	if cfg.Server.AuthToken == "" {
		slog.Warn("no auth token configured, API is unauthenticated",
			"env", "LINKWELL_SERVER_AUTH_TOKEN")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
	}

	// MCP server on stdio.
	mcpSrv := api.NewMCPServer(api.MCPDeps{Enricher: orch})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		slog.Info("linkwell listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	stop()
	return g.Wait()
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

func buildLimiter(cfg config.RateLimitConfig, store *storage.Store) ratelimit.Limiter {
	quota := ratelimit.Quota{
		Limit:  cfg.Limit,
		Window: time.Duration(cfg.WindowSecs) * time.Second,
	}
	switch cfg.Backend {
	case "off":
		return &ratelimit.Noop{Quota: quota}
	case "memory":
		return ratelimit.NewMemory(quota)
	default:
		return ratelimit.NewSQLite(store, quota)
	}
}

// storageRecorder persists enrichment outcomes to the audit log.
// Recording never blocks an operation: failures are logged and dropped.
type storageRecorder struct {
	store *storage.Store
}

func (r *storageRecorder) RecordOperation(rec enrich.OperationRecord) {
	err := r.store.LogOperation(storage.OperationLog{
		ID:         uuid.New().String(),
		UserID:     rec.UserID,
		Operation:  rec.Operation,
		Status:     rec.Status,
		TokensUsed: rec.TokensUsed,
		Model:      rec.Model,
		ErrorCode:  rec.ErrorCode,
	})
	if err != nil {
		slog.Warn("failed to record operation", "operation", rec.Operation, "error", err)
	}
}
