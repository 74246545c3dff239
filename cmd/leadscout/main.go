package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/leadscout/api"
	"github.com/use-agent/leadscout/api/handler"
	"github.com/use-agent/leadscout/browser"
	"github.com/use-agent/leadscout/cache"
	"github.com/use-agent/leadscout/checkpoint"
	"github.com/use-agent/leadscout/config"
	"github.com/use-agent/leadscout/crawl"
	"github.com/use-agent/leadscout/export"
	"github.com/use-agent/leadscout/storage"
	"github.com/use-agent/leadscout/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("leadscout starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"website_fetch", cfg.Crawl.WebsiteFetchMode,
	)

	// ── 3. Crawl collaborators ──────────────────────────────────────
	deps := crawl.Deps{
		Config:      cfg.Crawl,
		Launch:      crawl.RodLauncher(cfg.Browser),
		Checkpoints: checkpoint.NewFileStore(cfg.Crawl.CheckpointDir),
		Exporter:    export.NewWorkbook(cfg.Export.OutputDir),
		Logger:      slog.Default(),
	}

	websites := cache.New(cfg.Crawl.WebsiteCacheEntries, cfg.Crawl.WebsiteCacheTTL)
	defer websites.Close()
	deps.Websites = websites

	if cfg.Crawl.WebsiteFetchMode != crawl.FetchBrowser {
		fetcher, err := browser.NewHTTPFetcher(cfg.Browser, cfg.Crawl.HTTPTimeout)
		if err != nil {
			slog.Error("failed to initialise website fetcher", "error", err)
			os.Exit(1)
		}
		defer fetcher.Close()
		deps.Fetcher = fetcher

		hosts := crawl.NewHostMemory(24 * time.Hour)
		defer hosts.Stop()
		deps.BrowserHosts = hosts
	}

	var archive handler.Archive
	if cfg.Archive.DBPath != "" {
		store, err := storage.NewStore(cfg.Archive.DBPath)
		if err != nil {
			slog.Error("failed to open archive", "path", cfg.Archive.DBPath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		deps.Archive = store
		archive = store
		slog.Info("run archive enabled", "path", cfg.Archive.DBPath)
	}

	if n := webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret); n != nil {
		deps.Notifier = n
		slog.Info("completion webhook enabled", "url", cfg.Webhook.URL)
	}

	ctrl := crawl.NewController(deps)

	// ── 4. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(ctrl, archive, cfg, slog.Default(), startTime)

	// ── 5. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// A stopped run still exports what it has; give it time to finish.
	ctrl.Stop()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer waitCancel()
	if err := ctrl.Wait(waitCtx); err != nil {
		slog.Warn("crawl did not finish before exit", "error", err)
	}

	slog.Info("leadscout stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
