package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/mug-cli/internal/app"
	"github.com/glabrego/mug-cli/internal/config"
	"github.com/glabrego/mug-cli/internal/engine"
	"github.com/glabrego/mug-cli/internal/logger"
	"github.com/glabrego/mug-cli/internal/metrics"
	"github.com/glabrego/mug-cli/internal/mug"
	"github.com/glabrego/mug-cli/internal/storage"
	"github.com/glabrego/mug-cli/internal/tui"
)

func main() {
	startedAt := time.Now()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr, logCloser, err := logger.Open(cfg.LogPath, cfg.Debug)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logCloser.Close()

	metrics.Init()
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logr.Error("metrics listener stopped", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		defer srv.Close()
	}

	repo, err := storage.NewRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init error: %v", err)
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := repo.Init(ctx); err != nil {
		log.Fatalf("storage schema error: %v", err)
	}
	if err := repo.CheckWritable(ctx); err != nil {
		log.Fatalf("storage write check failed (%v). Verify MUG_DB_PATH is writable: %s", err, cfg.DBPath)
	}

	client := mug.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.RequestTimeout})
	service := app.NewService(client, repo, logr)

	prefs, err := service.LoadUIPreferences(ctx, app.UIPreferences{
		FeedEnabled:        cfg.FeedEnabled,
		ScanMode:           cfg.ScanMode,
		AutoFetchReference: cfg.AutoFetchReference,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load UI preferences (%v), using defaults\n", err)
	}

	eng := engine.New(service, engine.Options{
		RetryInterval:    cfg.RetryInterval,
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		FeedInterval:     cfg.FeedInterval,
		BulkInterval:     cfg.BulkInterval,
		RequestTimeout:   cfg.RequestTimeout,
		FeedEnabled:      prefs.FeedEnabled,
		Logger:           logr,
	})

	cacheLoadStart := time.Now()
	cached, err := service.ListCached(ctx)
	if err != nil {
		log.Fatalf("cannot load cached urls: %v", err)
	}
	cacheLoadDuration := time.Since(cacheLoadStart)
	eng.Seed(cached)

	model := tui.NewModel(eng, service)
	model.ApplyPreferences(prefs)
	model.SetStartupCacheStats(cacheLoadDuration, len(cached), startedAt)
	if at, err := repo.LastSnapshotAt(ctx); err == nil {
		model.SetLastSync(at)
	}
	logr.Info("starting", "api", cfg.APIBaseURL, "cached_urls", len(cached), "feed", prefs.FeedEnabled)

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		log.Fatalf("tui error: %v", err)
	}
}
