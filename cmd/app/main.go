package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto_watch/internal/alerts"
	"crypto_watch/internal/app"
	"crypto_watch/internal/domain"
	"crypto_watch/internal/engine"
	"crypto_watch/internal/infra/binance"
	"crypto_watch/internal/infra/watchapi"
	"crypto_watch/internal/storage"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	cfg := bootstrap.Config

	// 3. Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Price source per feed mode
	var prices engine.PriceSource
	var stream *binance.StreamSource
	if cfg.FeedMode() == "stream" {
		stream = binance.NewStreamSource(cfg.Feed.Stream.WSURL, cfg.Watch.Symbols)
		stream.Start(ctx)
		defer stream.Stop()
		prices = stream
		slog.Info("✅ Binance stream source started", slog.Int("symbols", len(cfg.Watch.Symbols)))

		// Give the stream a moment to warm its quote table before the
		// first load.
		time.Sleep(2 * time.Second)
	} else {
		prices = watchapi.NewClient(cfg.Feed.REST.BaseURL, cfg.Feed.REST.APIKey)
		slog.Info("✅ REST price source ready", slog.String("base_url", cfg.Feed.REST.BaseURL))
	}

	// 5. Alerts observe published snapshots through the engine boundary
	watcher := alerts.NewWatcher(bootstrap.AlertRules(), nil)

	onChange := func(state domain.WatchState) {
		watcher.OnState(ctx, state)
		slog.Debug("State published",
			slog.String("phase", state.Phase.String()),
			slog.Int("assets", len(state.Assets)),
			slog.String("notice", state.Notice))
	}

	// 6. Engine + scheduler
	store := bootstrap.Store
	eng := engine.NewEngine(64,
		prices,
		storage.NewFavoritesRepo(store),
		storage.NewOrderRepo(store),
		storage.NewJournal(store),
		onChange,
	)
	eng.Start(ctx)
	defer eng.Stop()
	slog.Info("✅ Watch engine started")

	scheduler := engine.NewScheduler(eng, time.Duration(cfg.Watch.RefreshIntervalSec)*time.Second)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// 7. Initial load
	eng.Load(cfg.Watch.Symbols)

	slog.InfoContext(ctx, "✨ Crypto Watch fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
