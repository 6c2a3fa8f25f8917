package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"crypto_watch/internal/alerts"
	"crypto_watch/internal/infra"
	"crypto_watch/internal/storage"

	"github.com/shopspring/decimal"
)

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config *infra.Config
	Store  *storage.Store

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, dirs,
// lock, store).
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Crypto Watch...")

	// 1. Load config (dynamic path resolution)
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err // let main handle the error
	}
	b.Config = cfg

	// 2. Setup logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	infra.PrintBanner(cfg)

	// 3. Workspace + data directory
	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data")
	if err := infra.EnsureDir(dataDir); err != nil {
		return err
	}

	// 3.1 Single-instance lock: protects the sqlite db against a second
	// process.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	// 4. Open the store
	dbPath := cfg.Storage.Path
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "watch.db")
	}
	store, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("✅ Store opened (WAL-mode)", "path", dbPath)

	b.logRecentActions()

	return nil
}

// logRecentActions surfaces the tail of the action journal after a
// restart, for diagnostics.
func (b *Bootstrap) logRecentActions() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	journal := storage.NewJournal(b.Store)
	entries, err := journal.Recent(ctx, 5)
	if err != nil || len(entries) == 0 {
		return
	}

	slog.Info("Last actions before restart", slog.Int("count", len(entries)))
	for _, e := range entries {
		slog.Info("  journal",
			slog.Int64("id", e.ID),
			slog.String("kind", e.Kind),
			slog.String("detail", e.Detail))
	}
}

// AlertRules parses the configured alert rules. Bad thresholds are
// skipped with a warning, not fatal.
func (b *Bootstrap) AlertRules() []alerts.PendingRule {
	var pending []alerts.PendingRule
	for _, rc := range b.Config.Alerts {
		threshold, err := decimal.NewFromString(rc.Threshold)
		if err != nil {
			slog.Warn("Skipping alert with bad threshold",
				slog.String("symbol", rc.Symbol),
				slog.String("threshold", rc.Threshold))
			continue
		}
		pending = append(pending, alerts.PendingRule{
			Symbol:     rc.Symbol,
			Threshold:  threshold,
			Persistent: rc.Persistent,
		})
	}
	return pending
}

// Close releases the store and the instance lock.
func (b *Bootstrap) Close() {
	if b.Store != nil {
		b.Store.Close()
	}
	if b.unlock != nil {
		b.unlock()
	}
}
