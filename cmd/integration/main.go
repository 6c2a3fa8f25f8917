// Self-contained end-to-end scenario: stub backend, temp store, real
// engine. Load, reorder, favorite, simulated restart, verify the
// persisted order survives. Exits non-zero on any failure.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"crypto_watch/internal/domain"
	"crypto_watch/internal/engine"
	"crypto_watch/internal/infra/watchapi"
	"crypto_watch/internal/storage"
)

var symbols = []string{"BTC", "ETH", "ADA"}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)
	slog.Info("🚀 Starting Crypto Watch integration scenario...")

	// Stub backend serving fixed quotes.
	server := httptest.NewServer(http.HandlerFunc(servePrices))
	defer server.Close()

	tmpDir, err := os.MkdirTemp("", "crypto-watch-integration")
	if err != nil {
		fail("temp dir", err)
	}
	defer os.RemoveAll(tmpDir)
	dbPath := filepath.Join(tmpDir, "watch.db")

	ctx := context.Background()

	// --- First run -------------------------------------------------
	store, err := storage.Open(dbPath)
	if err != nil {
		fail("open store", err)
	}

	eng := newEngine(server.URL, store)
	eng.Start(ctx)

	slog.Info("STEP 1: Initial load...")
	eng.Load(symbols)
	state := waitPhase(eng, domain.PhaseLoaded)
	expectOrder(state, "BTC", "ETH", "ADA")
	slog.Info("✅ Loaded", "assets", len(state.Assets))

	slog.Info("STEP 2: Reorder BTC to the end...")
	eng.ToggleReorderMode()
	eng.Reorder(0, 3)
	eng.ToggleReorderMode()
	state = waitFor(eng, func(s domain.WatchState) bool {
		return s.Phase == domain.PhaseLoaded && !s.ReorderMode && len(s.CustomOrder) == 3
	})
	expectOrder(state, "ETH", "ADA", "BTC")
	slog.Info("✅ Reordered", "order", state.CustomOrder)

	slog.Info("STEP 3: Favorite ETH...")
	eng.ToggleFavorite("ETH")
	state = waitFor(eng, func(s domain.WatchState) bool {
		return s.Favorites["ETH"]
	})
	slog.Info("✅ Favorited")

	eng.Stop()
	store.Close()

	// --- Simulated restart -----------------------------------------
	slog.Info("STEP 4: Simulated restart...")
	store2, err := storage.Open(dbPath)
	if err != nil {
		fail("reopen store", err)
	}
	defer store2.Close()

	eng2 := newEngine(server.URL, store2)
	eng2.Start(ctx)
	defer eng2.Stop()

	eng2.Load(symbols)
	state = waitPhase(eng2, domain.PhaseLoaded)
	expectOrder(state, "ETH", "ADA", "BTC")
	if !state.Favorites["ETH"] {
		fail("restart", fmt.Errorf("ETH favorite lost across restart"))
	}

	slog.Info("✅ Order and favorites survived restart", "order", state.CustomOrder)
	slog.Info("🎉 Integration scenario passed!")
}

func newEngine(baseURL string, store *storage.Store) *engine.Engine {
	return engine.NewEngine(16,
		watchapi.NewClient(baseURL, "integration-key"),
		storage.NewFavoritesRepo(store),
		storage.NewOrderRepo(store),
		storage.NewJournal(store),
		nil,
	)
}

func servePrices(w http.ResponseWriter, r *http.Request) {
	type item struct {
		Symbol      string  `json:"symbol"`
		Name        string  `json:"name"`
		Price       float64 `json:"price"`
		Change24h   float64 `json:"change24h"`
		MarketCap   int64   `json:"marketCap"`
		LastUpdated string  `json:"lastUpdated"`
	}

	now := time.Now().UTC().Format(time.RFC3339)
	resp := map[string]any{
		"data": []item{
			{Symbol: "BTC", Name: "Bitcoin", Price: 67000.12, Change24h: 1.2, MarketCap: 1_300_000_000_000, LastUpdated: now},
			{Symbol: "ETH", Name: "Ethereum", Price: 3500.50, Change24h: -0.8, MarketCap: 420_000_000_000, LastUpdated: now},
			{Symbol: "ADA", Name: "Cardano", Price: 0.45, Change24h: 2.1, MarketCap: 16_000_000_000, LastUpdated: now},
		},
		"timestamp": now,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func waitPhase(e *engine.Engine, phase domain.Phase) domain.WatchState {
	return waitFor(e, func(s domain.WatchState) bool { return s.Phase == phase })
}

func waitFor(e *engine.Engine, cond func(domain.WatchState) bool) domain.WatchState {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s := e.Snapshot()
		if cond(s) {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	fail("wait", fmt.Errorf("condition not met before deadline; last phase %s", e.Snapshot().Phase))
	return domain.WatchState{}
}

func expectOrder(state domain.WatchState, want ...string) {
	if len(state.Assets) != len(want) {
		fail("order", fmt.Errorf("expected %d assets, got %d", len(want), len(state.Assets)))
	}
	for i, sym := range want {
		if state.Assets[i].Symbol != sym {
			fail("order", fmt.Errorf("position %d: expected %s, got %s", i, sym, state.Assets[i].Symbol))
		}
	}
}

func fail(step string, err error) {
	slog.Error("❌ Integration scenario failed", "step", step, "error", err)
	os.Exit(1)
}
