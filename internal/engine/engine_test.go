package engine

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crypto_watch/internal/domain"

	"github.com/shopspring/decimal"
)

// ---- collaborator stubs ----

type stubPrices struct {
	mu     sync.Mutex
	assets []domain.Asset
	err    error
	calls  int32
	block  chan struct{} // when set, FetchPrices waits on it
}

func (s *stubPrices) FetchPrices(ctx context.Context, symbols []string) ([]domain.Asset, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Asset, len(s.assets))
	copy(out, s.assets)
	return out, nil
}

func (s *stubPrices) set(assets []domain.Asset, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets = assets
	s.err = err
}

type stubFavorites struct {
	mu       sync.Mutex
	favs     map[string]bool
	fetchErr error
	setErr   error
	setCalls int32
}

func (s *stubFavorites) FetchFavorites(ctx context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	out := make(map[string]bool, len(s.favs))
	for k, v := range s.favs {
		out[k] = v
	}
	return out, nil
}

func (s *stubFavorites) SetFavorite(ctx context.Context, symbol string, favorite bool) error {
	atomic.AddInt32(&s.setCalls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	if s.favs == nil {
		s.favs = make(map[string]bool)
	}
	s.favs[symbol] = favorite
	return nil
}

type stubOrders struct {
	mu         sync.Mutex
	order      []string
	readErr    error
	writeErr   error
	writeCalls int32
}

func (s *stubOrders) ReadOrder(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (s *stubOrders) WriteOrder(ctx context.Context, order []string) error {
	atomic.AddInt32(&s.writeCalls, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.order = append([]string(nil), order...)
	return nil
}

// ---- helpers ----

func quotes(symbols ...string) []domain.Asset {
	out := make([]domain.Asset, 0, len(symbols))
	for i, s := range symbols {
		out = append(out, domain.Asset{
			Symbol:    s,
			Name:      domain.DisplayName(s),
			Price:     decimal.NewFromInt(int64(1000 * (i + 1))),
			UpdatedAt: time.Now().UTC(),
		})
	}
	return out
}

func newTestEngine(t *testing.T, prices PriceSource, favs FavoritesSource, orders OrderStore) *Engine {
	t.Helper()
	e := NewEngine(16, prices, favs, orders, nil, nil)
	e.Start(context.Background())
	t.Cleanup(e.Stop)
	return e
}

func waitFor(t *testing.T, e *Engine, what string, cond func(domain.WatchState) bool) domain.WatchState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := e.Snapshot()
		if cond(s) {
			return s
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; last snapshot phase %s", what, e.Snapshot().Phase)
	return domain.WatchState{}
}

func waitPhase(t *testing.T, e *Engine, phase domain.Phase) domain.WatchState {
	t.Helper()
	return waitFor(t, e, "phase "+phase.String(), func(s domain.WatchState) bool {
		return s.Phase == phase
	})
}

func displayed(s domain.WatchState) []string {
	out := make([]string, len(s.Assets))
	for i, a := range s.Assets {
		out[i] = a.Symbol
	}
	return out
}

func loadAndWait(t *testing.T, e *Engine, symbols ...string) domain.WatchState {
	t.Helper()
	e.Load(symbols)
	return waitPhase(t, e, domain.PhaseLoaded)
}

// ---- load ----

func TestEngine_LoadNoPersistedOrder(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH", "ADA")}
	e := newTestEngine(t, prices, &stubFavorites{}, &stubOrders{})

	state := loadAndWait(t, e, "BTC", "ETH", "ADA")

	want := []string{"BTC", "ETH", "ADA"}
	if !reflect.DeepEqual(displayed(state), want) {
		t.Errorf("expected %v, got %v", want, displayed(state))
	}
	if state.ReorderMode || state.Notice != "" {
		t.Errorf("unexpected flags on fresh load: %+v", state)
	}
}

func TestEngine_LoadWithPersistedOrder(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH", "ADA")}
	orders := &stubOrders{order: []string{"ADA", "BTC"}}
	e := newTestEngine(t, prices, &stubFavorites{}, orders)

	state := loadAndWait(t, e, "BTC", "ETH", "ADA")

	want := []string{"ADA", "BTC", "ETH"}
	if !reflect.DeepEqual(displayed(state), want) {
		t.Errorf("expected %v, got %v", want, displayed(state))
	}
}

func TestEngine_LoadEmptySymbols(t *testing.T) {
	prices := &stubPrices{}
	e := newTestEngine(t, prices, &stubFavorites{}, &stubOrders{})

	state := loadAndWait(t, e)

	if len(state.Assets) != 0 {
		t.Errorf("expected empty assets, got %v", displayed(state))
	}
	if atomic.LoadInt32(&prices.calls) != 0 {
		t.Error("price source should not be called for an empty symbol set")
	}
}

func TestEngine_LoadTotalFailureThenRetry(t *testing.T) {
	prices := &stubPrices{err: errors.New("network down")}
	e := newTestEngine(t, prices, &stubFavorites{}, &stubOrders{})

	e.Load([]string{"BTC"})
	state := waitPhase(t, e, domain.PhaseFailed)
	if state.Err == "" {
		t.Error("expected an error message on the failed state")
	}

	// Load is valid again from Failed.
	prices.set(quotes("BTC"), nil)
	state = loadAndWait(t, e, "BTC")
	if !reflect.DeepEqual(displayed(state), []string{"BTC"}) {
		t.Errorf("retry load failed: %v", displayed(state))
	}
}

func TestEngine_LoadDefaultsOnStorageFailures(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH")}
	favs := &stubFavorites{fetchErr: errors.New("storage failure")}
	orders := &stubOrders{readErr: errors.New("storage failure")}
	e := newTestEngine(t, prices, favs, orders)

	state := loadAndWait(t, e, "BTC", "ETH")

	// Storage reads default to empty; the load still succeeds.
	if !reflect.DeepEqual(displayed(state), []string{"BTC", "ETH"}) {
		t.Errorf("expected fetch order, got %v", displayed(state))
	}
	if len(state.Favorites) != 0 || len(state.CustomOrder) != 0 {
		t.Errorf("expected empty favorites/order, got %+v", state)
	}
}

func TestEngine_LoadIgnoredWhenLoaded(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC")}
	e := newTestEngine(t, prices, &stubFavorites{}, &stubOrders{})

	loadAndWait(t, e, "BTC")
	before := atomic.LoadInt32(&prices.calls)

	e.Load([]string{"ETH"})
	// Give the loop a moment to (not) act on it.
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&prices.calls) != before {
		t.Error("LOAD must be ignored while Loaded")
	}
}

// ---- refresh ----

func TestEngine_RefreshUpdatesPricesKeepsOverlay(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH", "ADA")}
	orders := &stubOrders{order: []string{"ADA", "BTC"}}
	favs := &stubFavorites{favs: map[string]bool{"ETH": true}}
	e := newTestEngine(t, prices, favs, orders)

	loadAndWait(t, e, "BTC", "ETH", "ADA")

	updated := quotes("BTC", "ETH", "ADA")
	updated[0].Price = decimal.NewFromInt(70000)
	prices.set(updated, nil)

	e.Refresh()
	state := waitFor(t, e, "refreshed prices", func(s domain.WatchState) bool {
		return s.Phase == domain.PhaseLoaded && len(s.Assets) > 0 &&
			s.Assets[1].Symbol == "BTC" && s.Assets[1].Price.Equal(decimal.NewFromInt(70000))
	})

	// Order, favorites and mode preserved.
	if !reflect.DeepEqual(displayed(state), []string{"ADA", "BTC", "ETH"}) {
		t.Errorf("overlay lost on refresh: %v", displayed(state))
	}
	if !state.Favorites["ETH"] {
		t.Error("favorites lost on refresh")
	}
}

func TestEngine_RefreshFailureKeepsDataAndNotices(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH")}
	e := newTestEngine(t, prices, &stubFavorites{}, &stubOrders{})

	before := loadAndWait(t, e, "BTC", "ETH")

	prices.set(nil, errors.New("backend down"))
	e.Refresh()
	state := waitFor(t, e, "refresh failure notice", func(s domain.WatchState) bool {
		return s.Phase == domain.PhaseLoaded && s.Notice != ""
	})

	// Refresh failure never discards displayed data, never reaches
	// Failed.
	if !reflect.DeepEqual(displayed(state), displayed(before)) {
		t.Errorf("assets changed on failed refresh: %v", displayed(state))
	}
}

func TestEngine_RefreshShowsStaleDataWhileFetching(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH"), block: make(chan struct{}, 1)}
	prices.block <- struct{}{} // let the initial load through
	e := newTestEngine(t, prices, &stubFavorites{}, &stubOrders{})

	loadAndWait(t, e, "BTC", "ETH")

	e.Refresh()
	state := waitPhase(t, e, domain.PhaseRefreshing)
	if !reflect.DeepEqual(displayed(state), []string{"BTC", "ETH"}) {
		t.Errorf("stale data not visible while refreshing: %v", displayed(state))
	}

	prices.block <- struct{}{}
	waitPhase(t, e, domain.PhaseLoaded)
}

// ---- reorder mode ----

func TestEngine_ToggleReorderModeTwice(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH")}
	e := newTestEngine(t, prices, &stubFavorites{}, &stubOrders{})

	before := loadAndWait(t, e, "BTC", "ETH")

	e.ToggleReorderMode()
	mid := waitFor(t, e, "reorder mode on", func(s domain.WatchState) bool { return s.ReorderMode })

	e.ToggleReorderMode()
	after := waitFor(t, e, "reorder mode off", func(s domain.WatchState) bool { return !s.ReorderMode })

	// No other field altered.
	for _, pair := range []struct {
		name string
		a, b domain.WatchState
	}{{"on", before, mid}, {"off", before, after}} {
		if !reflect.DeepEqual(displayed(pair.a), displayed(pair.b)) {
			t.Errorf("toggle %s changed assets", pair.name)
		}
		if !reflect.DeepEqual(pair.a.CustomOrder, pair.b.CustomOrder) {
			t.Errorf("toggle %s changed custom order", pair.name)
		}
		if pair.a.Notice != pair.b.Notice {
			t.Errorf("toggle %s changed notice", pair.name)
		}
	}
}

// ---- reorder ----

func TestEngine_ReorderMovesAndPersists(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH", "ADA")}
	orders := &stubOrders{}
	e := newTestEngine(t, prices, &stubFavorites{}, orders)

	loadAndWait(t, e, "BTC", "ETH", "ADA")
	e.ToggleReorderMode()
	e.Reorder(0, 2)

	state := waitFor(t, e, "reordered", func(s domain.WatchState) bool {
		return len(s.CustomOrder) == 3
	})

	want := []string{"ETH", "ADA", "BTC"}
	if !reflect.DeepEqual(displayed(state), want) {
		t.Errorf("expected %v, got %v", want, displayed(state))
	}
	if !reflect.DeepEqual(state.CustomOrder, want) {
		t.Errorf("custom order mismatch: %v", state.CustomOrder)
	}

	orders.mu.Lock()
	persisted := append([]string(nil), orders.order...)
	orders.mu.Unlock()
	if !reflect.DeepEqual(persisted, want) {
		t.Errorf("persisted order mismatch: %v", persisted)
	}
}

func TestEngine_ReorderRollbackOnWriteFailure(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH", "ADA")}
	orders := &stubOrders{writeErr: errors.New("disk full")}
	e := newTestEngine(t, prices, &stubFavorites{}, orders)

	before := loadAndWait(t, e, "BTC", "ETH", "ADA")
	e.ToggleReorderMode()
	e.Reorder(0, 2)

	state := waitFor(t, e, "rollback notice", func(s domain.WatchState) bool {
		return s.Notice != ""
	})

	// Exact rollback: displayed order equals the order before the
	// operation, state stays Loaded.
	if state.Phase != domain.PhaseLoaded {
		t.Errorf("expected Loaded after rollback, got %s", state.Phase)
	}
	if !reflect.DeepEqual(displayed(state), displayed(before)) {
		t.Errorf("rollback not exact: %v vs %v", displayed(state), displayed(before))
	}
	if !reflect.DeepEqual(state.CustomOrder, before.CustomOrder) {
		t.Errorf("custom order not rolled back: %v", state.CustomOrder)
	}
}

func TestEngine_ReorderIgnoredOutsideReorderMode(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH")}
	orders := &stubOrders{}
	e := newTestEngine(t, prices, &stubFavorites{}, orders)

	loadAndWait(t, e, "BTC", "ETH")
	e.Reorder(0, 1)
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&orders.writeCalls) != 0 {
		t.Error("reorder outside reorder mode must not persist")
	}
	if got := displayed(e.Snapshot()); !reflect.DeepEqual(got, []string{"BTC", "ETH"}) {
		t.Errorf("assets moved outside reorder mode: %v", got)
	}
}

func TestEngine_ReorderNoOpStillPersists(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH")}
	orders := &stubOrders{}
	e := newTestEngine(t, prices, &stubFavorites{}, orders)

	loadAndWait(t, e, "BTC", "ETH")
	e.ToggleReorderMode()
	waitFor(t, e, "reorder mode", func(s domain.WatchState) bool { return s.ReorderMode })

	e.Reorder(1, 1)
	waitFor(t, e, "no-op persist", func(domain.WatchState) bool {
		return atomic.LoadInt32(&orders.writeCalls) == 1
	})

	if got := displayed(e.Snapshot()); !reflect.DeepEqual(got, []string{"BTC", "ETH"}) {
		t.Errorf("no-op reorder changed assets: %v", got)
	}
}

func TestEngine_ReorderSingleAssetNoEffect(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC")}
	orders := &stubOrders{}
	e := newTestEngine(t, prices, &stubFavorites{}, orders)

	loadAndWait(t, e, "BTC")
	e.ToggleReorderMode()
	waitFor(t, e, "reorder mode", func(s domain.WatchState) bool { return s.ReorderMode })

	e.Reorder(0, 0)
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&orders.writeCalls) != 0 {
		t.Error("reordering fewer than 2 items must have no effect")
	}
}

// ---- favorites ----

func TestEngine_ToggleFavorite(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH")}
	favs := &stubFavorites{}
	e := newTestEngine(t, prices, favs, &stubOrders{})

	loadAndWait(t, e, "BTC", "ETH")

	e.ToggleFavorite("ETH")
	state := waitFor(t, e, "favorited", func(s domain.WatchState) bool { return s.Favorites["ETH"] })
	if state.Notice != "" {
		t.Errorf("unexpected notice: %q", state.Notice)
	}

	e.ToggleFavorite("ETH")
	waitFor(t, e, "unfavorited", func(s domain.WatchState) bool { return !s.Favorites["ETH"] })

	if atomic.LoadInt32(&favs.setCalls) != 2 {
		t.Errorf("expected 2 SetFavorite calls, got %d", favs.setCalls)
	}
}

func TestEngine_ToggleFavoriteRollbackOnFailure(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH")}
	favs := &stubFavorites{setErr: errors.New("storage failure")}
	e := newTestEngine(t, prices, favs, &stubOrders{})

	loadAndWait(t, e, "BTC", "ETH")

	e.ToggleFavorite("BTC")
	state := waitFor(t, e, "favorite rollback", func(s domain.WatchState) bool { return s.Notice != "" })

	if state.Favorites["BTC"] {
		t.Error("favorite flag not rolled back")
	}
	if state.Phase != domain.PhaseLoaded {
		t.Errorf("expected Loaded, got %s", state.Phase)
	}
}

// ---- notice ----

func TestEngine_ClearNotice(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH")}
	e := newTestEngine(t, prices, &stubFavorites{}, &stubOrders{})

	before := loadAndWait(t, e, "BTC", "ETH")

	prices.set(nil, errors.New("down"))
	e.Refresh()
	waitFor(t, e, "notice", func(s domain.WatchState) bool { return s.Notice != "" })

	e.ClearNotice()
	state := waitFor(t, e, "notice cleared", func(s domain.WatchState) bool {
		return s.Phase == domain.PhaseLoaded && s.Notice == ""
	})

	// Only the message is cleared.
	if !reflect.DeepEqual(displayed(state), displayed(before)) {
		t.Errorf("clearing the notice changed assets: %v", displayed(state))
	}
}

// ---- invariants ----

func TestEngine_PublishedSymbolsAlwaysUnique(t *testing.T) {
	dupes := append(quotes("BTC", "ETH"), quotes("BTC", "ETH", "BTC")...)
	prices := &stubPrices{assets: dupes}
	e := newTestEngine(t, prices, &stubFavorites{}, &stubOrders{})

	state := loadAndWait(t, e, "BTC", "ETH")
	assertUnique(t, state)

	e.Refresh()
	state = waitFor(t, e, "refresh done", func(s domain.WatchState) bool {
		return s.Phase == domain.PhaseLoaded
	})
	assertUnique(t, state)
}

func assertUnique(t *testing.T, state domain.WatchState) {
	t.Helper()
	seen := make(map[string]bool)
	for _, a := range state.Assets {
		if seen[a.Symbol] {
			t.Errorf("duplicate symbol published: %s", a.Symbol)
		}
		seen[a.Symbol] = true
	}
}

func TestEngine_SnapshotIsolatedFromLaterTransitions(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH", "ADA")}
	e := newTestEngine(t, prices, &stubFavorites{}, &stubOrders{})

	loadAndWait(t, e, "BTC", "ETH", "ADA")
	snap := e.Snapshot()
	snapOrder := displayed(snap)

	e.ToggleReorderMode()
	e.Reorder(0, 2)
	waitFor(t, e, "reorder", func(s domain.WatchState) bool { return len(s.CustomOrder) == 3 })

	if !reflect.DeepEqual(displayed(snap), snapOrder) {
		t.Error("earlier snapshot mutated by a later transition")
	}
}

// ---- teardown ----

func TestEngine_StopDiscardsInFlightResult(t *testing.T) {
	prices := &stubPrices{assets: quotes("BTC", "ETH"), block: make(chan struct{}, 1)}
	prices.block <- struct{}{} // let the load through
	e := NewEngine(16, prices, &stubFavorites{}, &stubOrders{}, nil, nil)
	e.Start(context.Background())

	e.Load([]string{"BTC", "ETH"})
	waitPhase(t, e, domain.PhaseLoaded)

	e.Refresh()
	waitPhase(t, e, domain.PhaseRefreshing)

	stopped := make(chan struct{})
	go func() {
		e.Stop()
		close(stopped)
	}()
	time.Sleep(20 * time.Millisecond)

	// Release the in-flight fetch after teardown began; its result
	// must be discarded.
	prices.block <- struct{}{}
	<-stopped

	state := e.Snapshot()
	if state.Phase != domain.PhaseRefreshing {
		t.Errorf("in-flight result published after teardown: %s", state.Phase)
	}

	// Submissions after Stop are dropped.
	e.Refresh()
	time.Sleep(20 * time.Millisecond)
	if e.Snapshot().Phase != domain.PhaseRefreshing {
		t.Error("event processed after Stop")
	}
}

// ---- replay equivalence ----

// Persist-then-reload must reproduce the same order as replaying the
// same operations fresh.
func TestEngine_RestartReproducesReplayedOrder(t *testing.T) {
	moves := []struct{ from, to int }{{0, 3}, {2, 0}, {1, 2}}

	run := func(orders *stubOrders) []string {
		prices := &stubPrices{assets: quotes("BTC", "ETH", "ADA", "SOL")}
		e := NewEngine(16, prices, &stubFavorites{}, orders, nil, nil)
		e.Start(context.Background())
		defer e.Stop()

		e.Load([]string{"BTC", "ETH", "ADA", "SOL"})
		waitPhase(t, e, domain.PhaseLoaded)
		e.ToggleReorderMode()
		for _, m := range moves {
			e.Reorder(m.from, m.to)
		}
		state := waitFor(t, e, "all moves", func(domain.WatchState) bool {
			return atomic.LoadInt32(&orders.writeCalls) >= int32(len(moves))
		})
		_ = state
		return displayed(e.Snapshot())
	}

	persisting := &stubOrders{}
	want := run(persisting)

	// Simulated restart: a fresh engine loading the persisted order.
	prices := &stubPrices{assets: quotes("BTC", "ETH", "ADA", "SOL")}
	e := NewEngine(16, prices, &stubFavorites{}, persisting, nil, nil)
	e.Start(context.Background())
	defer e.Stop()

	e.Load([]string{"BTC", "ETH", "ADA", "SOL"})
	state := waitPhase(t, e, domain.PhaseLoaded)

	if !reflect.DeepEqual(displayed(state), want) {
		t.Errorf("restart order %v != replayed order %v", displayed(state), want)
	}
}
