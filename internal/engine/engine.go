package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"crypto_watch/internal/domain"
	"crypto_watch/internal/event"
	"crypto_watch/pkg/ordering"
)

// Engine is the core single-threaded event processor. It owns the
// current WatchState and is the only writer: every event, including any
// I/O it triggers, fully resolves before its resulting snapshot
// publishes, so transition logic needs no lock and published-state
// order exactly matches submission order.
type Engine struct {
	inbox chan event.Event

	prices    PriceSource
	favorites FavoritesSource
	orders    OrderStore
	journal   Journal // optional, best-effort

	// Working state, owned by the run goroutine.
	state   *domain.WatchState
	symbols []string

	// Boundary: notifies UI or other systems of state changes.
	onChange func(domain.WatchState)

	mu        sync.RWMutex // external reads and lifecycle fields only
	published domain.WatchState
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewEngine creates an engine wired to its collaborators. journal and
// onChange may be nil.
func NewEngine(inboxSize int, prices PriceSource, favorites FavoritesSource, orders OrderStore, journal Journal, onChange func(domain.WatchState)) *Engine {
	return &Engine{
		inbox:     make(chan event.Event, inboxSize),
		prices:    prices,
		favorites: favorites,
		orders:    orders,
		journal:   journal,
		state:     &domain.WatchState{Phase: domain.PhaseUninitialized},
		onChange:  onChange,
	}
}

// Start launches the event loop. Must be called exactly once.
func (e *Engine) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)

	e.mu.Lock()
	e.runCtx = runCtx
	e.cancel = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.run(runCtx)
}

// Stop tears the engine down: queued events are dropped and in-flight
// I/O results are discarded before publishing.
func (e *Engine) Stop() {
	e.mu.RLock()
	cancel := e.cancel
	e.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// Snapshot returns the latest published state (external read).
func (e *Engine) Snapshot() domain.WatchState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *e.published.Clone()
}

// Event-submission entry points. After Stop, submissions are dropped.

// Load starts the initial load of the given symbols.
func (e *Engine) Load(symbols []string) {
	e.submit(&event.LoadEvent{BaseEvent: baseEvent(), Symbols: symbols})
}

// Refresh requests a price refresh. Scheduler ticks and user pulls land
// here alike.
func (e *Engine) Refresh() {
	e.submit(&event.RefreshEvent{BaseEvent: baseEvent()})
}

// ToggleReorderMode flips reorder mode.
func (e *Engine) ToggleReorderMode() {
	e.submit(&event.ToggleReorderModeEvent{BaseEvent: baseEvent()})
}

// Reorder moves the displayed asset at from to to.
func (e *Engine) Reorder(from, to int) {
	e.submit(&event.ReorderEvent{BaseEvent: baseEvent(), From: from, To: to})
}

// ToggleFavorite flips the favorite flag of symbol.
func (e *Engine) ToggleFavorite(symbol string) {
	e.submit(&event.ToggleFavoriteEvent{BaseEvent: baseEvent(), Symbol: symbol})
}

// ClearNotice dismisses the transient notice.
func (e *Engine) ClearNotice() {
	e.submit(&event.ClearNoticeEvent{BaseEvent: baseEvent()})
}

func baseEvent() event.BaseEvent {
	return event.BaseEvent{Ts: time.Now().UnixMicro()}
}

func (e *Engine) submit(ev event.Event) {
	e.mu.RLock()
	ctx := e.runCtx
	e.mu.RUnlock()

	if ctx == nil {
		slog.Warn("Event dropped: engine not started", slog.Any("type", ev.GetType()))
		return
	}

	select {
	case <-ctx.Done():
		slog.Debug("Event dropped after teardown", slog.Any("type", ev.GetType()))
	case e.inbox <- ev:
	}
}

// run is the main event loop. It MUST be the only goroutine touching
// e.state and e.symbols.
func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()
	slog.Info("Watch engine started (single-thread event loop)")

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			e.dumpState("panic_dump.json")
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Watch engine stopping...")
			return
		case ev := <-e.inbox:
			e.processEvent(ctx, ev)
		}
	}
}

func (e *Engine) processEvent(ctx context.Context, ev event.Event) {
	e.appendJournal(ctx, ev)

	switch evt := ev.(type) {
	case *event.LoadEvent:
		e.handleLoad(ctx, evt)
	case *event.RefreshEvent:
		e.handleRefresh(ctx)
	case *event.ToggleReorderModeEvent:
		e.handleToggleReorderMode(ctx)
	case *event.ReorderEvent:
		e.handleReorder(ctx, evt)
	case *event.ToggleFavoriteEvent:
		e.handleToggleFavorite(ctx, evt)
	case *event.ClearNoticeEvent:
		e.handleClearNotice(ctx)
	default:
		slog.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}
}

// appendJournal logs the action best-effort; a failed append never
// affects the transition.
func (e *Engine) appendJournal(ctx context.Context, ev event.Event) {
	if e.journal == nil {
		return
	}

	var detail string
	switch evt := ev.(type) {
	case *event.LoadEvent:
		detail = strings.Join(evt.Symbols, ",")
	case *event.ReorderEvent:
		detail = fmt.Sprintf("from=%d to=%d", evt.From, evt.To)
	case *event.ToggleFavoriteEvent:
		detail = evt.Symbol
	}

	if err := e.journal.Append(ctx, ev.GetType().String(), ev.GetTs(), detail); err != nil {
		slog.Debug("Journal append failed", slog.Any("error", err))
	}
}

// publish clones the working state into the published snapshot. A
// liveness check discards results arriving after teardown.
func (e *Engine) publish(ctx context.Context) {
	if ctx.Err() != nil {
		slog.Debug("State publish discarded after teardown")
		return
	}

	snap := e.state.Clone()

	e.mu.Lock()
	e.published = *snap
	e.mu.Unlock()

	if e.onChange != nil {
		e.onChange(*snap)
	}
}

func (e *Engine) handleLoad(ctx context.Context, ev *event.LoadEvent) {
	if e.state.Phase != domain.PhaseUninitialized && e.state.Phase != domain.PhaseFailed {
		slog.Warn("LOAD ignored", slog.String("phase", e.state.Phase.String()))
		return
	}

	e.symbols = append([]string(nil), ev.Symbols...)
	e.state = &domain.WatchState{Phase: domain.PhaseLoading}
	e.publish(ctx)

	// Favorites and order reads default on failure: neither can fail
	// the load.
	favorites, err := e.favorites.FetchFavorites(ctx)
	if err != nil {
		slog.Warn("Favorites read failed, defaulting to empty", slog.Any("error", err))
		favorites = nil
	}
	if favorites == nil {
		favorites = make(map[string]bool)
	}

	order, err := e.orders.ReadOrder(ctx)
	if err != nil {
		slog.Warn("Order read failed, defaulting to empty", slog.Any("error", err))
		order = nil
	}

	var assets []domain.Asset
	if len(e.symbols) > 0 {
		fetched, err := e.prices.FetchPrices(ctx, e.symbols)
		if err != nil {
			// The sole terminal failure: the very first load produced
			// nothing to fall back to.
			e.state = &domain.WatchState{Phase: domain.PhaseFailed, Err: err.Error()}
			e.publish(ctx)
			return
		}
		assets = ordering.Apply(domain.DedupeAssets(fetched), order)
	}

	e.state = &domain.WatchState{
		Phase:       domain.PhaseLoaded,
		Assets:      assets,
		Favorites:   favorites,
		CustomOrder: order,
	}
	e.publish(ctx)
}

func (e *Engine) handleRefresh(ctx context.Context) {
	if e.state.Phase != domain.PhaseLoaded {
		slog.Debug("REFRESH ignored", slog.String("phase", e.state.Phase.String()))
		return
	}

	// Stale data stays visible while the fetch runs.
	refreshing := e.state.Clone()
	refreshing.Phase = domain.PhaseRefreshing
	e.state = refreshing
	e.publish(ctx)

	next := e.state.Clone()
	next.Phase = domain.PhaseLoaded

	fetched, err := e.prices.FetchPrices(ctx, e.symbols)
	if err != nil {
		// Refresh failure never discards displayed data.
		slog.Warn("Refresh failed, keeping prior assets", slog.Any("error", err))
		next.Notice = "Refresh failed, showing last known prices"
	} else {
		next.Assets = ordering.Apply(domain.DedupeAssets(fetched), next.CustomOrder)
		next.Notice = ""
	}

	e.state = next
	e.publish(ctx)
}

func (e *Engine) handleToggleReorderMode(ctx context.Context) {
	if e.state.Phase != domain.PhaseLoaded {
		return
	}

	next := e.state.Clone()
	next.ReorderMode = !next.ReorderMode
	e.state = next
	e.publish(ctx)
}

func (e *Engine) handleReorder(ctx context.Context, ev *event.ReorderEvent) {
	if e.state.Phase != domain.PhaseLoaded || !e.state.ReorderMode {
		return
	}

	n := len(e.state.Assets)
	if n < 2 {
		return
	}
	if ev.From < 0 || ev.From >= n || ev.To < 0 || ev.To > n {
		slog.Warn("REORDER out of range", slog.Int("from", ev.From), slog.Int("to", ev.To), slog.Int("len", n))
		return
	}

	// The new custom order is the full displayed sequence after the
	// move. A no-op move is still persisted (idempotent).
	nextOrder := ordering.Move(ordering.Symbols(e.state.Assets), ev.From, ev.To)

	e.applyOptimistically(ctx,
		func(s *domain.WatchState) {
			s.CustomOrder = nextOrder
			s.Assets = ordering.Apply(s.Assets, nextOrder)
		},
		func(ctx context.Context) error {
			return e.orders.WriteOrder(ctx, nextOrder)
		},
		"Could not save your custom order",
	)
}

func (e *Engine) handleToggleFavorite(ctx context.Context, ev *event.ToggleFavoriteEvent) {
	if e.state.Phase != domain.PhaseLoaded {
		return
	}

	symbol := ev.Symbol
	favorite := !e.state.Favorites[symbol]

	e.applyOptimistically(ctx,
		func(s *domain.WatchState) {
			if s.Favorites == nil {
				s.Favorites = make(map[string]bool)
			}
			if favorite {
				s.Favorites[symbol] = true
			} else {
				delete(s.Favorites, symbol)
			}
		},
		func(ctx context.Context) error {
			return e.favorites.SetFavorite(ctx, symbol, favorite)
		},
		"Could not update favorites",
	)
}

func (e *Engine) handleClearNotice(ctx context.Context) {
	if e.state.Notice == "" {
		return
	}

	next := e.state.Clone()
	next.Notice = ""
	e.state = next
	e.publish(ctx)
}

// dumpState writes the current state to a file (for post-mortem).
func (e *Engine) dumpState(filename string) {
	slog.Info("Dumping engine state...", slog.String("file", filename))

	data := struct {
		Symbols []string           `json:"symbols"`
		State   *domain.WatchState `json:"state"`
	}{
		Symbols: e.symbols,
		State:   e.state,
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
