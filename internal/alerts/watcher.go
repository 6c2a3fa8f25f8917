package alerts

import (
	"context"
	"log/slog"
	"sync"

	"crypto_watch/internal/domain"

	"github.com/shopspring/decimal"
)

// Notifier delivers a fired alert. Delivery transport (push, mail,
// sound) is a collaborator concern.
type Notifier interface {
	Notify(ctx context.Context, rule *Rule, price decimal.Decimal) error
}

// LogNotifier writes fired alerts to the log. The default sink and the
// test stand-in.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, rule *Rule, price decimal.Decimal) error {
	slog.Info("🔔 PRICE ALERT",
		slog.String("symbol", rule.Symbol),
		slog.String("direction", rule.Direction),
		slog.String("threshold", rule.Threshold.String()),
		slog.String("price", price.String()))
	return nil
}

// PendingRule is a rule declared in config, waiting for the first
// known price of its symbol so the direction can be inferred.
type PendingRule struct {
	Symbol     string
	Threshold  decimal.Decimal
	Persistent bool
}

// Watcher evaluates rules against each published snapshot.
// Non-persistent rules deactivate after firing; persistent rules re-arm
// once the price leaves the trigger zone.
type Watcher struct {
	mu       sync.Mutex
	pending  []PendingRule
	rules    []*Rule
	notifier Notifier
}

// NewWatcher creates a watcher arming pending rules as prices appear.
// A nil notifier falls back to LogNotifier.
func NewWatcher(pending []PendingRule, notifier Notifier) *Watcher {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Watcher{pending: pending, notifier: notifier}
}

// OnState is the engine's onChange hook.
func (w *Watcher) OnState(ctx context.Context, state domain.WatchState) {
	if state.Phase != domain.PhaseLoaded && state.Phase != domain.PhaseRefreshing {
		return
	}

	prices := make(map[string]decimal.Decimal, len(state.Assets))
	for _, a := range state.Assets {
		prices[a.Symbol] = a.Price
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.armPending(prices)

	for _, rule := range w.rules {
		price, ok := prices[rule.Symbol]
		if !ok {
			continue
		}

		triggered := rule.Check(price)

		if !triggered {
			// Price left the trigger zone: persistent rules re-arm.
			if rule.fired && rule.Persistent {
				rule.fired = false
			}
			continue
		}

		if rule.fired {
			continue
		}

		if err := w.notifier.Notify(ctx, rule, price); err != nil {
			slog.Warn("Alert delivery failed",
				slog.String("symbol", rule.Symbol), slog.Any("error", err))
			continue
		}

		rule.fired = true
		if !rule.Persistent {
			rule.SetActive(false)
		}
	}
}

// armPending promotes pending rules whose symbol now has a known price.
// Must be called with the mutex held.
func (w *Watcher) armPending(prices map[string]decimal.Decimal) {
	if len(w.pending) == 0 {
		return
	}

	remaining := w.pending[:0]
	for _, p := range w.pending {
		price, ok := prices[p.Symbol]
		if !ok {
			remaining = append(remaining, p)
			continue
		}

		rule := NewRule(p.Symbol, p.Threshold, price, p.Persistent)
		w.rules = append(w.rules, rule)
		slog.Info("Alert armed",
			slog.String("symbol", rule.Symbol),
			slog.String("direction", rule.Direction),
			slog.String("threshold", rule.Threshold.String()))
	}
	w.pending = remaining
}
