package engine

import (
	"context"
	"log/slog"

	"crypto_watch/internal/domain"
)

// applyOptimistically wraps an order-or-favorites mutation with the
// optimistic-update discipline:
//
//  1. capture the previous state,
//  2. apply mutate to a clone and publish it immediately,
//  3. run persist,
//  4. on failure republish the captured state with rollbackNotice set.
//
// The phase stays Loaded in both outcomes: a storage failure is
// recoverable and must not interrupt the live view. Because events are
// processed strictly sequentially, nothing can interleave between the
// optimistic publish and a rollback, so divergence between displayed
// and persisted state is bounded to one persist round trip.
//
// Must only be called from the run goroutine.
func (e *Engine) applyOptimistically(ctx context.Context, mutate func(*domain.WatchState), persist func(context.Context) error, rollbackNotice string) {
	prev := e.state.Clone()

	next := e.state.Clone()
	mutate(next)
	next.Notice = ""
	e.state = next
	e.publish(ctx)

	if err := persist(ctx); err != nil {
		slog.Warn("Persist failed, rolling back",
			slog.Any("error", err),
			slog.String("notice", rollbackNotice))
		prev.Notice = rollbackNotice
		e.state = prev
		e.publish(ctx)
	}
}
