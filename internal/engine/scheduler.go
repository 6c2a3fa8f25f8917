package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler raises periodic Refresh events through the same entry point
// as user-initiated refresh; the engine never distinguishes origin.
// Overlapping ticks just queue extra refreshes, cheap no-ops when
// nothing changed.
type Scheduler struct {
	engine   *Engine
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler ticking every interval.
func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	return &Scheduler{engine: engine, interval: interval}
}

// Start begins ticking. Cancelled by Stop or by ctx.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Refresh scheduler stopped")
				return
			case <-ticker.C:
				s.engine.Refresh()
			}
		}
	}()

	slog.Info("Refresh scheduler started", slog.Duration("interval", s.interval))
}

// Stop cancels the timer and waits for the tick goroutine; no orphaned
// timers survive teardown.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
