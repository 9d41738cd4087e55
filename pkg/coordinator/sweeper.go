package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper periodically retries CheckAndMerge across every known namespace,
// recovering ticks stalled between a journal insert and its merge — e.g.
// after a crash mid-Admission or a failed merge (spec §9: "a background
// sweeper may run the same function periodically to recover"). A tick that
// still lacks a live actor's submission is not complete, so the sweeper does
// not merge it. Modeled on the teacher's queue worker
// stop-channel/poll-loop pattern (pkg/queue/worker.go).
type Sweeper struct {
	coordinator *Coordinator
	names       func() []string
	interval    time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweeper returns a Sweeper that calls names() each tick to discover the
// current namespace set, so newly created namespaces are picked up without
// a restart.
func NewSweeper(c *Coordinator, names func() []string, interval time.Duration) *Sweeper {
	return &Sweeper{
		coordinator: c,
		names:       names,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the sweep loop in a goroutine.
func (sw *Sweeper) Start(ctx context.Context) {
	sw.wg.Add(1)
	go sw.run(ctx)
}

// Stop signals the sweeper to stop and waits for it to finish. Safe to call
// multiple times.
func (sw *Sweeper) Stop() {
	sw.stopOnce.Do(func() { close(sw.stopCh) })
	sw.wg.Wait()
}

func (sw *Sweeper) run(ctx context.Context) {
	defer sw.wg.Done()

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	slog.Info("sweeper started", "interval", sw.interval)

	for {
		select {
		case <-sw.stopCh:
			slog.Info("sweeper shutting down")
			return
		case <-ctx.Done():
			slog.Info("sweeper context cancelled")
			return
		case <-ticker.C:
			sw.sweepOnce(ctx)
		}
	}
}

func (sw *Sweeper) sweepOnce(ctx context.Context) {
	for _, ns := range sw.names() {
		result, err := sw.coordinator.CheckAndMerge(ctx, ns)
		if err != nil {
			slog.Error("sweeper merge failed", "namespace", ns, "error", err)
			continue
		}
		if result.Merged {
			slog.Info("sweeper recovered stalled tick", "namespace", ns, "old_tick", result.OldTick, "new_tick", result.NewTick)
		}
	}
}
