// Package cleanup provides a background retention service that prunes old
// tile_history, actor_history, audit, and chat rows from every known
// namespace. Grounded on the teacher's pkg/cleanup.Service periodic
// soft-delete loop, adapted from session/event retention to per-namespace
// history pruning.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/usize/monument/pkg/store"
)

// Service periodically enforces history retention across every namespace
// known to a registry. All operations are idempotent.
type Service struct {
	registry         *store.Registry
	names            func() []string
	retentionTicks   int64
	keepChatMessages int
	interval         time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a cleanup Service bound to registry.
func NewService(registry *store.Registry, names func() []string, retentionTicks int64, keepChatMessages int, interval time.Duration) *Service {
	return &Service{
		registry:         registry,
		names:            names,
		retentionTicks:   retentionTicks,
		keepChatMessages: keepChatMessages,
		interval:         interval,
	}
}

// Start launches the background cleanup loop. Later calls are no-ops.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started", "retention_ticks", s.retentionTicks, "keep_chat_messages", s.keepChatMessages, "interval", s.interval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	for _, name := range s.names() {
		st, err := s.registry.Open(ctx, name)
		if err != nil {
			slog.Error("retention: open namespace failed", "namespace", name, "error", err)
			continue
		}
		removed, err := st.PruneHistory(ctx, s.retentionTicks, s.keepChatMessages)
		if err != nil {
			slog.Error("retention: prune failed", "namespace", name, "error", err)
			continue
		}
		if removed > 0 {
			slog.Info("retention: pruned history rows", "namespace", name, "removed", removed)
		}
	}
}
