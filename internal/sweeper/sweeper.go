// Package sweeper implements C6: a ticker that periodically stops projects
// that have been running without a terminal connection past the configured
// idle threshold (§4.6).
package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/model"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/orchestrator"
	"github.com/Bitsy-Chuck/pomodex-sub000/internal/store"
)

type Sweeper struct {
	store         *store.Store
	orchestrator  *orchestrator.Orchestrator
	idleThreshold time.Duration
	interval      time.Duration
	logger        *log.Logger
}

func New(st *store.Store, orch *orchestrator.Orchestrator, idleThreshold, interval time.Duration, logger *log.Logger) *Sweeper {
	return &Sweeper{store: st, orchestrator: orch, idleThreshold: idleThreshold, interval: interval, logger: logger}
}

// Run blocks, ticking every interval until ctx is cancelled (§4.6 "runs on
// a fixed interval, independent of request traffic").
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.idleThreshold)
	idle, err := s.store.ListRunningIdleSince(ctx, cutoff)
	if err != nil {
		s.logger.Printf("sweeper: list idle projects failed: %v", err)
		return
	}
	for _, p := range idle {
		s.stopOne(ctx, p)
	}
}

func (s *Sweeper) stopOne(ctx context.Context, p model.Project) {
	if _, err := s.orchestrator.StopProject(ctx, p); err != nil {
		s.logger.Printf("sweeper: stop project %s failed: %v", p.ID, err)
		return
	}
	s.logger.Printf("sweeper: stopped idle project %s (last_connection=%v)", p.ID, p.LastConnectionAt)
}
