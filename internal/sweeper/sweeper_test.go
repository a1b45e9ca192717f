package sweeper

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/Bitsy-Chuck/pomodex-sub000/internal/store"
)

func TestSweepOnceNoIdleProjectsNeverTouchesOrchestrator(t *testing.T) {
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	defer st.Close()

	// orchestrator is left nil: sweepOnce must not dereference it when there
	// is nothing to stop.
	sw := New(st, nil, 30*time.Minute, time.Hour, log.New(io.Discard, "", 0))
	sw.sweepOnce(context.Background())
}
