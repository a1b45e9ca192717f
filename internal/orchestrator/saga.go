// Package orchestrator implements C5: the project state machine and the
// multi-step sagas (create, start, stop, snapshot, restore, delete) that
// move a project between states, compensating on partial failure (§4.5).
package orchestrator

import "log"

// step is one compensable unit of a saga: do performs the forward action,
// undo reverses it. A saga runs its steps in order and, on failure, runs
// undo for every step that already succeeded, in reverse order — the same
// shape as the teacher's activity-based workflow steps, driven in-process
// instead of by an external workflow engine (§5 "single process").
type step struct {
	name string
	do   func() error
	undo func()
}

// runSaga executes steps in order. If a step's do fails, every prior step's
// undo runs in reverse order before the error is returned.
func runSaga(logger *log.Logger, steps []step) error {
	completed := make([]step, 0, len(steps))
	for _, s := range steps {
		if err := s.do(); err != nil {
			logger.Printf("saga step %q failed: %v; compensating %d prior step(s)", s.name, err, len(completed))
			for i := len(completed) - 1; i >= 0; i-- {
				if completed[i].undo != nil {
					completed[i].undo()
				}
			}
			return err
		}
		completed = append(completed, s)
	}
	return nil
}
