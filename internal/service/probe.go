package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/colabtask/colabtask/internal/domain"
)

// ProbeResult aggregates the outcome of a concurrency simulation.
type ProbeResult struct {
	Attempts  int `json:"attempts"`
	Successes int `json:"successes"`
	Conflicts int `json:"conflicts"`
}

// SimulateConcurrentUpdates races `editors` simulated users against one task
// to exercise the optimistic concurrency path.
//
// Each editor independently re-reads the current record just before its own
// attempt, mirroring real racing clients, and submits an update to the next
// status in the pending -> in_progress -> done rotation using the version it
// observed at read time. At most one update can succeed per contended
// version; how many distinct versions the editors observe depends on the
// read/write interleaving, so the split between successes and conflicts
// varies run to run.
func (s *TaskService) SimulateConcurrentUpdates(
	ctx context.Context,
	taskID string,
	editors int,
) (*ProbeResult, error) {
	if editors < 1 {
		return nil, fmt.Errorf("editors must be at least 1, got %d", editors)
	}

	// Fail fast on a bad identifier before spawning anything.
	if _, err := s.taskRepo.GetByID(ctx, taskID); err != nil {
		return nil, err
	}

	slog.Info("starting concurrency simulation",
		"task_id", taskID,
		"editors", editors,
	)

	var (
		wg        sync.WaitGroup
		successes atomic.Int64
		conflicts atomic.Int64
	)

	for i := 0; i < editors; i++ {
		wg.Add(1)
		editor := fmt.Sprintf("sim_user_%d", i+1)

		go func() {
			defer wg.Done()

			task, err := s.taskRepo.GetByID(ctx, taskID)
			if err != nil {
				slog.Warn("simulated editor failed to read task",
					"task_id", taskID,
					"editor", editor,
					"error", err,
				)
				return
			}

			next := task.Status.Next()
			_, err = s.UpdateTask(ctx, taskID, domain.TaskChanges{Status: &next}, task.Version, editor)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, domain.ErrVersionConflict):
				conflicts.Add(1)
			default:
				slog.Error("simulated editor hit unexpected error",
					"task_id", taskID,
					"editor", editor,
					"error", err,
				)
			}
		}()
	}

	wg.Wait()

	result := &ProbeResult{
		Attempts:  editors,
		Successes: int(successes.Load()),
		Conflicts: int(conflicts.Load()),
	}

	slog.Info("concurrency simulation completed",
		"task_id", taskID,
		"attempts", result.Attempts,
		"successes", result.Successes,
		"conflicts", result.Conflicts,
	)

	return result, nil
}
