// Package sched runs agent tasks with bounded parallelism. Admission is a
// counting semaphore (errgroup's limit), not polling; a failing task never
// cancels its siblings, and every launched task runs to completion before
// the aggregate verdict is computed.
package sched

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/marcohefti/agent-arena/internal/task"
)

// Runnable is the unit of work the scheduler admits. *task.Task satisfies
// it; tests substitute doubles.
type Runnable interface {
	ID() string
	Execute(ctx context.Context) task.Outcome
}

// Observer is notified at task start and finish. Used for progress output
// and for concurrency assertions in tests.
type Observer interface {
	TaskStarted(id string)
	TaskFinished(id string, out task.Outcome)
}

// Verdict is the process-wide result: failure if any agent task failed.
type Verdict struct {
	Outcomes []task.Outcome
	Failed   bool
}

// Run launches every item, at most jobs concurrently. jobs <= 0 means one
// slot per item, i.e. unbounded relative to the request set.
func Run(ctx context.Context, items []Runnable, jobs int, obs Observer) Verdict {
	if jobs <= 0 || jobs > len(items) {
		jobs = len(items)
	}

	outcomes := make([]task.Outcome, len(items))
	g := new(errgroup.Group)
	g.SetLimit(jobs)
	for i, it := range items {
		i, it := i, it
		g.Go(func() error {
			if obs != nil {
				obs.TaskStarted(it.ID())
			}
			out := it.Execute(ctx)
			outcomes[i] = out
			if obs != nil {
				obs.TaskFinished(it.ID(), out)
			}
			return nil
		})
	}
	// Tasks report outcomes, never errors: Wait only joins.
	_ = g.Wait()

	v := Verdict{Outcomes: outcomes}
	for _, out := range outcomes {
		if out.Failed {
			v.Failed = true
		}
	}
	return v
}
