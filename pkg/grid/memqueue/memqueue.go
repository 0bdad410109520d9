// Package memqueue is a grid.Queue in memory, running jobs one by one in
// this process.
//
// It is used to run a decomposed experiment without a grid, and to test
// decomposition.
package memqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pombredanne/facereclib/pkg/domain"
	"github.com/pombredanne/facereclib/pkg/grid"
)

// Runner runs a stage of a job.
type Runner func(ctx context.Context, sc domain.StageContext) error

type Queue struct {
	mu    sync.Mutex
	order []grid.JobID
	jobs  map[grid.JobID]*grid.Job
	now   func() time.Time
}

var _ grid.Queue = &Queue{}

func New() *Queue {
	return &Queue{jobs: map[grid.JobID]*grid.Job{}, now: time.Now}
}

// Submit accepts spec. Its dependencies should have been submitted.
func (q *Queue) Submit(ctx context.Context, spec grid.JobSpec) (grid.JobID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, d := range spec.Dependencies {
		if _, ok := q.jobs[d]; !ok {
			return "", fmt.Errorf("%s: unknown dependency %s", spec.Name, d)
		}
	}
	spec.Dependencies = append([]grid.JobID{}, spec.Dependencies...)

	id := grid.JobID(uuid.NewString())
	now := q.now()
	q.jobs[id] = &grid.Job{ID: id, Spec: spec, Status: grid.Pending, CreatedAt: now, UpdatedAt: now}
	q.order = append(q.order, id)
	return id, nil
}

// Jobs returns copies of submitted jobs, in submission order.
func (q *Queue) Jobs() []grid.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	ret := make([]grid.Job, 0, len(q.order))
	for _, id := range q.order {
		ret = append(ret, *q.jobs[id])
	}
	return ret
}

func (q *Queue) Get(id grid.JobID) (grid.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return grid.Job{}, false
	}
	return *j, true
}

// next finds a pending job whose dependencies are done, invalidating pending
// jobs behind failures on the way.
func (q *Queue) next() (*grid.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for changed := true; changed; {
		changed = false
		for _, id := range q.order {
			j := q.jobs[id]
			if j.Status != grid.Pending {
				continue
			}
			ready := true
			for _, d := range j.Spec.Dependencies {
				switch q.jobs[d].Status {
				case grid.Done:
				case grid.Failed, grid.Invalidated:
					j.Status = grid.Invalidated
					j.Message = fmt.Sprintf("dependency %s is %s", d, q.jobs[d].Status)
					j.UpdatedAt = q.now()
					changed = true
					ready = false
				default:
					ready = false
				}
				if j.Status != grid.Pending {
					break
				}
			}
			if ready {
				j.Status = grid.Running
				j.UpdatedAt = q.now()
				return j, true
			}
		}
	}
	return nil, false
}

func (q *Queue) finish(j *grid.Job, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j.UpdatedAt = q.now()
	if err != nil {
		j.Status = grid.Failed
		j.ExitCode = 1
		j.Message = err.Error()
		return
	}
	j.Status = grid.Done
}

// Run runs ready jobs until none is left.
//
// A failed job invalidates its dependents and does not stop other jobs.
// Run returns errors of failed jobs, joined.
func (q *Queue) Run(ctx context.Context, run Runner) error {
	errs := []error{}
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		j, ok := q.next()
		if !ok {
			break
		}
		err := run(ctx, j.Spec.Context)
		q.finish(j, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("job %s (%s): %w", j.Spec.Name, j.ID, err))
		}
	}
	return errors.Join(errs...)
}
