// Package dispatcher moves jobs of a queue onto workers, and the states of
// workers back into the queue.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/pombredanne/facereclib/pkg/domain"
	"github.com/pombredanne/facereclib/pkg/grid"
	"github.com/pombredanne/facereclib/pkg/grid/k8s"
	"github.com/pombredanne/facereclib/pkg/grid/worker"
	"github.com/pombredanne/facereclib/pkg/loop"
)

// Queue is the part of pkg/grid/postgres.Queue used by the dispatcher.
type Queue interface {
	// Ready takes jobs to be started, marking them starting.
	Ready(ctx context.Context, limit int) ([]grid.Job, error)

	List(ctx context.Context, statuses ...grid.Status) ([]grid.Job, error)

	SetStatus(ctx context.Context, id grid.JobID, status grid.Status, exitCode int, message string) error
}

type Signer interface {
	Sign(id grid.JobID, sc domain.StageContext) (string, error)
}

type Workers interface {
	Spawn(ctx context.Context, j grid.Job, token string) (worker.Worker, error)

	// Find a worker. It is k8s.ErrMissing when there is none.
	Find(ctx context.Context, id grid.JobID) (worker.Worker, error)
}

type Dispatcher struct {
	queue   Queue
	signer  Signer
	workers Workers
	logger  *log.Logger

	// jobs taken at once.
	batch int
}

func New(queue Queue, signer Signer, workers Workers, logger *log.Logger, batch int) *Dispatcher {
	if batch <= 0 {
		batch = 10
	}
	return &Dispatcher{queue: queue, signer: signer, workers: workers, logger: logger, batch: batch}
}

// Counts of one pass.
type Counts struct {
	Started  int
	Running  int
	Done     int
	Failed   int
	Inflight int
}

func (c Counts) String() string {
	return fmt.Sprintf(
		"started=%d running=%d done=%d failed=%d inflight=%d",
		c.Started, c.Running, c.Done, c.Failed, c.Inflight,
	)
}

// StartReady spawns a worker for each ready job.
//
// A job which can not be spawned is failed, so its dependents are
// invalidated.
func (d *Dispatcher) StartReady(ctx context.Context) (int, error) {
	jobs, err := d.queue.Ready(ctx, d.batch)
	if err != nil {
		return 0, err
	}

	started := 0
	for _, j := range jobs {
		tok, err := d.signer.Sign(j.ID, j.Spec.Context)
		if err == nil {
			_, err = d.workers.Spawn(ctx, j, tok)
		}
		if err != nil {
			d.logger.Warnf("job %s (%s) is not started: %v", j.ID, j.Spec.Name, err)
			if err := d.queue.SetStatus(ctx, j.ID, grid.Failed, -1, "not started: "+err.Error()); err != nil {
				return started, err
			}
			continue
		}
		d.logger.Infof("job %s (%s) is started", j.ID, j.Spec.Name)
		started += 1
	}
	return started, nil
}

// Collect reflects states of workers to starting and running jobs.
//
// Workers of finished jobs are deleted.
func (d *Dispatcher) Collect(ctx context.Context) (Counts, error) {
	counts := Counts{}
	jobs, err := d.queue.List(ctx, grid.Starting, grid.Running)
	if err != nil {
		return counts, err
	}

	for _, j := range jobs {
		w, err := d.workers.Find(ctx, j.ID)
		if errors.Is(err, k8s.ErrMissing) {
			d.logger.Warnf("job %s (%s) has lost its worker", j.ID, j.Spec.Name)
			if err := d.queue.SetStatus(ctx, j.ID, grid.Failed, -1, "worker is lost"); err != nil {
				return counts, err
			}
			counts.Failed += 1
			continue
		} else if err != nil {
			return counts, err
		}

		switch w.Status() {
		case worker.Pending:
			counts.Inflight += 1
		case worker.Running:
			counts.Inflight += 1
			if j.Status == grid.Starting {
				if err := d.queue.SetStatus(ctx, j.ID, grid.Running, 0, ""); err != nil {
					return counts, err
				}
				counts.Running += 1
			}
		case worker.Done:
			if err := d.queue.SetStatus(ctx, j.ID, grid.Done, 0, ""); err != nil {
				return counts, err
			}
			counts.Done += 1
			d.close(w)
		case worker.Failed:
			code, reason, ok := w.ExitCode()
			if !ok {
				code, reason = -1, "worker has failed"
			}
			d.logger.Warnf("job %s (%s) has failed: exit %d %s", j.ID, j.Spec.Name, code, reason)
			if err := d.queue.SetStatus(ctx, j.ID, grid.Failed, code, reason); err != nil {
				return counts, err
			}
			counts.Failed += 1
			d.close(w)
		}
	}
	return counts, nil
}

func (d *Dispatcher) close(w worker.Worker) {
	if err := w.Close(); err != nil {
		d.logger.Warnf("worker of job %s is not deleted: %v", w.JobID(), err)
	}
}

// Task is one pass of the dispatcher: Collect, then StartReady.
//
// Errors are logged, and the loop continues after interval.
func (d *Dispatcher) Task(interval time.Duration) loop.Task[Counts] {
	return func(ctx context.Context, _ Counts) (Counts, loop.Next) {
		counts, err := d.Collect(ctx)
		if err != nil {
			d.logger.Errorf("collecting workers: %v", err)
			return counts, loop.Continue(interval)
		}
		started, err := d.StartReady(ctx)
		counts.Started = started
		counts.Inflight += started
		if err != nil {
			d.logger.Errorf("starting jobs: %v", err)
		}
		return counts, loop.Continue(interval)
	}
}

// Run dispatches until ctx is done. Each pass is bounded by timeout.
func (d *Dispatcher) Run(ctx context.Context, interval, timeout time.Duration) error {
	_, err := loop.Start(ctx, Counts{}, monitor(d.logger, d.Task(interval)), loop.WithTimeout(timeout))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// monitor logs the start and end of each pass.
func monitor[T any](logger *log.Logger, task loop.Task[T]) loop.Task[T] {
	var counter uint64
	return func(ctx context.Context, t T) (ret T, next loop.Next) {
		counter += 1
		timestamp := time.Now()
		logger.Debugf("task start: #0x%X", counter)
		defer func() {
			logger.Debugf("task end: #0x%X (takes %s): %s with %v", counter, time.Since(timestamp), next, ret)
		}()
		ret, next = task(ctx, t)
		return
	}
}
