// Package grid describes jobs of an experiment split for a compute grid,
// and the queue they are submitted to.
//
// A job carries a serialized domain.StageContext, not a command line. A
// worker runs it with the same entry point as a local run.
package grid

import (
	"context"
	"fmt"
	"time"

	"github.com/pombredanne/facereclib/pkg/domain"
	"k8s.io/apimachinery/pkg/api/resource"
)

type JobID string

// Status of a job.
//
//	pending -> starting -> running -> done | failed
//	pending -> invalidated  (a predecessor failed)
type Status string

const (
	Pending     Status = "pending"
	Starting    Status = "starting"
	Running     Status = "running"
	Done        Status = "done"
	Failed      Status = "failed"
	Invalidated Status = "invalidated"
)

func AsStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case Pending, Starting, Running, Done, Failed, Invalidated:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status: %q", s)
}

// Finished tells the job will not change any more.
func (s Status) Finished() bool {
	switch s {
	case Done, Failed, Invalidated:
		return true
	}
	return false
}

// Profile is resources requested by a job.
type Profile struct {
	Queue  string
	CPU    resource.Quantity
	Memory resource.Quantity
}

// JobSpec is what is submitted. It is not modified after submission.
type JobSpec struct {
	Name    string
	Context domain.StageContext
	Profile Profile

	// jobs which should be done before this job starts.
	Dependencies []JobID
}

// Job is a submitted JobSpec with its state.
type Job struct {
	ID     JobID
	Spec   JobSpec
	Status Status

	ExitCode int
	Message  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Queue accepts jobs.
//
// A job starts after all of its dependencies are done. When a job fails,
// its transitive dependents are invalidated and never start.
type Queue interface {
	Submit(ctx context.Context, spec JobSpec) (JobID, error)
}

// Partition splits spec into one job per chunk of a list of n items.
//
// Each job has its own range and a name suffixed with the range.
// When chunk covers the whole list, the single job has no range.
func Partition(spec JobSpec, n, chunk int) []JobSpec {
	ranges := domain.Split(n, chunk)
	if len(ranges) == 1 && ranges[0].Begin == 0 && ranges[0].End == n {
		return []JobSpec{spec}
	}
	specs := make([]JobSpec, 0, len(ranges))
	for _, r := range ranges {
		s := spec
		s.Dependencies = append([]JobID{}, spec.Dependencies...)
		s.Name = fmt.Sprintf("%s[%s]", spec.Name, r)
		s.Context.Range = &r
		specs = append(specs, s)
	}
	return specs
}
