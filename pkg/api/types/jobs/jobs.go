// Package jobs is the payload of the job status api.
package jobs

import (
	"github.com/pombredanne/facereclib/pkg/domain"
	"github.com/pombredanne/facereclib/pkg/grid"
	"github.com/pombredanne/facereclib/pkg/utils/rfctime"
)

type Exit struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type Summary struct {
	JobID        string              `json:"jobId"`
	Name         string              `json:"name"`
	Status       string              `json:"status"`
	Queue        string              `json:"queue"`
	Context      domain.StageContext `json:"context"`
	Dependencies []string            `json:"dependencies"`
	Exit         *Exit               `json:"exit,omitempty"`
	CreatedAt    rfctime.RFC3339     `json:"createdAt"`
	UpdatedAt    rfctime.RFC3339     `json:"updatedAt"`
}

// ComposeSummary makes a Summary. Exit is set for failed jobs, or when
// a job has a message.
func ComposeSummary(j grid.Job) Summary {
	deps := make([]string, len(j.Spec.Dependencies))
	for i, d := range j.Spec.Dependencies {
		deps[i] = string(d)
	}

	var exit *Exit
	if j.Status == grid.Failed || j.Message != "" {
		exit = &Exit{Code: j.ExitCode, Message: j.Message}
	}

	return Summary{
		JobID:        string(j.ID),
		Name:         j.Spec.Name,
		Status:       string(j.Status),
		Queue:        j.Spec.Profile.Queue,
		Context:      j.Spec.Context,
		Dependencies: deps,
		Exit:         exit,
		CreatedAt:    rfctime.RFC3339(j.CreatedAt),
		UpdatedAt:    rfctime.RFC3339(j.UpdatedAt),
	}
}

// Counts are numbers of jobs by status. Every status is present.
type Counts map[string]int

func Count(js []grid.Job) Counts {
	c := Counts{}
	for _, s := range []grid.Status{
		grid.Pending, grid.Starting, grid.Running, grid.Done, grid.Failed, grid.Invalidated,
	} {
		c[string(s)] = 0
	}
	for _, j := range js {
		c[string(j.Status)] += 1
	}
	return c
}
