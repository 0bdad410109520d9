package grid_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pombredanne/facereclib/pkg/domain"
	"github.com/pombredanne/facereclib/pkg/grid"
)

func TestPartition(t *testing.T) {
	base := grid.JobSpec{
		Name:         "extract",
		Context:      domain.StageContext{Stage: domain.Extract, Type: "neutral"},
		Dependencies: []grid.JobID{"a"},
	}

	t.Run("100 items by 10 make 10 disjoint jobs covering the list", func(t *testing.T) {
		specs := grid.Partition(base, 100, 10)
		if len(specs) != 10 {
			t.Fatalf("unexpected jobs: %d", len(specs))
		}
		covered := make([]int, 100)
		for _, s := range specs {
			r := s.Context.Range
			if r == nil {
				t.Fatalf("%s has no range", s.Name)
			}
			for i := r.Begin; i < r.End; i++ {
				covered[i] += 1
			}
			if diff := cmp.Diff([]grid.JobID{"a"}, s.Dependencies); diff != "" {
				t.Errorf("dependencies (-expected +actual)\n%s", diff)
			}
		}
		for i, c := range covered {
			if c != 1 {
				t.Errorf("item %d is covered %d times", i, c)
			}
		}
		if specs[3].Name != "extract[30:40]" {
			t.Errorf("unexpected name: %s", specs[3].Name)
		}
	})

	t.Run("a list fitting in a chunk is a single job without range", func(t *testing.T) {
		specs := grid.Partition(base, 7, 10)
		if len(specs) != 1 || specs[0].Context.Range != nil || specs[0].Name != "extract" {
			t.Errorf("unexpected jobs: %+v", specs)
		}
	})

	t.Run("an empty list makes no job", func(t *testing.T) {
		if specs := grid.Partition(base, 0, 10); len(specs) != 0 {
			t.Errorf("unexpected jobs: %+v", specs)
		}
	})

	t.Run("jobs do not share dependency slices", func(t *testing.T) {
		specs := grid.Partition(base, 20, 10)
		specs[0].Dependencies[0] = "changed"
		if specs[1].Dependencies[0] != "a" || base.Dependencies[0] != "a" {
			t.Error("dependencies are aliased")
		}
	})
}

func TestStatus(t *testing.T) {
	for _, s := range []string{"pending", "starting", "running", "done", "failed", "invalidated"} {
		if _, err := grid.AsStatus(s); err != nil {
			t.Errorf("%s: %v", s, err)
		}
	}
	if _, err := grid.AsStatus("waiting"); err == nil {
		t.Error("error is expected")
	}
	if grid.Running.Finished() || !grid.Invalidated.Finished() {
		t.Error("unexpected Finished")
	}
}
