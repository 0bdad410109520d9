package memqueue_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	testctx "github.com/pombredanne/facereclib/internal/testutils/context"
	"github.com/pombredanne/facereclib/pkg/domain"
	"github.com/pombredanne/facereclib/pkg/grid"
	"github.com/pombredanne/facereclib/pkg/grid/memqueue"
	"github.com/pombredanne/facereclib/pkg/utils/try"
)

func job(name string, stage domain.StageID, deps ...grid.JobID) grid.JobSpec {
	return grid.JobSpec{
		Name:         name,
		Context:      domain.StageContext{Stage: stage, Type: name},
		Dependencies: deps,
	}
}

func TestQueue(t *testing.T) {
	t.Run("it runs jobs after their dependencies", func(t *testing.T) {
		ctx, cancel := testctx.WithTest(context.Background(), t)
		defer cancel()

		testee := memqueue.New()
		pre := try.To(testee.Submit(ctx, job("pre", domain.Preprocess))).OrFatal(t)
		ext := try.To(testee.Submit(ctx, job("ext", domain.Extract, pre))).OrFatal(t)
		try.To(testee.Submit(ctx, job("enrol", domain.Enrol, ext, pre))).OrFatal(t)

		ran := []string{}
		if err := testee.Run(ctx, func(_ context.Context, sc domain.StageContext) error {
			ran = append(ran, sc.Type)
			return nil
		}); err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff([]string{"pre", "ext", "enrol"}, ran); diff != "" {
			t.Errorf("unexpected order (-expected +actual):\n%s", diff)
		}
		for _, j := range testee.Jobs() {
			if j.Status != grid.Done {
				t.Errorf("%s: unexpected status %s", j.Spec.Name, j.Status)
			}
		}
	})

	t.Run("it invalidates transitive dependents of a failed job", func(t *testing.T) {
		ctx, cancel := testctx.WithTest(context.Background(), t)
		defer cancel()

		testee := memqueue.New()
		a := try.To(testee.Submit(ctx, job("a", domain.Preprocess))).OrFatal(t)
		b := try.To(testee.Submit(ctx, job("b", domain.Extract, a))).OrFatal(t)
		c := try.To(testee.Submit(ctx, job("c", domain.Enrol, b))).OrFatal(t)
		other := try.To(testee.Submit(ctx, job("other", domain.TrainExtractor))).OrFatal(t)

		boom := errors.New("boom")
		ran := []string{}
		err := testee.Run(ctx, func(_ context.Context, sc domain.StageContext) error {
			ran = append(ran, sc.Type)
			if sc.Type == "a" {
				return boom
			}
			return nil
		})
		if !errors.Is(err, boom) {
			t.Errorf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"a", "other"}, ran); diff != "" {
			t.Errorf("unexpected jobs ran (-expected +actual):\n%s", diff)
		}

		expected := map[grid.JobID]grid.Status{
			a: grid.Failed, b: grid.Invalidated, c: grid.Invalidated, other: grid.Done,
		}
		for id, status := range expected {
			j, ok := testee.Get(id)
			if !ok {
				t.Fatalf("job %s is lost", id)
			}
			if j.Status != status {
				t.Errorf("%s: unexpected status %s (expected %s)", j.Spec.Name, j.Status, status)
			}
		}
	})

	t.Run("it rejects unknown dependencies", func(t *testing.T) {
		ctx, cancel := testctx.WithTest(context.Background(), t)
		defer cancel()

		testee := memqueue.New()
		if _, err := testee.Submit(ctx, job("x", domain.Extract, "nowhere")); err == nil {
			t.Error("unexpected success")
		}
		if len(testee.Jobs()) != 0 {
			t.Errorf("rejected job is queued: %+v", testee.Jobs())
		}
	})

	t.Run("it does not alias submitted dependencies", func(t *testing.T) {
		ctx, cancel := testctx.WithTest(context.Background(), t)
		defer cancel()

		testee := memqueue.New()
		a := try.To(testee.Submit(ctx, job("a", domain.Preprocess))).OrFatal(t)
		deps := []grid.JobID{a}
		b := try.To(testee.Submit(ctx, job("b", domain.Extract, deps...))).OrFatal(t)
		deps[0] = "changed"

		j, _ := testee.Get(b)
		if diff := cmp.Diff([]grid.JobID{a}, j.Spec.Dependencies); diff != "" {
			t.Errorf("dependencies (-expected +actual):\n%s", diff)
		}
	})
}
