package common_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pombredanne/facereclib/cmd/faceverify/subcommands/common"
	"github.com/pombredanne/facereclib/internal/testutils/dataset"
	"github.com/pombredanne/facereclib/pkg/configs/experiment"
	"github.com/pombredanne/facereclib/pkg/database"
	"github.com/pombredanne/facereclib/pkg/domain"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/executor"
	"github.com/pombredanne/facereclib/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func TestExperiment_Spec(t *testing.T) {
	t.Run("it passes flags through", func(t *testing.T) {
		e := common.Experiment{
			Protocols: []string{"left"},
			Groups:    []string{database.Dev},
			Mode:      "together",
			Skip:      executor.Skip{Preprocessing: true},
			NoZTNorm:  true,
		}
		actual := try.To(e.Spec()).OrFatal(t)
		expected := executor.Spec{
			Protocols: []string{"left"},
			Groups:    []string{database.Dev},
			Mode:      executor.Together,
			Skip:      executor.Skip{Preprocessing: true},
			NoZTNorm:  true,
		}
		if diff := cmp.Diff(expected, actual); diff != "" {
			t.Errorf("(-expected +actual)\n%s", diff)
		}
	})

	t.Run("it rejects unknown modes as usage error", func(t *testing.T) {
		_, err := common.Experiment{Mode: "mixed"}.Spec()
		if !errors.Is(err, flarc.ErrUsage) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestStageFlags_StageContext(t *testing.T) {
	spec := executor.Spec{Force: true}

	t.Run("it builds a stage context", func(t *testing.T) {
		r := &domain.Range{Begin: 2, End: 4}
		f := common.StageFlags{
			Stage: "score", Protocol: "left", Group: "eval",
			ScoreType: "C", Range: r,
		}
		actual := try.To(f.StageContext(spec)).OrFatal(t)
		expected := domain.StageContext{
			Stage: domain.Score, Protocol: "left", Group: "eval",
			ScoreType: domain.ScoreC, Range: r, Force: true, ZTNorm: true,
		}
		if diff := cmp.Diff(expected, actual); diff != "" {
			t.Errorf("(-expected +actual)\n%s", diff)
		}
	})

	for name, f := range map[string]common.StageFlags{
		"it requires a stage":            {},
		"it rejects unknown stages":      {Stage: "cook"},
		"it rejects unknown model types": {Stage: "enrol", ModelType: "X"},
		"it rejects unknown score types": {Stage: "score", ScoreType: "E"},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := f.StageContext(spec); !errors.Is(err, flarc.ErrUsage) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestOpenDatabase(t *testing.T) {
	ctx := context.Background()
	const tools = "{name: face-crop}"

	t.Run("it opens a file list", func(t *testing.T) {
		data := dataset.New(t)
		conf := try.To(experiment.Unmarshal([]byte(data.Config(tools, "{name: pixels}", "{name: distance}")))).OrFatal(t)

		db, closer, err := common.OpenDatabase(ctx, conf.Database())
		if err != nil {
			t.Fatal(err)
		}
		defer closer()

		files := try.To(db.Files(ctx, database.Query{Groups: []string{database.World}})).OrFatal(t)
		if len(files) != 6 {
			t.Errorf("unexpected files: %+v", files)
		}
	})

	t.Run("it fails with configuration error when the file list is missing", func(t *testing.T) {
		data := dataset.New(t)
		conf := try.To(experiment.Unmarshal([]byte(data.Config(tools, "{name: pixels}", "{name: distance}")))).OrFatal(t)
		if err := os.Remove(data.FileList()); err != nil {
			t.Fatal(err)
		}

		if _, _, err := common.OpenDatabase(ctx, conf.Database()); !errors.Is(err, xe.ErrConfiguration) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("it requires a path", func(t *testing.T) {
		if _, err := common.LoadConfig(""); !errors.Is(err, flarc.ErrUsage) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
