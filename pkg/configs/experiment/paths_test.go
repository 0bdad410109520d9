package experiment_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pombredanne/facereclib/pkg/configs/experiment"
	"github.com/pombredanne/facereclib/pkg/database"
)

func TestDerive(t *testing.T) {
	dirs := experiment.Directories{
		Temp:        "/tmp/fv",
		User:        "/home/fv",
		ScoreSubdir: "scores",
	}

	t.Run("it derives every path from type and protocol", func(t *testing.T) {
		actual := experiment.Derive(dirs, "left", "mobile")
		expected := experiment.Paths{
			Preprocessed:     "/tmp/fv/preprocessed",
			Features:         "/tmp/fv/left/features",
			Projected:        "/tmp/fv/left/projected",
			ExtractorFile:    "/tmp/fv/left/Extractor.fvec",
			ProjectorFile:    "/tmp/fv/left/Projector.fvec",
			EnrolerFile:      "/tmp/fv/left/Enroler.fvec",
			Models:           "/tmp/fv/mobile/models",
			TModels:          "/tmp/fv/mobile/tmodels",
			ZTNormA:          "/tmp/fv/scores/mobile/zt_norm_A",
			ZTNormB:          "/tmp/fv/scores/mobile/zt_norm_B",
			ZTNormC:          "/tmp/fv/scores/mobile/zt_norm_C",
			ZTNormD:          "/tmp/fv/scores/mobile/zt_norm_D",
			ZTNormDSameValue: "/tmp/fv/scores/mobile/zt_norm_D_sameValue",
			ScoresNoNorm:     "/home/fv/scores/mobile/nonorm",
			ScoresZTNorm:     "/home/fv/scores/mobile/ztnorm",
		}
		if diff := cmp.Diff(expected, actual); diff != "" {
			t.Errorf("unexpected paths (-expected +actual):\n%s", diff)
		}
	})

	t.Run("it is pure", func(t *testing.T) {
		first := experiment.Derive(dirs, "neutral", "p1")
		second := experiment.Derive(dirs, "neutral", "p1")
		if first != second {
			t.Errorf("derived paths differ:\n%+v\n%+v", first, second)
		}
	})
}

func TestMergeStageOptions(t *testing.T) {
	base := experiment.StageOptions{
		AllFiles:       database.Options{"pose": {"frontal"}},
		WorldExtractor: database.Options{"pose": {"frontal"}},
	}
	overrides := experiment.StageOptions{
		AllFiles:     database.Options{"pose": {"left"}},
		WorldEnroler: database.Options{"session": {"1"}},
	}

	t.Run("it appends per key", func(t *testing.T) {
		actual := experiment.MergeStageOptions(base, overrides)
		expected := experiment.StageOptions{
			AllFiles:       database.Options{"pose": {"frontal", "left"}},
			WorldExtractor: database.Options{"pose": {"frontal"}},
			WorldEnroler:   database.Options{"session": {"1"}},
		}
		if diff := cmp.Diff(expected, actual); diff != "" {
			t.Errorf("unexpected merge (-expected +actual):\n%s", diff)
		}
	})

	t.Run("repeated merges do not accumulate", func(t *testing.T) {
		experiment.MergeStageOptions(base, overrides)
		actual := experiment.MergeStageOptions(base, overrides)
		if got := actual.AllFiles["pose"]; len(got) != 2 {
			t.Errorf("options accumulate: %v", got)
		}
		if got := base.AllFiles["pose"]; len(got) != 1 {
			t.Errorf("base is modified: %v", got)
		}
	})
}
