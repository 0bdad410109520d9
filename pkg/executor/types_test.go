package executor_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pombredanne/facereclib/pkg/configs/experiment"
	"github.com/pombredanne/facereclib/pkg/database"
	"github.com/pombredanne/facereclib/pkg/executor"
)

func TestAsMode(t *testing.T) {
	for in, want := range map[string]executor.Mode{
		"":         executor.Separate,
		"separate": executor.Separate,
		"together": executor.Together,
	} {
		got, err := executor.AsMode(in)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("AsMode(%q) = %s, want %s", in, got, want)
		}
	}
	if _, err := executor.AsMode("apart"); err == nil {
		t.Error("expected error, but got nil")
	}
}

func TestResolveTypes(t *testing.T) {
	base := experiment.StageOptions{AllFiles: database.Options{"quality": {"good"}}}
	keywords := map[string]experiment.StageOptions{
		"neutral": {WorldExtractor: database.Options{"pose": {"frontal"}}},
		"left":    {WorldExtractor: database.Options{"pose": {"left"}}},
		"right":   {WorldExtractor: database.Options{"pose": {"right"}}},
	}

	t.Run("separate: the baseline and each protocol are types, and every protocol is scored with the baseline", func(t *testing.T) {
		got := executor.ResolveTypes(executor.Separate, "neutral", []string{"left", "right"}, base, keywords)
		want := executor.Resolution{
			Types:  []string{"neutral", "left", "right"},
			TypeOf: map[string]string{"left": "neutral", "right": "neutral"},
			Options: map[string]experiment.StageOptions{
				"neutral": {
					AllFiles:       database.Options{"quality": {"good"}},
					WorldExtractor: database.Options{"pose": {"frontal"}},
				},
				"left": {
					AllFiles:       database.Options{"quality": {"good"}},
					WorldExtractor: database.Options{"pose": {"left"}},
				},
				"right": {
					AllFiles:       database.Options{"quality": {"good"}},
					WorldExtractor: database.Options{"pose": {"right"}},
				},
			},
			Scope: map[string][]string{
				"neutral": {"left", "right"},
				"left":    {"left"},
				"right":   {"right"},
			},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("(-expected +actual)\n%s", diff)
		}
	})

	t.Run("together: a single baseline type merges options of every protocol", func(t *testing.T) {
		got := executor.ResolveTypes(executor.Together, "neutral", []string{"left", "right"}, base, keywords)
		want := executor.Resolution{
			Types:  []string{"neutral"},
			TypeOf: map[string]string{"left": "neutral", "right": "neutral"},
			Options: map[string]experiment.StageOptions{
				"neutral": {
					AllFiles:       database.Options{"quality": {"good"}},
					WorldExtractor: database.Options{"pose": {"frontal", "left", "right"}},
				},
			},
			Scope: map[string][]string{"neutral": {"left", "right"}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("(-expected +actual)\n%s", diff)
		}
	})

	t.Run("it neither modifies nor accumulates into its arguments", func(t *testing.T) {
		before := keywords["left"].Clone()
		executor.ResolveTypes(executor.Together, "neutral", []string{"left", "right"}, base, keywords)
		again := executor.ResolveTypes(executor.Together, "neutral", []string{"left", "right"}, base, keywords)

		if diff := cmp.Diff(before, keywords["left"]); diff != "" {
			t.Errorf("keywords are modified (-before +after)\n%s", diff)
		}
		if diff := cmp.Diff(database.Options{"quality": {"good"}}, base.AllFiles); diff != "" {
			t.Errorf("base is modified (-before +after)\n%s", diff)
		}
		if diff := cmp.Diff(
			database.Options{"pose": {"frontal", "left", "right"}},
			again.Options["neutral"].WorldExtractor,
		); diff != "" {
			t.Errorf("options accumulate (-expected +actual)\n%s", diff)
		}
	})

	t.Run("a protocol named as the baseline is not another type", func(t *testing.T) {
		got := executor.ResolveTypes(executor.Separate, "neutral", []string{"neutral", "left"}, base, keywords)
		if diff := cmp.Diff([]string{"neutral", "left"}, got.Types); diff != "" {
			t.Errorf("(-expected +actual)\n%s", diff)
		}
	})
}
