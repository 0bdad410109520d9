package database_test

import (
	"testing"

	"github.com/pombredanne/facereclib/pkg/cmp"
	"github.com/pombredanne/facereclib/pkg/database"
)

func TestOptionsMatch(t *testing.T) {
	opts := database.Options{
		"pose":       {"frontal", "left"},
		"expression": {},
	}

	for name, testcase := range map[string]struct {
		attributes map[string]string
		expected   bool
	}{
		"it matches when the value is listed": {
			map[string]string{"pose": "left", "session": "1"}, true,
		},
		"it does not match when the value is not listed": {
			map[string]string{"pose": "right"}, false,
		},
		"it does not match when the attribute is missing": {
			map[string]string{"session": "1"}, false,
		},
	} {
		t.Run(name, func(t *testing.T) {
			if actual := opts.Match(testcase.attributes); actual != testcase.expected {
				t.Errorf("unexpected match: %v", actual)
			}
		})
	}

	t.Run("empty options match anything", func(t *testing.T) {
		if !(database.Options{}).Match(nil) {
			t.Error("empty options do not match")
		}
	})
}

func TestMerge(t *testing.T) {
	t.Run("it appends values per key without touching inputs", func(t *testing.T) {
		base := database.Options{"pose": {"frontal"}, "session": {"1"}}
		overrides := database.Options{"pose": {"left"}, "light": {"on"}}

		actual := database.Merge(base, overrides)
		expected := database.Options{
			"pose":    {"frontal", "left"},
			"session": {"1"},
			"light":   {"on"},
		}

		if !cmp.MapEqWith(actual, expected, cmp.SliceEq[string]) {
			t.Errorf("unexpected merge:\n===actual===\n%v\n===expected===\n%v", actual, expected)
		}
		if !cmp.SliceEq(base["pose"], []string{"frontal"}) {
			t.Errorf("base is modified: %v", base)
		}
		if _, ok := base["light"]; ok {
			t.Errorf("base is modified: %v", base)
		}

		actual["session"][0] = "2"
		if base["session"][0] != "1" {
			t.Errorf("merged options alias base: %v", base)
		}
	})
}

func TestFinalize(t *testing.T) {
	t.Run("it sorts, deduplicates and sets paths", func(t *testing.T) {
		actual := database.Finalize(
			[]database.File{
				{ID: "c2/img1", ClientID: "c2"},
				{ID: "c1/img1", ClientID: "c1"},
				{ID: "c2/img1", ClientID: "c2"},
			},
			database.Query{Directory: "/data", Extension: ".png"},
		)
		expected := []database.File{
			{ID: "c1/img1", ClientID: "c1", Path: "/data/c1/img1.png"},
			{ID: "c2/img1", ClientID: "c2", Path: "/data/c2/img1.png"},
		}
		if !cmp.SliceEq(actual, expected) {
			t.Errorf("unexpected files:\n===actual===\n%+v\n===expected===\n%+v", actual, expected)
		}
	})
}
