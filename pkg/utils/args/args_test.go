package args_test

import (
	"flag"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pombredanne/facereclib/pkg/domain"
	"github.com/pombredanne/facereclib/pkg/utils/args"
)

func TestAdapter(t *testing.T) {
	t.Run("it parses an acceptable value", func(t *testing.T) {
		testee := args.Parser(domain.ParseRange)
		if testee.IsSet() {
			t.Error("it is set, unexpectedly")
		}
		if (testee.Value() != domain.Range{}) {
			t.Error("it is not initialized with zero value: ", testee.Value())
		}

		f := flag.NewFlagSet("test", flag.ContinueOnError)
		f.Var(testee, "range", "")

		if err := f.Parse([]string{"-range", "3:10"}); err != nil {
			t.Fatal(err)
		}

		expected := domain.Range{Begin: 3, End: 10}
		if testee.Value() != expected {
			t.Errorf("unmatch: Value(): (actual, expected) = (%v, %v)", testee.Value(), expected)
		}
		if !testee.IsSet() {
			t.Error("it is not set")
		}
		if testee.String() != "3:10" {
			t.Errorf("unexpected String(): %s", testee.String())
		}
	})

	t.Run("it rejects an unacceptable value", func(t *testing.T) {
		testee := args.Parser(domain.ParseRange)

		f := flag.NewFlagSet("test", flag.ContinueOnError)
		f.Var(testee, "range", "")

		if err := f.Parse([]string{"-range", "10:3"}); err == nil {
			t.Error("expected error does not happen")
		}
		if testee.IsSet() {
			t.Error("it is set, unexpectedly")
		}
	})
}

func TestList(t *testing.T) {
	for name, testcase := range map[string]struct {
		init     []string
		args     []string
		expected []string
	}{
		"it is nil when nothing is given": {
			expected: nil,
		},
		"it splits words by comma": {
			args:     []string{"-p", "left,right"},
			expected: []string{"left", "right"},
		},
		"it accumulates repeated flags": {
			args:     []string{"-p", "left", "-p", "right,up"},
			expected: []string{"left", "right", "up"},
		},
		"it drops empty words and duplicates": {
			args:     []string{"-p", " left, ,right,left", "-p", "right"},
			expected: []string{"left", "right"},
		},
		"it keeps initial words": {
			init:     []string{"dev"},
			args:     []string{"-p", "eval"},
			expected: []string{"dev", "eval"},
		},
	} {
		t.Run(name, func(t *testing.T) {
			testee := args.NewList(testcase.init...)
			f := flag.NewFlagSet("test", flag.ContinueOnError)
			f.Var(testee, "p", "")
			if err := f.Parse(testcase.args); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(testcase.expected, testee.Values()); diff != "" {
				t.Errorf("unmatch (-expected +actual):\n%s", diff)
			}
		})
	}
}
