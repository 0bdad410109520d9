package domain_test

import (
	"testing"

	"github.com/pombredanne/facereclib/pkg/cmp"
	"github.com/pombredanne/facereclib/pkg/domain"
)

func TestSplit(t *testing.T) {
	t.Run("it splits 100 items by 10 into 10 disjoint ranges covering all", func(t *testing.T) {
		actual := domain.Split(100, 10)
		if len(actual) != 10 {
			t.Fatalf("unexpected number of ranges: %d", len(actual))
		}

		covered := make([]int, 100)
		for _, r := range actual {
			for i := r.Begin; i < r.End; i++ {
				covered[i] += 1
			}
		}
		for i, c := range covered {
			if c != 1 {
				t.Errorf("item %d is covered %d times", i, c)
			}
		}
	})

	theory := func(n, chunk int, expected []domain.Range) func(*testing.T) {
		return func(t *testing.T) {
			actual := domain.Split(n, chunk)
			if !cmp.SliceEq(actual, expected) {
				t.Errorf(
					"unexpected ranges:\n===actual===\n%+v\n===expected===\n%+v",
					actual, expected,
				)
			}
		}
	}

	t.Run("it leaves a short tail", theory(
		7, 3, []domain.Range{{Begin: 0, End: 3}, {Begin: 3, End: 6}, {Begin: 6, End: 7}},
	))
	t.Run("it makes one range when the chunk is larger", theory(
		5, 10, []domain.Range{{Begin: 0, End: 5}},
	))
	t.Run("it makes one range when chunk is not positive", theory(
		5, 0, []domain.Range{{Begin: 0, End: 5}},
	))
	t.Run("it makes nothing for an empty list", theory(0, 10, []domain.Range{}))
}

func TestSlice(t *testing.T) {
	items := []string{"a", "b", "c", "d"}

	for name, testcase := range map[string]struct {
		r        *domain.Range
		expected []string
	}{
		"when range is nil":        {nil, items},
		"when range is inside":     {&domain.Range{Begin: 1, End: 3}, []string{"b", "c"}},
		"when range exceeds items": {&domain.Range{Begin: 2, End: 10}, []string{"c", "d"}},
		"when range is outside":    {&domain.Range{Begin: 6, End: 10}, []string{}},
		"when begin is negative":   {&domain.Range{Begin: -3, End: 2}, []string{"a", "b"}},
		"when range is reversed":   {&domain.Range{Begin: 3, End: 1}, []string{}},
		"when both are negative":   {&domain.Range{Begin: -5, End: -1}, []string{}},
	} {
		t.Run(name, func(t *testing.T) {
			actual := domain.Slice(items, testcase.r)
			if !cmp.SliceEq(actual, testcase.expected) {
				t.Errorf("unexpected slice:\n===actual===\n%v\n===expected===\n%v", actual, testcase.expected)
			}
		})
	}
}

func TestParseRange(t *testing.T) {
	t.Run("it parses BEGIN:END", func(t *testing.T) {
		r, err := domain.ParseRange("10:20")
		if err != nil {
			t.Fatal(err)
		}
		if r != (domain.Range{Begin: 10, End: 20}) {
			t.Errorf("unexpected range: %+v", r)
		}
		if r.String() != "10:20" {
			t.Errorf("unexpected string: %s", r)
		}
	})

	for _, in := range []string{"10", "a:3", "3:b", "5:2", "-1:3"} {
		t.Run("it rejects "+in, func(t *testing.T) {
			if _, err := domain.ParseRange(in); err == nil {
				t.Errorf("no error for %q", in)
			}
		})
	}
}

func TestAsStageID(t *testing.T) {
	for _, s := range domain.Stages() {
		actual, err := domain.AsStageID(string(s))
		if err != nil || actual != s {
			t.Errorf("stage %s does not round trip: (%s, %v)", s, actual, err)
		}
	}
	if _, err := domain.AsStageID("train"); err == nil {
		t.Error("unknown stage is accepted")
	}
}
