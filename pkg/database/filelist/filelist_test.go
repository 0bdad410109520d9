package filelist_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pombredanne/facereclib/pkg/database"
	"github.com/pombredanne/facereclib/pkg/database/filelist"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/utils/try"
)

const fileList = `
name: synthetic
files:
  - {id: world/w1/1, client: w1, group: world, purpose: world, attributes: {pose: frontal}}
  - {id: world/w1/2, client: w1, group: world, purpose: world, attributes: {pose: left}}
  - {id: world/w2/1, client: w2, group: world, purpose: world, protocols: [p2]}
  - {id: dev/c2/enrol, client: c2, group: dev, purpose: enrol}
  - {id: dev/c1/enrol, client: c1, group: dev, purpose: enrol}
  - {id: dev/c3/enrol, client: c3, group: dev, purpose: enrol, protocols: [p2]}
  - {id: dev/c1/probe, client: c1, group: dev, purpose: probe, models: [c1]}
  - {id: dev/c2/probe, client: c2, group: dev, purpose: probe}
  - {id: dev/t1/enrol, client: t1, group: dev, purpose: tnorm}
  - {id: dev/z1/probe, client: z1, group: dev, purpose: znorm}
  - {id: eval/c5/enrol, client: c5, group: eval, purpose: enrol}
`

func TestDB(t *testing.T) {
	ctx := context.Background()
	db := try.To(filelist.Unmarshal([]byte(fileList))).OrFatal(t)

	files := func(t *testing.T, q database.Query, query func(context.Context, database.Query) ([]database.File, error)) []string {
		t.Helper()
		return database.IDs(try.To(query(ctx, q)).OrFatal(t))
	}

	for name, testcase := range map[string]struct {
		query    func(context.Context, database.Query) ([]database.File, error)
		q        database.Query
		expected []string
	}{
		"Files without filters returns everything sorted": {
			query: db.Files,
			q:     database.Query{},
			expected: []string{
				"dev/c1/enrol", "dev/c1/probe", "dev/c2/enrol", "dev/c2/probe", "dev/c3/enrol",
				"dev/t1/enrol", "dev/z1/probe", "eval/c5/enrol",
				"world/w1/1", "world/w1/2", "world/w2/1",
			},
		},
		"Files is scoped by protocol": {
			query:    db.Files,
			q:        database.Query{Protocols: []string{"p1"}, Groups: []string{database.World}},
			expected: []string{"world/w1/1", "world/w1/2"},
		},
		"Files is filtered by options": {
			query: db.Files,
			q: database.Query{
				Groups:  []string{database.World},
				Options: database.Options{"pose": {"left"}},
			},
			expected: []string{"world/w1/2"},
		},
		"Files selects enrolment files of a model": {
			query:    db.Files,
			q:        database.Query{Groups: []string{database.Dev}, Purposes: []string{database.PurposeEnrol}, ModelIDs: []string{"c2"}},
			expected: []string{"dev/c2/enrol"},
		},
		"Objects of a model include probes without explicit models": {
			query:    db.Objects,
			q:        database.Query{Groups: []string{database.Dev}, ModelIDs: []string{"c2"}},
			expected: []string{"dev/c2/probe"},
		},
		"Objects of the group": {
			query:    db.Objects,
			q:        database.Query{Groups: []string{database.Dev}},
			expected: []string{"dev/c1/probe", "dev/c2/probe"},
		},
		"TFiles selects T-norm enrolment files": {
			query:    db.TFiles,
			q:        database.Query{Groups: []string{database.Dev}, ModelIDs: []string{"t1"}},
			expected: []string{"dev/t1/enrol"},
		},
		"ZObjects ignore models": {
			query:    db.ZObjects,
			q:        database.Query{Groups: []string{database.Dev}, ModelIDs: []string{"c1"}},
			expected: []string{"dev/z1/probe"},
		},
		"empty result is not an error": {
			query:    db.ZObjects,
			q:        database.Query{Groups: []string{database.Eval}},
			expected: []string{},
		},
	} {
		t.Run(name, func(t *testing.T) {
			actual := files(t, testcase.q, testcase.query)
			if diff := cmp.Diff(testcase.expected, actual); diff != "" {
				t.Errorf("unexpected files (-expected +actual):\n%s", diff)
			}
		})
	}

	t.Run("it sets paths from directory and extension", func(t *testing.T) {
		actual := try.To(db.Objects(ctx, database.Query{
			Directory: "/features", Extension: ".fvec", Groups: []string{database.Dev}, ModelIDs: []string{"c1"},
		})).OrFatal(t)
		expected := []database.File{
			{ID: "dev/c1/probe", ClientID: "c1", Path: "/features/dev/c1/probe.fvec"},
			{ID: "dev/c2/probe", ClientID: "c2", Path: "/features/dev/c2/probe.fvec"},
		}
		if diff := cmp.Diff(expected, actual); diff != "" {
			t.Errorf("unexpected files (-expected +actual):\n%s", diff)
		}
	})

	for name, testcase := range map[string]struct {
		query    func(context.Context, database.ModelQuery) ([]string, error)
		q        database.ModelQuery
		expected []string
	}{
		"Models are sorted": {
			query:    db.Models,
			q:        database.ModelQuery{Groups: []string{database.Dev}, Protocols: []string{"p1"}},
			expected: []string{"c1", "c2"},
		},
		"Models of world are training identities": {
			query:    db.Models,
			q:        database.ModelQuery{Groups: []string{database.World}},
			expected: []string{"w1", "w2"},
		},
		"TModels": {
			query:    db.TModels,
			q:        database.ModelQuery{Groups: []string{database.Dev}},
			expected: []string{"t1"},
		},
	} {
		t.Run(name, func(t *testing.T) {
			actual := try.To(testcase.query(ctx, testcase.q)).OrFatal(t)
			if diff := cmp.Diff(testcase.expected, actual); diff != "" {
				t.Errorf("unexpected models (-expected +actual):\n%s", diff)
			}
		})
	}

	t.Run("Models is deterministic", func(t *testing.T) {
		q := database.ModelQuery{Groups: []string{database.Dev}}
		first := try.To(db.Models(ctx, q)).OrFatal(t)
		for range 5 {
			again := try.To(db.Models(ctx, q)).OrFatal(t)
			if diff := cmp.Diff(first, again); diff != "" {
				t.Errorf("models differ (-first +again):\n%s", diff)
			}
		}
	})
}

func TestNew(t *testing.T) {
	for name, entries := range map[string][]filelist.Entry{
		"duplicated ids": {
			{ID: "a", Client: "c", Group: database.Dev, Purpose: database.PurposeEnrol},
			{ID: "a", Client: "c", Group: database.Dev, Purpose: database.PurposeProbe},
		},
		"world file out of world": {
			{ID: "a", Client: "c", Group: database.Dev, Purpose: database.PurposeWorld},
		},
		"unknown purpose": {
			{ID: "a", Client: "c", Group: database.Dev, Purpose: "train"},
		},
		"missing client": {
			{ID: "a", Group: database.Dev, Purpose: database.PurposeEnrol},
		},
	} {
		t.Run("it rejects "+name, func(t *testing.T) {
			_, err := filelist.New("broken", entries)
			if !errors.Is(err, xe.ErrConfiguration) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
