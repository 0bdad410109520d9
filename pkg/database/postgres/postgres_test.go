package postgres_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgtype"
	"github.com/pombredanne/facereclib/pkg/database"
	"github.com/pombredanne/facereclib/pkg/database/filelist"
	"github.com/pombredanne/facereclib/pkg/database/postgres"
	"github.com/pombredanne/facereclib/pkg/db/postgres/pool/fake"
	"github.com/pombredanne/facereclib/pkg/utils/try"
)

func TestDB_Objects(t *testing.T) {
	ctx := context.Background()

	t.Run("it queries probes and sets their paths", func(t *testing.T) {
		p := &fake.Pool{
			Respond: func(string, []any) fake.Result {
				return fake.Result{Rows: fake.NewRows(
					[]string{"id", "client_id"},
					[]any{"dev/c2/p1", "c2"},
					[]any{"dev/c1/p1", "c1"},
				)}
			},
		}
		testee := postgres.New(p)

		actual := try.To(testee.Objects(ctx, database.Query{
			Directory: "/features",
			Extension: ".fvec",
			Protocols: []string{"male"},
			Groups:    []string{database.Dev},
			ModelIDs:  []string{"c1"},
			Options:   database.Options{"pose": {"frontal"}, "light": {}},
		})).OrFatal(t)

		expected := []database.File{
			{ID: "dev/c1/p1", ClientID: "c1", Path: "/features/dev/c1/p1.fvec"},
			{ID: "dev/c2/p1", ClientID: "c2", Path: "/features/dev/c2/p1.fvec"},
		}
		if diff := cmp.Diff(expected, actual); diff != "" {
			t.Errorf("unexpected files (-expected +actual):\n%s", diff)
		}

		if len(p.Calls) != 1 {
			t.Fatalf("unexpected calls: %+v", p.Calls)
		}
		call := p.Calls[0]
		for _, fragment := range []string{
			`FROM "biometric_file"`, `"file_protocol"`, `"file_model"`, `"attributes" ->>`, `ORDER BY "f"."id"`,
		} {
			if !strings.Contains(call.SQL, fragment) {
				t.Errorf("query lacks %s:\n%s", fragment, call.SQL)
			}
		}
		expectedArgs := []any{
			[]string{database.Dev},
			[]string{database.PurposeProbe},
			[]string{"male"},
			[]string{"c1"},
			"pose",
			[]string{"frontal"},
		}
		if diff := cmp.Diff(expectedArgs, call.Args); diff != "" {
			t.Errorf("unexpected args (-expected +actual):\n%s", diff)
		}
	})

	t.Run("it has no WHERE clause without filters", func(t *testing.T) {
		p := &fake.Pool{}
		try.To(postgres.New(p).Files(ctx, database.Query{})).OrFatal(t)
		if strings.Contains(p.Calls[0].SQL, "WHERE") {
			t.Errorf("unexpected filter:\n%s", p.Calls[0].SQL)
		}
	})

	t.Run("it propagates database errors", func(t *testing.T) {
		broken := errors.New("connection lost")
		p := &fake.Pool{Respond: func(string, []any) fake.Result { return fake.Result{Err: broken} }}
		if _, err := postgres.New(p).ZObjects(ctx, database.Query{}); !errors.Is(err, broken) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestDB_Models(t *testing.T) {
	ctx := context.Background()

	p := &fake.Pool{
		Respond: func(string, []any) fake.Result {
			return fake.Result{Rows: fake.NewRows(
				[]string{"client_id"}, []any{"c2"}, []any{"c1"},
			)}
		},
	}
	actual := try.To(postgres.New(p).Models(ctx, database.ModelQuery{Groups: []string{database.Dev}})).OrFatal(t)
	if diff := cmp.Diff([]string{"c1", "c2"}, actual); diff != "" {
		t.Errorf("unexpected models (-expected +actual):\n%s", diff)
	}
	if !strings.Contains(p.Calls[0].SQL, "DISTINCT") {
		t.Errorf("unexpected query:\n%s", p.Calls[0].SQL)
	}
	if diff := cmp.Diff(
		[]any{[]string{database.Dev}, []string{database.PurposeEnrol, database.PurposeWorld}},
		p.Calls[0].Args,
	); diff != "" {
		t.Errorf("unexpected args (-expected +actual):\n%s", diff)
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	p := &fake.Pool{}

	err := postgres.Import(ctx, p, []filelist.Entry{
		{
			ID: "dev/c1/p1", Client: "c1", Group: database.Dev, Purpose: database.PurposeProbe,
			Protocols: []string{"male"}, Models: []string{"c1"},
			Attributes: map[string]string{"pose": "frontal"},
		},
		{ID: "world/w1/1", Client: "w1", Group: database.World, Purpose: database.PurposeWorld},
	})
	if err != nil {
		t.Fatal(err)
	}

	if p.Commits != 1 {
		t.Errorf("not committed: %d", p.Commits)
	}

	inserts := p.Match(`INSERT INTO "biometric_file"`)
	if len(inserts) != 2 {
		t.Fatalf("unexpected inserts: %+v", inserts)
	}
	jsonb, ok := inserts[0].Args[4].(*pgtype.JSONB)
	if !ok || string(jsonb.Bytes) != `{"pose":"frontal"}` {
		t.Errorf("unexpected attributes: %+v", inserts[0].Args[4])
	}
	if jsonb, _ := inserts[1].Args[4].(*pgtype.JSONB); string(jsonb.Bytes) != `{}` {
		t.Errorf("unexpected attributes: %s", jsonb.Bytes)
	}

	if n := len(p.Match(`INSERT INTO "file_protocol"`)); n != 1 {
		t.Errorf("unexpected protocol inserts: %d", n)
	}
	if n := len(p.Match(`INSERT INTO "file_model"`)); n != 1 {
		t.Errorf("unexpected model inserts: %d", n)
	}
	if n := len(p.Match(`DELETE FROM "file_protocol"`)); n != 2 {
		t.Errorf("stale protocols are not cleared: %d", n)
	}
}
