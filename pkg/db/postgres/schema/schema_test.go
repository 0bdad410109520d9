package schema_test

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/pombredanne/facereclib/pkg/db/postgres/pool/fake"
	"github.com/pombredanne/facereclib/pkg/db/postgres/schema"
	"github.com/pombredanne/facereclib/pkg/utils/try"
)

func repository() fstest.MapFS {
	return fstest.MapFS{
		"1/0001_init.sql":  {Data: []byte("create table foo;")},
		"1/0002_more.sql":  {Data: []byte("create table bar;")},
		"2/0001_alter.sql": {Data: []byte("alter table foo;")},
		"misc/x.sql":       {Data: []byte("ignored: not a version")},
	}
}

func versionIs(v any) func(string, []any) fake.Result {
	return func(sql string, _ []any) fake.Result {
		if strings.Contains(sql, `max("version")`) {
			switch v := v.(type) {
			case error:
				return fake.Result{Err: v}
			default:
				return fake.Result{Rows: fake.NewRows([]string{"max"}, []any{v})}
			}
		}
		return fake.Result{}
	}
}

func TestSchema_Version(t *testing.T) {
	ctx := context.Background()

	t.Run("it is 0 when schema_version does not exist", func(t *testing.T) {
		p := &fake.Pool{Respond: versionIs(&pgconn.PgError{Code: pgerrcode.UndefinedTable})}
		actual := try.To(schema.New(p, repository()).Version(ctx)).OrFatal(t)
		if actual != 0 {
			t.Errorf("unexpected version: %d", actual)
		}
	})

	t.Run("it reads the version", func(t *testing.T) {
		p := &fake.Pool{Respond: versionIs(2)}
		actual := try.To(schema.New(p, repository()).Version(ctx)).OrFatal(t)
		if actual != 2 {
			t.Errorf("unexpected version: %d", actual)
		}
	})
}

func TestSchema_Upgrade(t *testing.T) {
	ctx := context.Background()

	t.Run("it applies newer versions in order, in a transaction", func(t *testing.T) {
		p := &fake.Pool{Respond: versionIs(1)}
		if err := schema.New(p, repository()).Upgrade(ctx); err != nil {
			t.Fatal(err)
		}

		actual := []string{}
		for _, c := range p.Calls {
			if !c.InTx {
				t.Errorf("sent out of transaction: %s", c.SQL)
			}
			actual = append(actual, c.SQL)
		}
		expected := []string{
			`SELECT max("version") FROM "schema_version"`,
			"alter table foo;",
			`DELETE FROM "schema_version"`,
			`INSERT INTO "schema_version" ("version") VALUES ($1)`,
		}
		if diff := cmp.Diff(expected, actual); diff != "" {
			t.Errorf("unexpected queries (-expected +actual):\n%s", diff)
		}
		if p.Commits != 1 {
			t.Errorf("not committed: %d", p.Commits)
		}
	})

	t.Run("the latest version of the built-in repository is applied from scratch", func(t *testing.T) {
		p := &fake.Pool{Respond: versionIs(&pgconn.PgError{Code: pgerrcode.UndefinedTable})}
		s := schema.New(p, schema.Repository())
		if err := s.Upgrade(ctx); err != nil {
			t.Fatal(err)
		}
		latest := try.To(s.Latest()).OrFatal(t)
		inserts := p.Match(`INSERT INTO "schema_version"`)
		if len(inserts) == 0 || inserts[len(inserts)-1].Args[0] != latest {
			t.Errorf("latest version is not recorded: %+v", inserts)
		}
		if len(p.Match(`CREATE TABLE "job"`)) != 1 {
			t.Error("job table is not created")
		}
	})
}
