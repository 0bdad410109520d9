// Package schema upgrades the postgres schema.
//
// A schema repository is a directory tree whose children are named by
// version numbers ("1", "2", ...). Each holds .sql files which upgrade
// the schema from the previous version, applied in lexical order.
package schema

import (
	"cmp"
	"context"
	"embed"
	"errors"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/pombredanne/facereclib/pkg/db/postgres/pool"
	xe "github.com/pombredanne/facereclib/pkg/errors"
)

//go:embed repository
var repository embed.FS

// Repository returns the schema repository built into this binary.
func Repository() fs.FS {
	sub, err := fs.Sub(repository, "repository")
	if err != nil {
		panic(err)
	}
	return sub
}

type Schema struct {
	pool       pool.Pool
	repository fs.FS
}

func New(p pool.Pool, repository fs.FS) *Schema {
	return &Schema{pool: p, repository: repository}
}

type version struct {
	Version int
	Root    string
}

func (v version) apply(ctx context.Context, repository fs.FS, q pool.Queryer) error {
	return fs.WalkDir(repository, v.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".sql") {
			return nil
		}
		query, err := fs.ReadFile(repository, p)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, string(query)); err != nil {
			return xe.WrapWithNote(p, err)
		}
		return nil
	})
}

// Version returns the version of the schema in the database.
//
// It is 0 when the database has never been upgraded.
func (s *Schema) Version(ctx context.Context) (int, error) {
	return currentVersion(ctx, s.pool)
}

func currentVersion(ctx context.Context, q pool.Queryer) (int, error) {
	var v *int
	if err := q.QueryRow(
		ctx, `SELECT max("version") FROM "schema_version"`,
	).Scan(&v); err != nil {
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) && pgerr.Code == pgerrcode.UndefinedTable {
			return 0, nil
		}
		return -1, err
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

// Latest returns the newest version in the repository.
func (s *Schema) Latest() (int, error) {
	vs, err := s.versions()
	if err != nil {
		return -1, err
	}
	if len(vs) == 0 {
		return 0, nil
	}
	return vs[len(vs)-1].Version, nil
}

// Upgrade applies every version newer than the database's in a transaction.
func (s *Schema) Upgrade(ctx context.Context) error {
	vs, err := s.versions()
	if err != nil {
		return err
	}

	return pool.InTx(ctx, s.pool, func(tx pool.Tx) error {
		current, err := currentVersion(ctx, tx)
		if err != nil {
			return err
		}
		for _, v := range vs {
			if v.Version <= current {
				continue
			}
			if err := v.apply(ctx, s.repository, tx); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `DELETE FROM "schema_version"`); err != nil {
				return err
			}
			if _, err := tx.Exec(
				ctx, `INSERT INTO "schema_version" ("version") VALUES ($1)`, v.Version,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// versions in the repository, sorted by version number.
func (s *Schema) versions() ([]version, error) {
	entries, err := fs.ReadDir(s.repository, ".")
	if err != nil {
		return nil, err
	}

	vs := make([]version, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		vs = append(vs, version{Version: v, Root: path.Clean(e.Name())})
	}
	slices.SortFunc(vs, func(a, b version) int { return cmp.Compare(a.Version, b.Version) })
	return vs, nil
}
