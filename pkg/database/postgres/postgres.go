// Package postgres is a database.Database stored in postgres.
//
// Tables are created by pkg/db/postgres/schema.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgtype"
	"github.com/pombredanne/facereclib/pkg/database"
	"github.com/pombredanne/facereclib/pkg/database/filelist"
	"github.com/pombredanne/facereclib/pkg/db/postgres/pool"
	"github.com/pombredanne/facereclib/pkg/db/postgres/scanner"
	xe "github.com/pombredanne/facereclib/pkg/errors"
)

type DB struct {
	pool pool.Pool
}

var _ database.Database = &DB{}

func New(p pool.Pool) *DB {
	return &DB{pool: p}
}

type fileRow struct {
	ID       string `sql:"id"`
	ClientID string `sql:"client_id"`
}

type modelRow struct {
	ClientID string `sql:"client_id"`
}

// query builds a WHERE clause with positional arguments.
type query struct {
	conditions []string
	args       []any
}

func (q *query) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

func (q *query) where(cond string) {
	q.conditions = append(q.conditions, cond)
}

func (q *query) clause() string {
	if len(q.conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(q.conditions, " AND ")
}

func (q *query) groups(groups []string) {
	if len(groups) == 0 {
		return
	}
	q.where(fmt.Sprintf(`"f"."group" = ANY(%s::varchar[])`, q.arg(groups)))
}

func (q *query) purposes(purposes []string) {
	if len(purposes) == 0 {
		return
	}
	q.where(fmt.Sprintf(`"f"."purpose" = ANY(%s::varchar[])`, q.arg(purposes)))
}

func (q *query) protocols(protocols []string) {
	if len(protocols) == 0 {
		return
	}
	q.where(fmt.Sprintf(
		`(NOT EXISTS (SELECT 1 FROM "file_protocol" AS "p" WHERE "p"."file_id" = "f"."id")
		OR EXISTS (SELECT 1 FROM "file_protocol" AS "p" WHERE "p"."file_id" = "f"."id" AND "p"."protocol" = ANY(%s::varchar[])))`,
		q.arg(protocols),
	))
}

func (q *query) options(opts database.Options) {
	for _, key := range opts.Keys() {
		values := opts[key]
		if len(values) == 0 {
			continue
		}
		q.where(fmt.Sprintf(
			`("f"."attributes" ->> %s) = ANY(%s::varchar[])`, q.arg(key), q.arg(values),
		))
	}
}

func (q *query) models(modelIDs []string) {
	if len(modelIDs) == 0 {
		return
	}
	ids := q.arg(modelIDs)
	q.where(fmt.Sprintf(
		`(("f"."purpose" = 'znorm')
		OR ("f"."purpose" = 'probe' AND (
			NOT EXISTS (SELECT 1 FROM "file_model" AS "m" WHERE "m"."file_id" = "f"."id")
			OR EXISTS (SELECT 1 FROM "file_model" AS "m" WHERE "m"."file_id" = "f"."id" AND "m"."model_id" = ANY(%s::varchar[]))
		))
		OR ("f"."purpose" NOT IN ('probe', 'znorm') AND "f"."client_id" = ANY(%s::varchar[])))`,
		ids, ids,
	))
}

func (db *DB) files(ctx context.Context, dq database.Query, purposes []string) ([]database.File, error) {
	q := &query{}
	q.groups(dq.Groups)
	q.purposes(purposes)
	q.protocols(dq.Protocols)
	q.models(dq.ModelIDs)
	q.options(dq.Options)

	rows, err := scanner.New[fileRow]().QueryAll(
		ctx, db.pool,
		`SELECT "f"."id", "f"."client_id" FROM "biometric_file" AS "f" `+q.clause()+` ORDER BY "f"."id"`,
		q.args...,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}

	files := make([]database.File, len(rows))
	for i, r := range rows {
		files[i] = database.File{ID: r.ID, ClientID: r.ClientID}
	}
	return database.Finalize(files, dq), nil
}

func (db *DB) Files(ctx context.Context, q database.Query) ([]database.File, error) {
	return db.files(ctx, q, q.Purposes)
}

func (db *DB) TFiles(ctx context.Context, q database.Query) ([]database.File, error) {
	return db.files(ctx, q, []string{database.PurposeTNorm})
}

func (db *DB) Objects(ctx context.Context, q database.Query) ([]database.File, error) {
	return db.files(ctx, q, []string{database.PurposeProbe})
}

func (db *DB) ZObjects(ctx context.Context, q database.Query) ([]database.File, error) {
	return db.files(ctx, q, []string{database.PurposeZNorm})
}

func (db *DB) clients(ctx context.Context, mq database.ModelQuery, purposes []string) ([]string, error) {
	q := &query{}
	q.groups(mq.Groups)
	q.purposes(purposes)
	q.protocols(mq.Protocols)
	q.options(mq.Options)

	rows, err := scanner.New[modelRow]().QueryAll(
		ctx, db.pool,
		`SELECT DISTINCT "f"."client_id" FROM "biometric_file" AS "f" `+q.clause()+` ORDER BY "f"."client_id"`,
		q.args...,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ClientID
	}
	return database.SortedIDs(ids), nil
}

func (db *DB) Models(ctx context.Context, q database.ModelQuery) ([]string, error) {
	purposes := []string{database.PurposeEnrol}
	if len(q.Groups) != 0 {
		purposes = append(purposes, database.PurposeWorld)
	}
	return db.clients(ctx, q, purposes)
}

func (db *DB) TModels(ctx context.Context, q database.ModelQuery) ([]string, error) {
	return db.clients(ctx, q, []string{database.PurposeTNorm})
}

// Import inserts or replaces entries in a transaction.
func Import(ctx context.Context, p pool.Pool, entries []filelist.Entry) error {
	return pool.InTx(ctx, p, func(tx pool.Tx) error {
		for _, e := range entries {
			attrs := e.Attributes
			if attrs == nil {
				attrs = map[string]string{}
			}
			buf, err := json.Marshal(attrs)
			if err != nil {
				return xe.Wrap(err)
			}
			jsonb := pgtype.JSONB{Bytes: buf, Status: pgtype.Present}

			if _, err := tx.Exec(
				ctx,
				`INSERT INTO "biometric_file" ("id", "client_id", "group", "purpose", "attributes")
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT ("id") DO UPDATE SET
					"client_id" = EXCLUDED."client_id",
					"group" = EXCLUDED."group",
					"purpose" = EXCLUDED."purpose",
					"attributes" = EXCLUDED."attributes"`,
				e.ID, e.Client, e.Group, e.Purpose, &jsonb,
			); err != nil {
				return xe.WrapWithNote(e.ID, err)
			}

			if _, err := tx.Exec(ctx, `DELETE FROM "file_protocol" WHERE "file_id" = $1`, e.ID); err != nil {
				return xe.WrapWithNote(e.ID, err)
			}
			if len(e.Protocols) != 0 {
				if _, err := tx.Exec(
					ctx,
					`INSERT INTO "file_protocol" ("file_id", "protocol")
					SELECT $1, unnest($2::varchar[]) ON CONFLICT DO NOTHING`,
					e.ID, e.Protocols,
				); err != nil {
					return xe.WrapWithNote(e.ID, err)
				}
			}

			if _, err := tx.Exec(ctx, `DELETE FROM "file_model" WHERE "file_id" = $1`, e.ID); err != nil {
				return xe.WrapWithNote(e.ID, err)
			}
			if len(e.Models) != 0 {
				if _, err := tx.Exec(
					ctx,
					`INSERT INTO "file_model" ("file_id", "model_id")
					SELECT $1, unnest($2::varchar[]) ON CONFLICT DO NOTHING`,
					e.ID, e.Models,
				); err != nil {
					return xe.WrapWithNote(e.ID, err)
				}
			}
		}
		return nil
	})
}
