// Package postgres is a grid.Queue stored in postgres.
//
// Tables "job" and "job_dependency" are created by pkg/db/postgres/schema.
// Jobs are taken by dispatchers with "FOR UPDATE SKIP LOCKED", so more than
// one dispatcher can share a queue.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	pgerrors "github.com/pombredanne/facereclib/pkg/db/postgres/errors"
	"github.com/pombredanne/facereclib/pkg/db/postgres/pool"
	"github.com/pombredanne/facereclib/pkg/db/postgres/scanner"
	"github.com/pombredanne/facereclib/pkg/domain"
	xe "github.com/pombredanne/facereclib/pkg/errors"
	"github.com/pombredanne/facereclib/pkg/grid"
	"k8s.io/apimachinery/pkg/api/resource"
)

type Queue struct {
	pool  pool.Pool
	newID func() string
}

var _ grid.Queue = &Queue{}

type Option func(*Queue) *Queue

// WithIDGenerator replaces the generator of job ids. The default is uuid v4.
func WithIDGenerator(f func() string) Option {
	return func(q *Queue) *Queue {
		q.newID = f
		return q
	}
}

func New(p pool.Pool, options ...Option) *Queue {
	q := &Queue{pool: p, newID: uuid.NewString}
	for _, opt := range options {
		q = opt(q)
	}
	return q
}

type jobRow struct {
	JobID     string `sql:"job_id"`
	Name      string
	Status    string
	Context   pgtype.JSONB
	Queue     string
	Profile   pgtype.JSONB
	ExitCode  *int32 `sql:"exit_code"`
	Message   string
	CreatedAt time.Time `sql:"created_at"`
	UpdatedAt time.Time `sql:"updated_at"`
}

type dependencyRow struct {
	JobID     string `sql:"job_id"`
	DependsOn string `sql:"depends_on"`
}

// profile as stored in the "profile" column.
type profile struct {
	CPU    string `json:"cpu,omitempty"`
	Memory string `json:"memory,omitempty"`
}

const jobColumns = `"job_id", "name", "status", "context", "queue", "profile", "exit_code", "message", "created_at", "updated_at"`

func jsonb(v any) (*pgtype.JSONB, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &pgtype.JSONB{Bytes: buf, Status: pgtype.Present}, nil
}

func quantityString(q resource.Quantity) string {
	if q.IsZero() {
		return ""
	}
	return q.String()
}

func parseQuantity(s string) (resource.Quantity, error) {
	if s == "" {
		return resource.Quantity{}, nil
	}
	return resource.ParseQuantity(s)
}

func (r jobRow) toJob(deps []grid.JobID) (grid.Job, error) {
	status, err := grid.AsStatus(r.Status)
	if err != nil {
		return grid.Job{}, err
	}

	sc := domain.StageContext{}
	if err := json.Unmarshal(r.Context.Bytes, &sc); err != nil {
		return grid.Job{}, xe.WrapWithNote("context of "+r.JobID, err)
	}

	p := profile{}
	if r.Profile.Status == pgtype.Present {
		if err := json.Unmarshal(r.Profile.Bytes, &p); err != nil {
			return grid.Job{}, xe.WrapWithNote("profile of "+r.JobID, err)
		}
	}
	cpu, err := parseQuantity(p.CPU)
	if err != nil {
		return grid.Job{}, xe.WrapWithNote("cpu of "+r.JobID, err)
	}
	mem, err := parseQuantity(p.Memory)
	if err != nil {
		return grid.Job{}, xe.WrapWithNote("memory of "+r.JobID, err)
	}

	exitCode := 0
	if r.ExitCode != nil {
		exitCode = int(*r.ExitCode)
	}

	return grid.Job{
		ID: grid.JobID(r.JobID),
		Spec: grid.JobSpec{
			Name:         r.Name,
			Context:      sc,
			Profile:      grid.Profile{Queue: r.Queue, CPU: cpu, Memory: mem},
			Dependencies: deps,
		},
		Status:    status,
		ExitCode:  exitCode,
		Message:   r.Message,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

// Submit inserts a job and its dependency edges.
//
// A job depending on a failed or invalidated job is invalidated at once.
// Unknown dependencies are pgerrors.ErrDangling.
func (q *Queue) Submit(ctx context.Context, spec grid.JobSpec) (grid.JobID, error) {
	sc, err := jsonb(spec.Context)
	if err != nil {
		return "", xe.Wrap(err)
	}
	prof, err := jsonb(profile{
		CPU:    quantityString(spec.Profile.CPU),
		Memory: quantityString(spec.Profile.Memory),
	})
	if err != nil {
		return "", xe.Wrap(err)
	}
	queue := spec.Profile.Queue
	if queue == "" {
		queue = "default"
	}

	id := q.newID()
	deps := make([]string, len(spec.Dependencies))
	for i, d := range spec.Dependencies {
		deps[i] = string(d)
	}

	err = pool.InTx(ctx, q.pool, func(tx pool.Tx) error {
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO "job" ("job_id", "name", "context", "queue", "profile") VALUES ($1, $2, $3, $4, $5)`,
			id, spec.Name, sc, queue, prof,
		); err != nil {
			return pgerrors.Classify(err)
		}
		if len(deps) == 0 {
			return nil
		}
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO "job_dependency" ("job_id", "depends_on")
			SELECT $1, unnest($2::varchar[]) ON CONFLICT DO NOTHING`,
			id, deps,
		); err != nil {
			return pgerrors.Classify(err)
		}
		if _, err := tx.Exec(
			ctx,
			`UPDATE "job" SET "status" = 'invalidated', "message" = 'a dependency has failed', "updated_at" = now()
			WHERE "job_id" = $1 AND EXISTS (
				SELECT 1 FROM "job" AS "p" WHERE "p"."job_id" = ANY($2::varchar[])
				AND "p"."status" IN ('failed', 'invalidated')
			)`,
			id, deps,
		); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", xe.WrapWithNote(spec.Name, err)
	}
	return grid.JobID(id), nil
}

func (q *Queue) dependencies(ctx context.Context, qr pool.Queryer, ids []string) (map[string][]grid.JobID, error) {
	rows, err := scanner.New[dependencyRow]().QueryAll(
		ctx, qr,
		`SELECT "job_id", "depends_on" FROM "job_dependency"
		WHERE "job_id" = ANY($1::varchar[]) ORDER BY "job_id", "depends_on"`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	deps := map[string][]grid.JobID{}
	for _, r := range rows {
		deps[r.JobID] = append(deps[r.JobID], grid.JobID(r.DependsOn))
	}
	return deps, nil
}

func (q *Queue) toJobs(ctx context.Context, qr pool.Queryer, rows []jobRow) ([]grid.Job, error) {
	if len(rows) == 0 {
		return []grid.Job{}, nil
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.JobID
	}
	deps, err := q.dependencies(ctx, qr, ids)
	if err != nil {
		return nil, err
	}

	jobs := make([]grid.Job, 0, len(rows))
	for _, r := range rows {
		d := deps[r.JobID]
		if d == nil {
			d = []grid.JobID{}
		}
		j, err := r.toJob(d)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Ready takes at most limit pending jobs whose dependencies are all done,
// and marks them starting.
func (q *Queue) Ready(ctx context.Context, limit int) ([]grid.Job, error) {
	var jobs []grid.Job
	err := pool.InTx(ctx, q.pool, func(tx pool.Tx) error {
		rows, err := scanner.New[jobRow]().QueryAll(
			ctx, tx,
			`SELECT `+jobColumns+` FROM "job" AS "j"
			WHERE "j"."status" = 'pending' AND NOT EXISTS (
				SELECT 1 FROM "job_dependency" AS "d"
				INNER JOIN "job" AS "p" ON "p"."job_id" = "d"."depends_on"
				WHERE "d"."job_id" = "j"."job_id" AND "p"."status" <> 'done'
			)
			ORDER BY "j"."created_at", "j"."job_id"
			LIMIT $1
			FOR UPDATE SKIP LOCKED`,
			limit,
		)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			jobs = []grid.Job{}
			return nil
		}

		ids := make([]string, len(rows))
		for i := range rows {
			ids[i] = rows[i].JobID
			rows[i].Status = string(grid.Starting)
		}
		if _, err := tx.Exec(
			ctx,
			`UPDATE "job" SET "status" = 'starting', "updated_at" = now() WHERE "job_id" = ANY($1::varchar[])`,
			ids,
		); err != nil {
			return err
		}

		jobs, err = q.toJobs(ctx, tx, rows)
		return err
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return jobs, nil
}

// SetStatus moves an unfinished job to status.
//
// When status is failed, every transitive dependent still pending is
// invalidated. Finished or unknown jobs are pgerrors.ErrMissing.
func (q *Queue) SetStatus(ctx context.Context, id grid.JobID, status grid.Status, exitCode int, message string) error {
	err := pool.InTx(ctx, q.pool, func(tx pool.Tx) error {
		tag, err := tx.Exec(
			ctx,
			`UPDATE "job" SET "status" = $2, "exit_code" = $3, "message" = $4, "updated_at" = now()
			WHERE "job_id" = $1 AND "status" NOT IN ('done', 'failed', 'invalidated')`,
			string(id), string(status), int32(exitCode), message,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgerrors.Missing{Table: "job", Identity: string(id) + " (unfinished)"}
		}
		if status != grid.Failed {
			return nil
		}

		_, err = tx.Exec(
			ctx,
			`WITH RECURSIVE "dependents" ("job_id") AS (
				SELECT "job_id" FROM "job_dependency" WHERE "depends_on" = $1
				UNION
				SELECT "d"."job_id" FROM "job_dependency" AS "d"
				INNER JOIN "dependents" AS "x" ON "d"."depends_on" = "x"."job_id"
			)
			UPDATE "job" SET "status" = 'invalidated', "message" = $2, "updated_at" = now()
			WHERE "job_id" IN (SELECT "job_id" FROM "dependents") AND "status" = 'pending'`,
			string(id), fmt.Sprintf("dependency %s has failed", id),
		)
		return err
	})
	return xe.WrapWithNote(string(id), err)
}

// Get returns a job. Unknown jobs are pgerrors.ErrMissing.
func (q *Queue) Get(ctx context.Context, id grid.JobID) (grid.Job, error) {
	rows, err := scanner.New[jobRow]().QueryAll(
		ctx, q.pool,
		`SELECT `+jobColumns+` FROM "job" WHERE "job_id" = $1`,
		string(id),
	)
	if err != nil {
		return grid.Job{}, xe.Wrap(err)
	}
	if len(rows) == 0 {
		return grid.Job{}, xe.Wrap(pgerrors.Missing{Table: "job", Identity: string(id)})
	}
	jobs, err := q.toJobs(ctx, q.pool, rows)
	if err != nil {
		return grid.Job{}, xe.Wrap(err)
	}
	return jobs[0], nil
}

// List returns jobs in the statuses, oldest first. No statuses means all.
func (q *Queue) List(ctx context.Context, statuses ...grid.Status) ([]grid.Job, error) {
	where := ""
	args := []any{}
	if len(statuses) != 0 {
		ss := make([]string, len(statuses))
		for i, s := range statuses {
			ss[i] = string(s)
		}
		where = `WHERE "status" = ANY($1::varchar[])`
		args = append(args, ss)
	}

	rows, err := scanner.New[jobRow]().QueryAll(
		ctx, q.pool,
		`SELECT `+jobColumns+` FROM "job" `+where+` ORDER BY "created_at", "job_id"`,
		args...,
	)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	jobs, err := q.toJobs(ctx, q.pool, rows)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return jobs, nil
}
