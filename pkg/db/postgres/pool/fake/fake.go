// Package fake provides an in-memory pool.Pool which records SQL and
// answers with scripted rows.
package fake

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgproto3/v2"
	"github.com/jackc/pgx/v4"
	"github.com/pombredanne/facereclib/pkg/db/postgres/pool"
)

// Call is a recorded SQL command.
type Call struct {
	SQL  string
	Args []any

	// true when it was sent in a transaction.
	InTx bool
}

// Result is an answer for a SQL command.
type Result struct {
	Rows *Rows
	Tag  pgconn.CommandTag
	Err  error
}

type Pool struct {
	mu sync.Mutex

	// Respond answers a SQL command. When nil, every command has no rows.
	Respond func(sql string, args []any) Result

	Calls     []Call
	Commits   int
	Rollbacks int
	Closed    bool
	NextBegin error
	NextPing  error
}

var _ pool.Pool = &Pool{}

// Match reports calls whose SQL contains fragment.
func (p *Pool) Match(fragment string) []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	found := []Call{}
	for _, c := range p.Calls {
		if strings.Contains(c.SQL, fragment) {
			found = append(found, c)
		}
	}
	return found
}

func (p *Pool) respond(sql string, args []any, inTx bool) Result {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{SQL: sql, Args: args, InTx: inTx})
	respond := p.Respond
	p.mu.Unlock()

	if respond == nil {
		return Result{Rows: NewRows(nil)}
	}
	r := respond(sql, args)
	if r.Rows == nil {
		r.Rows = NewRows(nil)
	}
	return r
}

func (p *Pool) exec(sql string, args []any, inTx bool) (pgconn.CommandTag, error) {
	r := p.respond(sql, args, inTx)
	return r.Tag, r.Err
}

func (p *Pool) query(sql string, args []any, inTx bool) (pgx.Rows, error) {
	r := p.respond(sql, args, inTx)
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Rows, nil
}

func (p *Pool) queryRow(sql string, args []any, inTx bool) pgx.Row {
	r := p.respond(sql, args, inTx)
	return &row{rows: r.Rows, err: r.Err}
}

func (p *Pool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.exec(sql, args, false)
}

func (p *Pool) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return p.query(sql, args, false)
}

func (p *Pool) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return p.queryRow(sql, args, false)
}

func (p *Pool) Begin(context.Context) (pool.Tx, error) {
	if p.NextBegin != nil {
		return nil, p.NextBegin
	}
	return &tx{pool: p}, nil
}

func (p *Pool) Ping(context.Context) error {
	return p.NextPing
}

func (p *Pool) Close() {
	p.Closed = true
}

type tx struct {
	pool *Pool
	done bool
}

func (t *tx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.pool.exec(sql, args, true)
}

func (t *tx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.pool.query(sql, args, true)
}

func (t *tx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return t.pool.queryRow(sql, args, true)
}

func (t *tx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.pool.mu.Lock()
	defer t.pool.mu.Unlock()
	t.pool.Commits += 1
	return nil
}

func (t *tx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.pool.mu.Lock()
	defer t.pool.mu.Unlock()
	t.pool.Rollbacks += 1
	return nil
}

// Rows are scripted result rows.
//
// Scan assigns values by reflection: a value is assigned to a destination
// when it is assignable or convertible to the destination's type.
type Rows struct {
	columns []string
	values  [][]any
	pos     int
	closed  bool
}

var _ pgx.Rows = &Rows{}

func NewRows(columns []string, values ...[]any) *Rows {
	return &Rows{columns: columns, values: values}
}

func (r *Rows) Close() {
	r.closed = true
}

func (r *Rows) Err() error {
	return nil
}

func (r *Rows) CommandTag() pgconn.CommandTag {
	return pgconn.CommandTag(fmt.Sprintf("SELECT %d", len(r.values)))
}

func (r *Rows) FieldDescriptions() []pgproto3.FieldDescription {
	fds := make([]pgproto3.FieldDescription, len(r.columns))
	for i, c := range r.columns {
		fds[i] = pgproto3.FieldDescription{Name: []byte(c)}
	}
	return fds
}

func (r *Rows) Next() bool {
	if r.closed || len(r.values) <= r.pos {
		r.closed = true
		return false
	}
	r.pos += 1
	return true
}

func (r *Rows) current() ([]any, error) {
	if r.pos == 0 || len(r.values) < r.pos {
		return nil, errors.New("fake: no current row")
	}
	return r.values[r.pos-1], nil
}

func (r *Rows) Scan(dest ...any) error {
	values, err := r.current()
	if err != nil {
		return err
	}
	return assign(values, dest)
}

func (r *Rows) Values() ([]any, error) {
	return r.current()
}

func (r *Rows) RawValues() [][]byte {
	return nil
}

type row struct {
	rows *Rows
	err  error
}

func (r *row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	defer r.rows.Close()
	if !r.rows.Next() {
		return pgx.ErrNoRows
	}
	return r.rows.Scan(dest...)
}

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("fake: %d values for %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		d := reflect.ValueOf(dest[i])
		if d.Kind() != reflect.Pointer || d.IsNil() {
			return fmt.Errorf("fake: destination #%d is not a pointer", i)
		}
		target := d.Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		src := reflect.ValueOf(v)
		switch {
		case src.Type().AssignableTo(target.Type()):
			target.Set(src)
		case target.Kind() == reflect.Pointer && src.Type().AssignableTo(target.Type().Elem()):
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(src)
			target.Set(p)
		case src.CanConvert(target.Type()):
			target.Set(src.Convert(target.Type()))
		default:
			return fmt.Errorf("fake: %T can not be assigned to %s", v, target.Type())
		}
	}
	return nil
}
