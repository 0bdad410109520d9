// Package scanner scans pgx.Rows into structs.
//
// Columns are mapped into fields
//
//  1. with tag `sql:"column_name"`,
//  2. or, named as the CamelCase version of the column name.
//
// Example:
//
//	type job struct {
//		JobID  string `sql:"job_id"`
//		Status string
//	}
//
//	jobs, err := scanner.New[job]().QueryAll(ctx, conn, `select "job_id", "status" from "job"`)
package scanner

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v4"
)

type Queryer interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
}

type Scanner[T any] struct {
	fields map[string]string
}

// New builds a Scanner for struct T.
func New[T any]() *Scanner[T] {
	t := reflect.TypeOf(*new(T))
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("scanner: %s is not a struct", t))
	}

	fields := map[string]string{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag, ok := f.Tag.Lookup("sql"); ok {
			fields[tag] = f.Name
			continue
		}
		if _, ok := fields[f.Name]; !ok {
			fields[f.Name] = f.Name
		}
	}
	return &Scanner[T]{fields: fields}
}

func camel(column string) string {
	b := &strings.Builder{}
	for _, w := range strings.Split(column, "_") {
		if w == "" {
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	return b.String()
}

func (s *Scanner[T]) field(column string) (string, bool) {
	if f, ok := s.fields[column]; ok {
		return f, true
	}
	f, ok := s.fields[camel(column)]
	return f, ok
}

// ScanAll reads every row and closes rows.
func (s *Scanner[T]) ScanAll(rows pgx.Rows) ([]T, error) {
	defer rows.Close()

	columns := rows.FieldDescriptions()
	names := make([]string, len(columns))
	for i, c := range columns {
		f, ok := s.field(string(c.Name))
		if !ok {
			return nil, fmt.Errorf(`field for column "%s" is not found in type "%T"`, c.Name, *new(T))
		}
		names[i] = f
	}

	ret := []T{}
	for rows.Next() {
		elem := new(T)
		v := reflect.ValueOf(elem).Elem()
		dest := make([]any, len(names))
		for i, n := range names {
			dest[i] = v.FieldByName(n).Addr().Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		ret = append(ret, *elem)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// QueryAll sends a query and scans its result.
func (s *Scanner[T]) QueryAll(ctx context.Context, q Queryer, sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return s.ScanAll(rows)
}
