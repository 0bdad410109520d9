// Package errors classifies errors of postgres queries.
package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

var (
	// requested row is not found.
	ErrMissing = errors.New("missing")

	// a row with the same key exists.
	ErrConflict = errors.New("conflict")

	// a referenced row does not exist.
	ErrDangling = errors.New("dangling reference")
)

// requested data is missing.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}

func (m Missing) Unwrap() error {
	return ErrMissing
}

// Classify maps constraint violations to ErrConflict or ErrDangling,
// keeping the original error in the chain.
//
// Other errors are returned as they are.
func Classify(err error) error {
	pgerr := new(pgconn.PgError)
	if !errors.As(err, &pgerr) {
		return err
	}
	switch pgerr.Code {
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("%w: %s: %w", ErrConflict, pgerr.ConstraintName, err)
	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("%w: %s: %w", ErrDangling, pgerr.ConstraintName, err)
	}
	return err
}
