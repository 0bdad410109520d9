// Package errors wraps errors with the location where they are wrapped.
//
// Usage:
//
//	return xe.Wrap(err)
//
// The message of a wrapped error reads like
//
//	@ pkg.Func "file.go" l12 <- @ pkg.Inner "inner.go" l34 <- root cause
//
// so replacing "<-" with newlines gives a rough stack of wrap points.
//
// Sentinel errors in this package classify failures of the toolchain.
// Test them with errors.Is.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	// the experiment can not start: a config, database or input path is missing or broken.
	ErrConfiguration = errors.New("configuration error")

	// score files do not line up with the id lists they are read against.
	ErrMisaligned = errors.New("score file misaligned")

	// a tool, preprocessor or extractor name is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// a job token is malformed, expired or not signed by the expected key.
	ErrBadToken = errors.New("bad job token")
)

type ErrWithCaller struct {
	file     string
	line     int
	funcname string
	note     string
	err      error
}

func (e *ErrWithCaller) File() string {
	return e.file
}

func (e *ErrWithCaller) Line() int {
	return e.line
}

func (e *ErrWithCaller) Error() string {
	if e.note == "" {
		return fmt.Sprintf(`@ %s "%s" l%d <- %s`, e.funcname, e.file, e.line, e.err.Error())
	}
	return fmt.Sprintf(`@ %s "%s" l%d (%s) <- %s`, e.funcname, e.file, e.line, e.note, e.err.Error())
}

func (e *ErrWithCaller) Unwrap() error {
	return e.err
}

func New(text string) error {
	return wrap("", errors.New(text), 1)
}

// Wrap err with the caller's location. Wrap(nil) is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return wrap("", err, 1)
}

func WrapWithNote(note string, err error) error {
	if err == nil {
		return nil
	}
	return wrap(note, err, 1)
}

// Configuration builds an error classified as ErrConfiguration.
func Configuration(format string, args ...any) error {
	return wrap("", fmt.Errorf("%w: "+format, append([]any{ErrConfiguration}, args...)...), 1)
}

func wrap(note string, err error, depth int) error {
	pc, file, line, ok := runtime.Caller(depth + 1)
	funcname := "(unknown func)"
	if !ok {
		file = "?"
		line = -1
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		funcname = fn.Name()
	}

	return &ErrWithCaller{
		funcname: funcname,
		file:     file,
		line:     line,
		note:     note,
		err:      err,
	}
}
