package errors_test

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	xe "github.com/pombredanne/facereclib/pkg/errors"
)

type stageErr struct{}

func (stageErr) Error() string {
	return "stage failed"
}

func failStage(message string) error {
	return xe.New(message)
}

func TestWrap(t *testing.T) {
	t.Run("it knows location where it is created", func(t *testing.T) {
		testee := failStage("enrolment failed")
		errMessage := testee.Error()

		_, thisFile, _, _ := runtime.Caller(0)

		if !strings.Contains(errMessage, "failStage") {
			t.Errorf("it does not know function name: %s", errMessage)
		}
		if !strings.Contains(errMessage, thisFile) {
			t.Errorf("it does not know file (%s): %s", thisFile, errMessage)
		}
	})

	t.Run("it supports errors protocol", func(t *testing.T) {
		root := stageErr{}
		err := xe.Wrap(fmt.Errorf("%w", fmt.Errorf("%w", root)))

		if !errors.Is(err, root) {
			t.Error("it does not support unwrapping.")
		}
	})

	t.Run("it returns nil when nil is wrapped", func(t *testing.T) {
		if err := xe.Wrap(nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if err := xe.WrapWithNote("note", nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("it carries its note", func(t *testing.T) {
		err := xe.WrapWithNote("score A", stageErr{})
		if !strings.Contains(err.Error(), "(score A)") {
			t.Errorf("note is missing: %s", err)
		}
	})
}

func TestConfiguration(t *testing.T) {
	t.Run("it is classified as ErrConfiguration", func(t *testing.T) {
		err := xe.Configuration("%s is required", "database.name")
		if !errors.Is(err, xe.ErrConfiguration) {
			t.Errorf("unexpected classification: %v", err)
		}
		if !strings.Contains(err.Error(), "database.name is required") {
			t.Errorf("message is lost: %s", err)
		}
	})
}
