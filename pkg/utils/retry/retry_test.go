package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pombredanne/facereclib/pkg/utils/retry"
)

func TestBlocking(t *testing.T) {
	t.Run("it calls again while the function asks for retry", func(t *testing.T) {
		calls := 0
		v, err := retry.Blocking(
			context.Background(), retry.StaticBackoff(time.Millisecond),
			func() (int, error) {
				calls += 1
				if calls < 3 {
					return calls, retry.ErrRetry
				}
				return calls, nil
			},
		)
		if err != nil {
			t.Fatal(err)
		}
		if v != 3 || calls != 3 {
			t.Errorf("unexpected result: (value, calls) = (%d, %d)", v, calls)
		}
	})

	t.Run("it stops at an error other than ErrRetry", func(t *testing.T) {
		expected := errors.New("fake")
		calls := 0
		_, err := retry.Blocking(
			context.Background(), retry.StaticBackoff(time.Millisecond),
			func() (int, error) {
				calls += 1
				return 0, expected
			},
		)
		if !errors.Is(err, expected) || calls != 1 {
			t.Errorf("unexpected result: (err, calls) = (%v, %d)", err, calls)
		}
	})

	t.Run("it stops when the context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := retry.Blocking(
			ctx, retry.StaticBackoff(time.Hour),
			func() (int, error) { return 0, retry.ErrRetry },
		)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestGo(t *testing.T) {
	t.Run("it delivers a panic as an error", func(t *testing.T) {
		r := <-retry.Go(
			context.Background(), retry.StaticBackoff(time.Millisecond),
			func() (int, error) { panic("boom") },
		)
		if r.Err == nil {
			t.Error("panic is not delivered")
		}
	})

	t.Run("it delivers the value", func(t *testing.T) {
		r := <-retry.Go(
			context.Background(), retry.StaticBackoff(time.Millisecond),
			func() (string, error) { return "done", nil },
		)
		if r.Err != nil || r.Value != "done" {
			t.Errorf("unexpected result: %+v", r)
		}
	})
}
