// Package retry calls a function again until it stops asking for a retry.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetry is returned by a function which wants to be called again.
var ErrRetry = errors.New("retry")

// Backoff blocks until the next attempt may start.
//
// It returns ctx.Err() when the context is done before that.
type Backoff func(context.Context) error

// StaticBackoff waits interval before every attempt.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff waits initial * r^N before the N-th attempt.
func ExponentialBackoff(initial time.Duration, r float64) Backoff {
	interval := initial
	return func(ctx context.Context) error {
		timer := time.NewTimer(interval)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			interval = time.Duration(int64(float64(interval) * r))
			return nil
		}
	}
}

// Blocking calls f until it returns nil or an error other than ErrRetry.
//
// It returns the last value f returned.
func Blocking[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	last := *new(T)
	for {
		if err := b(ctx); err != nil {
			return last, err
		}

		var err error
		last, err = f()
		if err == nil {
			return last, nil
		}
		if errors.Is(err, ErrRetry) {
			continue
		}
		return last, err
	}
}

type Result[T any] struct {
	Value T
	Err   error
}

// Promise yields exactly one Result, then it is closed.
type Promise[T any] <-chan Result[T]

func Failed[T any](err error) Promise[T] {
	ch := make(chan Result[T], 1)
	ch <- Result[T]{Err: err}
	close(ch)
	return ch
}

func Ok[T any](value T) Promise[T] {
	ch := make(chan Result[T], 1)
	ch <- Result[T]{Value: value}
	close(ch)
	return ch
}

// Go runs Blocking in a new goroutine.
//
// A panic in f is delivered as an error.
func Go[T any](ctx context.Context, b Backoff, f func() (T, error)) Promise[T] {
	ch := make(chan Result[T], 1)

	go func() {
		defer close(ch)
		defer func() {
			var err error
			switch r := recover().(type) {
			case nil:
				return
			case error:
				err = r
			default:
				err = fmt.Errorf("%+v", r)
			}
			ch <- Result[T]{Err: err}
		}()

		ret, err := Blocking(ctx, b, f)
		ch <- Result[T]{Value: ret, Err: err}
	}()

	return ch
}
