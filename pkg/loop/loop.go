// Package loop repeats a task until it breaks or its context is done.
package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells Start what to do after a task returns.
type Next struct {
	err      error
	quit     bool
	interval time.Duration
}

func (n Next) String() string {
	if n.err != nil {
		return fmt.Sprintf("[break] with error: %v", n.err)
	}
	if n.quit {
		return "[break] without error"
	}
	return fmt.Sprintf("[continue] interval: %s", n.interval)
}

// Continue runs the task again after interval.
func Continue(interval time.Duration) Next {
	return Next{interval: interval}
}

// Break stops the loop. err may be nil.
func Break(err error) Next {
	return Next{quit: true, err: err}
}

// Task receives the value it returned last time (init at first).
//
// The zero Next is Continue(0).
type Task[T any] func(context.Context, T) (T, Next)

// Start calls task repeatedly.
//
// It returns the last value task returned, with the error passed to Break,
// or ctx.Err() when ctx is done.
//
// Example: count to 10.
//
//	loop.Start(ctx, 1, func(_ context.Context, v int) (int, loop.Next) {
//		if 10 <= v {
//			return v, loop.Break(nil)
//		}
//		return v + 1, loop.Continue(0)
//	})
func Start[T any](ctx context.Context, init T, task Task[T], options ...Option) (T, error) {
	select {
	case <-ctx.Done():
		return init, ctx.Err()
	default:
	}

	value := init
	for {
		lc := &config{ctx: ctx}
		for _, opt := range options {
			lc = opt(lc)
		}

		v, n := func() (T, Next) {
			if lc.deferred != nil {
				defer lc.deferred()
			}
			return task(lc.ctx, value)
		}()

		if n.err != nil {
			return v, n.err
		} else if n.quit {
			return v, nil
		}
		value = v

		timer := time.NewTimer(n.interval)
		select {
		case <-ctx.Done():
			// shutting down comes first.
			timer.Stop()
			return value, ctx.Err()
		case <-timer.C:
		}
	}
}

type config struct {
	ctx      context.Context
	deferred func()
}

type Option func(*config) *config

// WithTimeout bounds each call of the task, not the whole loop.
func WithTimeout(d time.Duration) Option {
	return func(lc *config) *config {
		ctx, cancel := context.WithTimeout(lc.ctx, d)
		return &config{
			ctx: ctx,
			deferred: func() {
				if lc.deferred != nil {
					defer lc.deferred()
				}
				cancel()
			},
		}
	}
}
