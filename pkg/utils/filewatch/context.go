// Package filewatch cancels a context when files change.
package filewatch

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	xe "github.com/pombredanne/facereclib/pkg/errors"
)

// UntilModifyContext returns a context canceled when one of paths is
// written, created, removed or renamed. A directory path watches its entries.
//
// The cause of the cancellation (context.Cause) names the changed file.
//
// On error, both of the context and the cancel function are nil.
func UntilModifyContext(ctx context.Context, paths ...string) (context.Context, func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, xe.Wrap(err)
	}
	for _, p := range paths {
		if err := w.Add(p); err != nil {
			w.Close()
			return nil, nil, xe.WrapWithNote(p, err)
		}
	}

	cctx, cancel := context.WithCancelCause(ctx)
	go func() {
		defer w.Close()
		for {
			select {
			case <-cctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op == fsnotify.Chmod {
					continue
				}
				cancel(fmt.Errorf("%s is updated (%s)", event.Name, event.Op))
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				cancel(err)
				return
			}
		}
	}()
	return cctx, func() { cancel(nil) }, nil
}
