package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/pagecraft/pkg/utils/errutil"
)

// Dispatcher runs handlers in background goroutines and keeps track of the
// ones still running so shutdown can wait for them.
type Dispatcher struct {
	wg sync.WaitGroup
}

// New creates a Dispatcher
func New() *Dispatcher {
	return &Dispatcher{}
}

// Dispatch executes handler asynchronously.
//
// The handler gets a new background context carrying the logger of ctx, so
// cancellation of ctx (e.g. the HTTP request finishing) does not stop it.
// Returned errors and panics are logged and reported to Sentry.
func (d *Dispatcher) Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	newCtx := newBackgroundContext(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				ctxlog.From(newCtx).Error("panic in async handler",
					"recover", r,
					"stack", string(stack))
				errutil.Report("panic in async handler",
					goerr.New(fmt.Sprintf("panic: %v", r), goerr.V("stack", string(stack))))
			}
		}()

		if err := handler(newCtx); err != nil {
			errutil.Handle(newCtx, "error in async handler", err)
		}
	}()
}

// Wait blocks until every dispatched handler has returned or ctx is done
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "background handlers still running")
	}
}

// newBackgroundContext creates context.Background() carrying the ctxlog
// logger of ctx
func newBackgroundContext(ctx context.Context) context.Context {
	return ctxlog.With(context.Background(), ctxlog.From(ctx))
}
