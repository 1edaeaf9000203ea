package errutil

import (
	"context"
	"errors"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Handle logs err and reports it to Sentry. Values attached with goerr.V are
// sent in the "goerr" context. Sentry capture is a no-op until sentry.Init
// has been called with a DSN.
func Handle(ctx context.Context, msg string, err error) {
	if err == nil {
		return
	}

	ctxlog.From(ctx).Error(msg, "error", err)
	Report(msg, err)
}

// Report sends err to Sentry without logging it
func Report(msg string, err error) {
	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("message", msg)

		var goErr *goerr.Error
		if errors.As(err, &goErr) {
			values := sentry.Context{}
			for k, v := range goErr.Values() {
				values[k] = v
			}
			scope.SetContext("goerr", values)
		}

		hub.CaptureException(err)
	})
}
