package async_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/pagecraft/pkg/utils/async"
)

// safeBuffer is a thread-safe buffer for concurrent logging
type safeBuffer struct {
	b bytes.Buffer
	m sync.Mutex
}

func (sb *safeBuffer) Write(p []byte) (int, error) {
	sb.m.Lock()
	defer sb.m.Unlock()
	return sb.b.Write(p)
}

func (sb *safeBuffer) String() string {
	sb.m.Lock()
	defer sb.m.Unlock()
	return sb.b.String()
}

func requestContext(buf *safeBuffer) (context.Context, context.CancelFunc) {
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.With(context.Background(), logger.With("request_id", "req-1"))
	return context.WithCancel(ctx)
}

// captureSentry routes Sentry events to the returned slice until the test ends
func captureSentry(t *testing.T) *[]*sentry.Event {
	var (
		mu     sync.Mutex
		events []*sentry.Event
	)
	gt.NoError(t, sentry.Init(sentry.ClientOptions{
		Dsn: "https://public@sentry.example.com/1",
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, event)
			return nil
		},
	}))
	t.Cleanup(func() { sentry.CurrentHub().BindClient(nil) })
	return &events
}

func TestDispatch_RoundOutlivesRequest(t *testing.T) {
	var buf safeBuffer
	reqCtx, cancel := requestContext(&buf)

	var roundErr error
	d := async.New()
	d.Dispatch(reqCtx, func(ctx context.Context) error {
		// 202 has been written and the request context is gone
		cancel()
		roundErr = ctx.Err()
		ctxlog.From(ctx).Info("round finished", "task", "demo-site")
		return nil
	})

	gt.NoError(t, d.Wait(context.Background()))
	gt.NoError(t, roundErr)
	gt.Error(t, reqCtx.Err())

	// request scoped logger is carried into the background round
	gt.String(t, buf.String()).Contains("round finished")
	gt.String(t, buf.String()).Contains("request_id=req-1")
}

func TestDispatch_FailedRoundIsLoggedAndReported(t *testing.T) {
	events := captureSentry(t)

	var buf safeBuffer
	reqCtx, cancel := requestContext(&buf)
	defer cancel()

	d := async.New()
	d.Dispatch(reqCtx, func(ctx context.Context) error {
		return goerr.New("failed to create repository", goerr.V("repo", "demo-site"))
	})
	gt.NoError(t, d.Wait(context.Background()))

	gt.String(t, buf.String()).Contains("error in async handler")
	gt.String(t, buf.String()).Contains("failed to create repository")

	gt.Equal(t, len(*events), 1)
	gt.Equal(t, (*events)[0].Tags["message"], "error in async handler")
	gt.Equal(t, (*events)[0].Contexts["goerr"]["repo"], any("demo-site"))
}

func TestDispatch_PanicIsRecovered(t *testing.T) {
	events := captureSentry(t)

	var buf safeBuffer
	reqCtx, cancel := requestContext(&buf)
	defer cancel()

	d := async.New()
	d.Dispatch(reqCtx, func(ctx context.Context) error {
		var artifacts []string
		_ = artifacts[3]
		return nil
	})

	gt.NoError(t, d.Wait(context.Background()))
	gt.String(t, buf.String()).Contains("panic in async handler")
	gt.String(t, buf.String()).Contains("index out of range")
	gt.Equal(t, len(*events), 1)
	gt.Equal(t, (*events)[0].Tags["message"], "panic in async handler")

	// the dispatcher keeps serving rounds after a panic
	var ran atomic.Bool
	d.Dispatch(reqCtx, func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	gt.NoError(t, d.Wait(context.Background()))
	gt.True(t, ran.Load())
}

func TestDispatcher_WaitOnShutdown(t *testing.T) {
	t.Run("nothing dispatched", func(t *testing.T) {
		gt.NoError(t, async.New().Wait(context.Background()))
	})

	t.Run("deadline before rounds finish", func(t *testing.T) {
		var buf safeBuffer
		reqCtx, cancel := requestContext(&buf)
		defer cancel()

		release := make(chan struct{})
		d := async.New()
		d.Dispatch(reqCtx, func(ctx context.Context) error {
			<-release
			return nil
		})

		shutdownCtx, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer stop()
		err := d.Wait(shutdownCtx)
		gt.Error(t, err)
		gt.String(t, err.Error()).Contains("background handlers still running")

		close(release)
		gt.NoError(t, d.Wait(context.Background()))
	})

	t.Run("waits for every concurrent round", func(t *testing.T) {
		var buf safeBuffer
		reqCtx, cancel := requestContext(&buf)
		defer cancel()

		var finished atomic.Int32
		d := async.New()
		for i := 0; i < 8; i++ {
			d.Dispatch(reqCtx, func(ctx context.Context) error {
				time.Sleep(time.Duration(i) * time.Millisecond)
				finished.Add(1)
				return nil
			})
		}

		gt.NoError(t, d.Wait(context.Background()))
		gt.Equal(t, finished.Load(), int32(8))
	})
}
