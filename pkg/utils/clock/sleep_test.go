package clock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/pagecraft/pkg/utils/clock"
)

func TestSleep(t *testing.T) {
	t.Run("zero duration returns immediately", func(t *testing.T) {
		gt.NoError(t, clock.Sleep(context.Background(), 0))
	})

	t.Run("waits for the duration", func(t *testing.T) {
		start := time.Now()
		gt.NoError(t, clock.Sleep(context.Background(), 20*time.Millisecond))
		gt.V(t, time.Since(start) >= 20*time.Millisecond).Equal(true)
	})

	t.Run("cancelled context stops the wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := clock.Sleep(ctx, time.Hour)
		gt.V(t, errors.Is(err, context.Canceled)).Equal(true)
	})
}
