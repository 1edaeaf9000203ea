package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/pagecraft/pkg/domain/model"
	"github.com/m-mizutani/pagecraft/pkg/domain/types"
	"github.com/m-mizutani/pagecraft/pkg/utils/clock"
)

const (
	defaultMaxAttempts = 5
	defaultTimeout     = 30 * time.Second
	defaultBaseDelay   = time.Second

	maxResponseBody = 1 << 20

	// waits between attempts never exceed this
	maxBackoff = time.Hour
)

// acceptedBody is returned for 201/202/204 responses, which carry no useful body
var acceptedBody = []byte(`{"status":"accepted"}`)

// Notifier posts completion records to evaluation callbacks. Failed attempts
// are retried with pure exponential backoff: base, 2*base, 4*base, ...
type Notifier struct {
	httpClient  *http.Client
	maxAttempts int
	timeout     time.Duration
	baseDelay   time.Duration
	sleep       clock.SleepFunc
}

// Option configures Notifier
type Option func(*Notifier)

// WithMaxAttempts sets how many deliveries are tried before giving up
func WithMaxAttempts(n int) Option {
	return func(x *Notifier) {
		x.maxAttempts = n
	}
}

// WithTimeout sets the timeout of a single attempt
func WithTimeout(d time.Duration) Option {
	return func(x *Notifier) {
		x.timeout = d
	}
}

// WithBaseDelay sets the wait after the first failed attempt
func WithBaseDelay(d time.Duration) Option {
	return func(x *Notifier) {
		x.baseDelay = d
	}
}

// WithHTTPClient replaces the HTTP client used for delivery
func WithHTTPClient(c *http.Client) Option {
	return func(x *Notifier) {
		x.httpClient = c
	}
}

// WithSleep replaces the function used to wait between attempts
func WithSleep(fn clock.SleepFunc) Option {
	return func(x *Notifier) {
		x.sleep = fn
	}
}

// New creates a Notifier
func New(opts ...Option) *Notifier {
	n := &Notifier{
		httpClient:  &http.Client{},
		maxAttempts: defaultMaxAttempts,
		timeout:     defaultTimeout,
		baseDelay:   defaultBaseDelay,
		sleep:       clock.Sleep,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.maxAttempts < 1 {
		n.maxAttempts = 1
	}
	return n
}

// Notify delivers record to url. It returns after the first accepted
// attempt, or fails with an error tagged ErrTagNotification once every
// attempt has failed.
func (n *Notifier) Notify(ctx context.Context, url string, record *model.NotificationRecord) (*model.Delivery, error) {
	logger := ctxlog.From(ctx)

	body, err := json.Marshal(record)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal notification record", goerr.T(types.ErrTagNotification))
	}

	var lastErr error
	for i := 0; i < n.maxAttempts; i++ {
		delivery, err := n.attempt(ctx, url, body)
		if err == nil {
			delivery.Attempts = i + 1
			logger.Info("Notified evaluation endpoint",
				"url", url,
				"status", delivery.StatusCode,
				"attempts", delivery.Attempts,
			)
			return delivery, nil
		}

		lastErr = err
		logger.Warn("Notification attempt failed",
			"url", url,
			"attempt", i+1,
			"max_attempts", n.maxAttempts,
			"error", err,
		)

		if i == n.maxAttempts-1 {
			break
		}

		delay := backoff(n.baseDelay, i)
		if err := n.sleep(ctx, delay); err != nil {
			return nil, goerr.Wrap(err, "notification aborted",
				goerr.V("url", url),
				goerr.V("attempts", i+1),
				goerr.T(types.ErrTagNotification))
		}
	}

	return nil, goerr.Wrap(lastErr, "failed to notify evaluation endpoint after all retries",
		goerr.V("url", url),
		goerr.V("attempts", n.maxAttempts),
		goerr.T(types.ErrTagNotification))
}

func (n *Notifier) attempt(ctx context.Context, url string, body []byte) (*model.Delivery, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create notification request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send notification")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read notification response",
			goerr.V("status", resp.StatusCode))
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return &model.Delivery{StatusCode: resp.StatusCode, Body: respBody}, nil

	case http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		return &model.Delivery{StatusCode: resp.StatusCode, Body: acceptedBody}, nil

	default:
		return nil, goerr.New("evaluation endpoint rejected notification",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(respBody)))
	}
}

// backoff returns base * 2^retry, capped at maxBackoff
func backoff(base time.Duration, retry int) time.Duration {
	d := base
	for k := 0; k < retry; k++ {
		if d >= maxBackoff/2 {
			return maxBackoff
		}
		d *= 2
	}
	return min(d, maxBackoff)
}
