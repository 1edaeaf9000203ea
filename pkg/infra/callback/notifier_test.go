package callback_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/pagecraft/pkg/domain/model"
	"github.com/m-mizutani/pagecraft/pkg/domain/types"
	"github.com/m-mizutani/pagecraft/pkg/infra/callback"
)

// sequenceServer answers with the given statuses in order, repeating the last one
type sequenceServer struct {
	mu       sync.Mutex
	statuses []int
	body     string
	records  []model.NotificationRecord
}

func (s *sequenceServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec model.NotificationRecord
	_ = json.NewDecoder(r.Body).Decode(&rec)
	s.records = append(s.records, rec)

	idx := len(s.records) - 1
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	w.WriteHeader(s.statuses[idx])
	if s.body != "" {
		_, _ = w.Write([]byte(s.body))
	}
}

func (s *sequenceServer) hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// recordSleep captures requested waits without waiting
type recordSleep struct {
	waits []time.Duration
}

func (r *recordSleep) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func testRecord() *model.NotificationRecord {
	return &model.NotificationRecord{
		Email:     "student@example.com",
		Task:      "demo-site",
		Round:     model.RoundCreate,
		Nonce:     "nonce-123",
		RepoURL:   "https://github.com/octo/demo-site",
		CommitSHA: "deadbeef",
		PagesURL:  "https://octo.github.io/demo-site/",
	}
}

func TestNotifier_AlwaysFailing(t *testing.T) {
	srv := &sequenceServer{statuses: []int{http.StatusInternalServerError}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	rs := &recordSleep{}
	n := callback.New(callback.WithSleep(rs.sleep))

	delivery, err := n.Notify(context.Background(), ts.URL, testRecord())
	gt.Error(t, err)
	gt.V(t, delivery).Nil()
	gt.V(t, goerr.HasTag(err, types.ErrTagNotification)).Equal(true)
	gt.String(t, err.Error()).Contains("after all retries")

	gt.Equal(t, srv.hits(), 5)
	gt.Equal(t, rs.waits, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	})
}

func TestNotifier_BackoffIsCapped(t *testing.T) {
	srv := &sequenceServer{statuses: []int{http.StatusServiceUnavailable}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	rs := &recordSleep{}
	n := callback.New(
		callback.WithSleep(rs.sleep),
		callback.WithMaxAttempts(70),
	)

	_, err := n.Notify(context.Background(), ts.URL, testRecord())
	gt.Error(t, err)
	gt.Equal(t, srv.hits(), 70)
	gt.Equal(t, len(rs.waits), 69)

	gt.Equal(t, rs.waits[11], 2048*time.Second)
	gt.Equal(t, rs.waits[12], time.Hour)
	for _, d := range rs.waits {
		gt.True(t, d > 0)
		gt.True(t, d <= time.Hour)
	}
	gt.Equal(t, rs.waits[68], time.Hour)
}

func TestNotifier_RecoversAfterFailures(t *testing.T) {
	for k := 0; k < 5; k++ {
		statuses := make([]int, 0, k+1)
		for i := 0; i < k; i++ {
			statuses = append(statuses, http.StatusBadGateway)
		}
		statuses = append(statuses, http.StatusOK)

		srv := &sequenceServer{statuses: statuses, body: `{"ok":true}`}
		ts := httptest.NewServer(srv)

		rs := &recordSleep{}
		n := callback.New(callback.WithSleep(rs.sleep))

		delivery, err := n.Notify(context.Background(), ts.URL, testRecord())
		gt.NoError(t, err)
		gt.Equal(t, delivery.Attempts, k+1)
		gt.Equal(t, delivery.StatusCode, http.StatusOK)
		gt.Equal(t, string(delivery.Body), `{"ok":true}`)
		gt.Equal(t, srv.hits(), k+1)
		gt.Equal(t, len(rs.waits), k)

		ts.Close()
	}
}

func TestNotifier_AcceptedStatuses(t *testing.T) {
	for _, status := range []int{http.StatusCreated, http.StatusAccepted, http.StatusNoContent} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := &sequenceServer{statuses: []int{status}}
			ts := httptest.NewServer(srv)
			defer ts.Close()

			n := callback.New(callback.WithSleep((&recordSleep{}).sleep))
			delivery, err := n.Notify(context.Background(), ts.URL, testRecord())
			gt.NoError(t, err)
			gt.Equal(t, delivery.StatusCode, status)
			gt.Equal(t, string(delivery.Body), `{"status":"accepted"}`)
			gt.Equal(t, srv.hits(), 1)
		})
	}
}

func TestNotifier_PayloadKeepsNonce(t *testing.T) {
	srv := &sequenceServer{statuses: []int{http.StatusOK}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	n := callback.New()
	_, err := n.Notify(context.Background(), ts.URL, testRecord())
	gt.NoError(t, err)

	gt.Equal(t, len(srv.records), 1)
	gt.Equal(t, srv.records[0], *testRecord())
}

func TestNotifier_TransportErrorIsRetried(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	rs := &recordSleep{}
	n := callback.New(
		callback.WithMaxAttempts(3),
		callback.WithSleep(rs.sleep),
	)

	_, err := n.Notify(context.Background(), url, testRecord())
	gt.Error(t, err)
	gt.V(t, goerr.HasTag(err, types.ErrTagNotification)).Equal(true)
	gt.Equal(t, rs.waits, []time.Duration{time.Second, 2 * time.Second})
}

func TestNotifier_Timeout(t *testing.T) {
	block := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(block)

	n := callback.New(
		callback.WithMaxAttempts(2),
		callback.WithTimeout(50*time.Millisecond),
		callback.WithSleep((&recordSleep{}).sleep),
	)

	_, err := n.Notify(context.Background(), ts.URL, testRecord())
	gt.Error(t, err)
}

func TestNotifier_CancelledDuringBackoff(t *testing.T) {
	srv := &sequenceServer{statuses: []int{http.StatusServiceUnavailable}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	n := callback.New(callback.WithSleep(func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}))

	_, err := n.Notify(context.Background(), ts.URL, testRecord())
	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("notification aborted")
	gt.Equal(t, srv.hits(), 1)
}

func TestNotifier_RealBackoff(t *testing.T) {
	srv := &sequenceServer{statuses: []int{http.StatusInternalServerError, http.StatusInternalServerError, http.StatusOK}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	n := callback.New(callback.WithBaseDelay(10 * time.Millisecond))

	start := time.Now()
	delivery, err := n.Notify(context.Background(), ts.URL, testRecord())
	gt.NoError(t, err)
	gt.Equal(t, delivery.Attempts, 3)
	// 10ms + 20ms of backoff
	gt.V(t, time.Since(start) >= 30*time.Millisecond).Equal(true)
}
