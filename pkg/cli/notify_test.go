package cli_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/pagecraft/pkg/cli"
	"github.com/m-mizutani/pagecraft/pkg/domain/model"
)

func newCallbackServer(t *testing.T, status int) (*httptest.Server, *[]model.NotificationRecord) {
	t.Helper()
	var received []model.NotificationRecord
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec model.NotificationRecord
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
		received = append(received, rec)
		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)
	return ts, &received
}

func TestNotifyCommand_Flags(t *testing.T) {
	ts, received := newCallbackServer(t, http.StatusOK)

	err := cli.Run(context.Background(), []string{
		"pagecraft", "notify",
		"--url", ts.URL,
		"--email", "student@example.com",
		"--task", "demo-site",
		"--round", "2",
		"--nonce", "nonce-123",
		"--repo-url", "https://github.com/octo/demo-site",
		"--commit-sha", "c0ffee",
		"--pages-url", "https://octo.github.io/demo-site/",
	})
	gt.NoError(t, err)

	gt.Equal(t, len(*received), 1)
	gt.Equal(t, (*received)[0], model.NotificationRecord{
		Email:     "student@example.com",
		Task:      "demo-site",
		Round:     model.RoundUpdate,
		Nonce:     "nonce-123",
		RepoURL:   "https://github.com/octo/demo-site",
		CommitSHA: "c0ffee",
		PagesURL:  "https://octo.github.io/demo-site/",
	})
}

func TestNotifyCommand_RecordFile(t *testing.T) {
	ts, received := newCallbackServer(t, http.StatusAccepted)

	path := filepath.Join(t.TempDir(), "record.json")
	gt.NoError(t, os.WriteFile(path, []byte(`{"email":"a@example.com","task":"demo-site","round":1,"nonce":"n-1","repo_url":"https://github.com/octo/demo-site","commit_sha":"abc","pages_url":"https://octo.github.io/demo-site/"}`), 0600))

	err := cli.Run(context.Background(), []string{
		"pagecraft", "notify", "--url", ts.URL, "--record", path,
	})
	gt.NoError(t, err)
	gt.Equal(t, len(*received), 1)
	gt.Equal(t, (*received)[0].Nonce, "n-1")
	gt.Equal(t, (*received)[0].CommitSHA, "abc")
}

func TestNotifyCommand_Rejected(t *testing.T) {
	ts, received := newCallbackServer(t, http.StatusInternalServerError)

	err := cli.Run(context.Background(), []string{
		"pagecraft", "notify",
		"--url", ts.URL,
		"--max-attempts", "1",
		"--task", "demo-site",
		"--nonce", "nonce-123",
	})
	gt.Error(t, err)
	gt.Equal(t, len(*received), 1)
}

func TestNotifyCommand_MissingNonce(t *testing.T) {
	ts, received := newCallbackServer(t, http.StatusOK)

	err := cli.Run(context.Background(), []string{
		"pagecraft", "notify", "--url", ts.URL, "--task", "demo-site",
	})
	gt.Error(t, err)
	gt.Equal(t, len(*received), 0)
}
