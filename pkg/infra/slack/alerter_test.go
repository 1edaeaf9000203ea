package slack_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/slack-go/slack"

	"github.com/m-mizutani/pagecraft/pkg/domain/model"
	slackinfra "github.com/m-mizutani/pagecraft/pkg/infra/slack"
)

func TestAlerter_Alert(t *testing.T) {
	var received slack.WebhookMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	req := &model.TaskRequest{
		Email:         "student@example.com",
		Task:          "demo-site",
		Round:         model.RoundCreate,
		Nonce:         "nonce-1",
		EvaluationURL: "https://eval.example.com/notify",
	}
	result := &model.RoundResult{
		Status: model.RoundStatusPartial,
		Round:  model.RoundCreate,
		Record: &model.NotificationRecord{
			RepoURL:   "https://github.com/octo/demo-site",
			CommitSHA: "deadbeef",
		},
		Warnings: []string{"notification failed"},
	}

	alerter := slackinfra.NewAlerter(ts.URL)
	err := alerter.Alert(context.Background(), req, result, goerr.New("callback unreachable"))
	gt.NoError(t, err)

	gt.String(t, received.Text).Contains("demo-site")
	gt.String(t, received.Text).Contains("partial")
	gt.String(t, received.Text).Contains("callback unreachable")
	gt.String(t, received.Text).Contains("notification failed")
	gt.Equal(t, len(received.Attachments), 1)
	gt.Equal(t, received.Attachments[0].Color, "warning")
}

func TestAlerter_FailedRoundWithoutResult(t *testing.T) {
	var received slack.WebhookMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	req := &model.TaskRequest{Task: "demo-site", Round: model.RoundUpdate}

	err := slackinfra.NewAlerter(ts.URL).Alert(context.Background(), req, nil, goerr.New("publish failed"))
	gt.NoError(t, err)
	gt.String(t, received.Text).Contains("failed")
	gt.Equal(t, received.Attachments[0].Color, "danger")
}

func TestAlerter_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	req := &model.TaskRequest{Task: "demo-site", Round: model.RoundCreate}
	err := slackinfra.NewAlerter(ts.URL).Alert(context.Background(), req, nil, nil)
	gt.Error(t, err)
}
