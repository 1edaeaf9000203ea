package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/pagecraft/pkg/domain/model"
	"github.com/slack-go/slack"
)

// Alerter posts round problems to a Slack incoming webhook
type Alerter struct {
	webhookURL string
}

// NewAlerter creates an Alerter for webhookURL
func NewAlerter(webhookURL string) *Alerter {
	return &Alerter{
		webhookURL: webhookURL,
	}
}

// Alert sends a message describing a partial or failed round
func (x *Alerter) Alert(ctx context.Context, req *model.TaskRequest, result *model.RoundResult, cause error) error {
	msg := &slack.WebhookMessage{
		Text:        buildText(req, result, cause),
		Attachments: buildAttachments(req, result),
	}

	if err := slack.PostWebhookContext(ctx, x.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post Slack alert", goerr.V("task", req.Task))
	}
	return nil
}

func buildText(req *model.TaskRequest, result *model.RoundResult, cause error) string {
	status := model.RoundStatusFailed
	if result != nil {
		status = result.Status
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Round %d of task `%s` ended as *%s*", req.Round, req.Task, status))
	if cause != nil {
		sb.WriteString(fmt.Sprintf("\n> %s", cause.Error()))
	}
	if result != nil {
		for _, w := range result.Warnings {
			sb.WriteString(fmt.Sprintf("\n- %s", w))
		}
	}
	return sb.String()
}

func buildAttachments(req *model.TaskRequest, result *model.RoundResult) []slack.Attachment {
	fields := []slack.AttachmentField{
		{Title: "Email", Value: req.Email, Short: true},
		{Title: "Nonce", Value: req.Nonce, Short: true},
		{Title: "Evaluation URL", Value: req.EvaluationURL},
	}
	if result != nil && result.Record != nil {
		fields = append(fields,
			slack.AttachmentField{Title: "Repository", Value: result.Record.RepoURL},
			slack.AttachmentField{Title: "Commit", Value: result.Record.CommitSHA, Short: true},
		)
	}

	color := "danger"
	if result != nil && result.Status == model.RoundStatusPartial {
		color = "warning"
	}

	return []slack.Attachment{{Color: color, Fields: fields}}
}
