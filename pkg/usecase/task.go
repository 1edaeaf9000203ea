package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/pagecraft/pkg/domain/interfaces"
	"github.com/m-mizutani/pagecraft/pkg/domain/model"
	"github.com/m-mizutani/pagecraft/pkg/domain/types"
	"github.com/m-mizutani/pagecraft/pkg/utils/clock"
)

//go:embed templates/pages.yml
var pagesWorkflowTemplate string

// Task runs the rounds of a task: round 1 creates and publishes a new
// repository, round 2 revises it in place.
type Task struct {
	host      interfaces.RepoHost
	generator interfaces.Generator
	publisher interfaces.Publisher
	notifier  interfaces.Notifier
	alerter   interfaces.Alerter
	pipeline  model.Pipeline
	sleep     clock.SleepFunc
	workflow  *template.Template
}

// TaskOption configures Task
type TaskOption func(*Task)

// WithAlerter reports partial and failed rounds to alerter
func WithAlerter(alerter interfaces.Alerter) TaskOption {
	return func(uc *Task) {
		uc.alerter = alerter
	}
}

// WithSleep replaces the function used for consistency pauses
func WithSleep(fn clock.SleepFunc) TaskOption {
	return func(uc *Task) {
		uc.sleep = fn
	}
}

// NewTask creates the round orchestrator
func NewTask(
	host interfaces.RepoHost,
	generator interfaces.Generator,
	publisher interfaces.Publisher,
	notifier interfaces.Notifier,
	pipeline model.Pipeline,
	opts ...TaskOption,
) *Task {
	uc := &Task{
		host:      host,
		generator: generator,
		publisher: publisher,
		notifier:  notifier,
		pipeline:  pipeline,
		sleep:     clock.Sleep,
		workflow:  template.Must(template.New("pages_workflow").Parse(pagesWorkflowTemplate)),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Run executes the round requested by req.
//
// Publishing is the success criterion of a round. When content is published
// but the evaluation endpoint cannot be notified, the result is
// RoundStatusPartial with a warning and no error; nothing is rolled back.
// Any failure before that point is returned as an error.
func (uc *Task) Run(ctx context.Context, req *model.TaskRequest) (*model.RoundResult, error) {
	logger := ctxlog.From(ctx).With(
		"run_id", uuid.NewString(),
		"task", req.Task,
		"round", int(req.Round),
	)
	ctx = ctxlog.With(ctx, logger)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		result *model.RoundResult
		err    error
	)
	switch req.Round {
	case model.RoundCreate:
		result, err = uc.runCreate(ctx, req)
	case model.RoundUpdate:
		result, err = uc.runUpdate(ctx, req)
	default:
		return nil, goerr.New("Invalid round", goerr.V("round", int(req.Round)), goerr.T(types.ErrTagValidation))
	}

	if err != nil {
		logger.Error("Round failed", "error", err)
		uc.alert(ctx, req, nil, err)
		return nil, err
	}

	if result.Status != model.RoundStatusSuccess {
		uc.alert(ctx, req, result, nil)
	}

	logger.Info("Round completed",
		"status", result.Status,
		"commit_sha", result.Record.CommitSHA,
		"warnings", len(result.Warnings),
	)

	return result, nil
}

func (uc *Task) runCreate(ctx context.Context, req *model.TaskRequest) (*model.RoundResult, error) {
	logger := ctxlog.From(ctx)
	result := &model.RoundResult{Round: req.Round}

	repo, err := uc.host.CreateRepository(ctx, req.Task)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}

	if err := uc.sleep(ctx, uc.pipeline.RepoReadyWait); err != nil {
		return nil, goerr.Wrap(err, "interrupted while waiting for repository")
	}

	if err := uc.generateAndPublish(ctx, req, result); err != nil {
		return nil, err
	}

	if err := uc.sleep(ctx, uc.pipeline.CommitSettleWait); err != nil {
		return nil, goerr.Wrap(err, "interrupted while waiting for commit")
	}

	if err := uc.host.ConfigurePages(ctx, req.Task, uc.pipeline.Branch, uc.pipeline.PagesBuildType); err != nil {
		logger.Warn("Failed to configure GitHub Pages", "error", err)
		result.AddWarning(fmt.Sprintf("failed to configure pages: %s", err.Error()))
	}

	sha, err := uc.host.LatestCommit(ctx, req.Task, uc.pipeline.Branch)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read latest commit")
	}

	result.Record = uc.buildRecord(req, repo.HTMLURL, sha)
	uc.notify(ctx, req, result)

	return result, nil
}

func (uc *Task) runUpdate(ctx context.Context, req *model.TaskRequest) (*model.RoundResult, error) {
	result := &model.RoundResult{Round: req.Round}

	if err := uc.generateAndPublish(ctx, req, result); err != nil {
		return nil, err
	}

	if err := uc.sleep(ctx, uc.pipeline.CommitSettleWait); err != nil {
		return nil, goerr.Wrap(err, "interrupted while waiting for commit")
	}

	sha, err := uc.host.LatestCommit(ctx, req.Task, uc.pipeline.Branch)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read latest commit")
	}

	result.Record = uc.buildRecord(req, uc.host.RepoURL(req.Task), sha)
	uc.notify(ctx, req, result)

	return result, nil
}

func (uc *Task) generateAndPublish(ctx context.Context, req *model.TaskRequest, result *model.RoundResult) error {
	artifacts, err := uc.generator.Generate(ctx, req)
	if err != nil {
		return goerr.Wrap(err, "failed to generate artifacts")
	}
	if len(artifacts) == 0 {
		ctxlog.From(ctx).Warn("LLM answer contained no artifacts")
		result.AddWarning("no artifacts were generated")
	}

	if uc.pipeline.PagesBuildType == model.PagesBuildWorkflow {
		workflow, err := uc.renderWorkflow()
		if err != nil {
			return err
		}
		artifacts = append(artifacts, workflow)
	}

	if err := uc.publisher.Publish(ctx, req.Task, artifacts, req.Round); err != nil {
		return goerr.Wrap(err, "failed to publish artifacts")
	}

	return nil
}

func (uc *Task) renderWorkflow() (*model.Artifact, error) {
	var buf bytes.Buffer
	if err := uc.workflow.Execute(&buf, map[string]string{"Branch": uc.pipeline.Branch}); err != nil {
		return nil, goerr.Wrap(err, "failed to render pages workflow")
	}
	return &model.Artifact{Name: model.ArtifactPagesWorkflow, Content: buf.String()}, nil
}

func (uc *Task) buildRecord(req *model.TaskRequest, repoURL, sha string) *model.NotificationRecord {
	return &model.NotificationRecord{
		Email:     req.Email,
		Task:      req.Task,
		Round:     req.Round,
		Nonce:     req.Nonce,
		RepoURL:   repoURL,
		CommitSHA: sha,
		PagesURL:  uc.host.PagesURL(req.Task),
	}
}

// notify delivers result.Record and sets result.Status accordingly
func (uc *Task) notify(ctx context.Context, req *model.TaskRequest, result *model.RoundResult) {
	delivery, err := uc.notifier.Notify(ctx, req.EvaluationURL, result.Record)
	if err != nil {
		ctxlog.From(ctx).Error("Failed to notify evaluation endpoint", "error", err)
		result.Status = model.RoundStatusPartial
		result.AddWarning(fmt.Sprintf("notification failed: %s", err.Error()))
		return
	}

	result.Delivery = delivery
	result.Status = model.RoundStatusSuccess
}

func (uc *Task) alert(ctx context.Context, req *model.TaskRequest, result *model.RoundResult, cause error) {
	if uc.alerter == nil {
		return
	}
	if err := uc.alerter.Alert(ctx, req, result, cause); err != nil {
		ctxlog.From(ctx).Warn("Failed to send alert", "error", err)
	}
}
