package interfaces

//go:generate moq -out mocks/usecase_mock.go -pkg mocks . TaskUseCase

import (
	"context"

	"github.com/m-mizutani/pagecraft/pkg/domain/model"
)

// TaskUseCase runs one round of a task
type TaskUseCase interface {
	// Run executes the round named by req.Round and reports its outcome
	Run(ctx context.Context, req *model.TaskRequest) (*model.RoundResult, error)
}

// Generator produces the page artifacts for a task with an LLM
type Generator interface {
	Generate(ctx context.Context, req *model.TaskRequest) ([]*model.Artifact, error)
}

// Publisher writes artifacts to a repository
type Publisher interface {
	Publish(ctx context.Context, repo string, artifacts []*model.Artifact, round model.Round) error
}
