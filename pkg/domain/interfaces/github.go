package interfaces

import (
	"context"

	"github.com/m-mizutani/pagecraft/pkg/domain/model"
)

// RepoHost defines the code hosting operations a round needs
type RepoHost interface {
	// CreateRepository creates a public repository owned by the configured account
	CreateRepository(ctx context.Context, name string) (*model.Repository, error)

	// ProbeFile returns the blob SHA of path, or "" if the file does not exist
	ProbeFile(ctx context.Context, repo, path, branch string) (string, error)

	// WriteFile creates path, or updates it when priorSHA is not empty. The
	// update is rejected by the host if priorSHA is stale.
	WriteFile(ctx context.Context, repo, path string, content []byte, message, branch, priorSHA string) error

	// LatestCommit returns the head commit SHA of branch
	LatestCommit(ctx context.Context, repo, branch string) (string, error)

	// ConfigurePages enables static page hosting from branch
	ConfigurePages(ctx context.Context, repo, branch, buildType string) error

	// RepoURL and PagesURL build the public URLs of a repository
	RepoURL(repo string) string
	PagesURL(repo string) string
}
