package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/pagecraft/pkg/domain/model"
	"github.com/m-mizutani/pagecraft/pkg/domain/types"
)

// Client talks to the GitHub REST API on behalf of a single account
type Client struct {
	owner        string
	appAuth      bool
	githubClient *github.Client
}

type options struct {
	token          string
	appID          int64
	installationID int64
	privateKey     []byte
	baseURL        string
	httpClient     *http.Client
}

// Option configures Client
type Option func(*options)

// WithToken authenticates with a personal access token
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithApp authenticates as a GitHub App installation
func WithApp(appID, installationID int64, privateKey []byte) Option {
	return func(o *options) {
		o.appID = appID
		o.installationID = installationID
		o.privateKey = privateKey
	}
}

// WithBaseURL points the client at another API root, e.g. a test server
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// NewClient creates a GitHub client for owner. App credentials take
// precedence over a token when both are given.
func NewClient(owner string, opts ...Option) (*Client, error) {
	if owner == "" {
		return nil, goerr.New("GitHub owner is required")
	}

	cfg := &options{}
	for _, opt := range opts {
		opt(cfg)
	}

	var githubClient *github.Client
	switch {
	case cfg.appID != 0:
		base := http.DefaultTransport
		if cfg.httpClient != nil && cfg.httpClient.Transport != nil {
			base = cfg.httpClient.Transport
		}
		itr, err := ghinstallation.New(base, cfg.appID, cfg.installationID, cfg.privateKey)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create GitHub App transport",
				goerr.V("app_id", cfg.appID),
				goerr.V("installation_id", cfg.installationID))
		}
		githubClient = github.NewClient(&http.Client{Transport: itr})

	case cfg.token != "":
		githubClient = github.NewClient(cfg.httpClient).WithAuthToken(cfg.token)

	default:
		return nil, goerr.New("either a token or GitHub App credentials are required")
	}

	if cfg.baseURL != "" {
		u, err := url.Parse(cfg.baseURL)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid GitHub base URL", goerr.V("base_url", cfg.baseURL))
		}
		if u.Path == "" || u.Path[len(u.Path)-1] != '/' {
			u.Path += "/"
		}
		githubClient.BaseURL = u
	}

	return &Client{
		owner:        owner,
		appAuth:      cfg.appID != 0,
		githubClient: githubClient,
	}, nil
}

// RepoURL returns the web URL of repo
func (c *Client) RepoURL(repo string) string {
	return fmt.Sprintf("https://github.com/%s/%s", c.owner, repo)
}

// PagesURL returns the GitHub Pages URL of repo
func (c *Client) PagesURL(repo string) string {
	return fmt.Sprintf("https://%s.github.io/%s/", c.owner, repo)
}

func statusOf(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

func hostError(err error, msg string, resp *github.Response, values ...goerr.Option) error {
	opts := append([]goerr.Option{
		goerr.V("status", statusOf(resp)),
		goerr.T(types.ErrTagHost),
	}, values...)
	if err == nil {
		return goerr.New(msg, opts...)
	}
	return goerr.Wrap(err, msg, opts...)
}

// createTarget returns the organization argument for repository creation.
// An empty string creates the repository under the authenticated user.
// Installation tokens have no user, so App auth always targets owner.
func (c *Client) createTarget(ctx context.Context) (string, error) {
	if c.appAuth {
		return c.owner, nil
	}

	user, resp, err := c.githubClient.Users.Get(ctx, "")
	if err != nil {
		return "", hostError(err, "failed to get authenticated user", resp, goerr.V("owner", c.owner))
	}
	if strings.EqualFold(user.GetLogin(), c.owner) {
		return "", nil
	}
	return c.owner, nil
}

// CreateRepository creates a public repository with an initial commit and
// an MIT license
func (c *Client) CreateRepository(ctx context.Context, name string) (*model.Repository, error) {
	logger := ctxlog.From(ctx)

	org, err := c.createTarget(ctx)
	if err != nil {
		return nil, err
	}

	repo, resp, err := c.githubClient.Repositories.Create(ctx, org, &github.Repository{
		Name:            github.Ptr(name),
		Private:         github.Ptr(false),
		AutoInit:        github.Ptr(true),
		LicenseTemplate: github.Ptr("mit"),
	})
	if err != nil {
		return nil, hostError(err, "failed to create repository", resp, goerr.V("repo", name))
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, hostError(nil, "unexpected status on repository creation", resp, goerr.V("repo", name))
	}

	logger.Info("Created repository", "repo", name, "url", repo.GetHTMLURL())

	htmlURL := repo.GetHTMLURL()
	if htmlURL == "" {
		htmlURL = c.RepoURL(name)
	}

	return &model.Repository{
		Owner:   c.owner,
		Name:    name,
		HTMLURL: htmlURL,
	}, nil
}

// ProbeFile returns the blob SHA of path on branch, or "" if it does not exist
func (c *Client) ProbeFile(ctx context.Context, repo, path, branch string) (string, error) {
	fileContent, _, resp, err := c.githubClient.Repositories.GetContents(ctx, c.owner, repo, path,
		&github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		if statusOf(resp) == http.StatusNotFound {
			return "", nil
		}
		return "", hostError(err, "failed to probe file", resp,
			goerr.V("repo", repo),
			goerr.V("path", path))
	}

	if fileContent == nil {
		return "", hostError(nil, "path is a directory", resp,
			goerr.V("repo", repo),
			goerr.V("path", path))
	}

	return fileContent.GetSHA(), nil
}

// WriteFile creates or updates path. A non-empty priorSHA turns the call
// into a conditional update of exactly that revision.
func (c *Client) WriteFile(ctx context.Context, repo, path string, content []byte, message, branch, priorSHA string) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: content,
		Branch:  github.Ptr(branch),
	}

	var (
		resp *github.Response
		err  error
	)
	if priorSHA != "" {
		opts.SHA = github.Ptr(priorSHA)
		_, resp, err = c.githubClient.Repositories.UpdateFile(ctx, c.owner, repo, path, opts)
	} else {
		_, resp, err = c.githubClient.Repositories.CreateFile(ctx, c.owner, repo, path, opts)
	}

	if err != nil {
		return hostError(err, "failed to write file", resp,
			goerr.V("repo", repo),
			goerr.V("path", path),
			goerr.V("prior_sha", priorSHA))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return hostError(nil, "unexpected status on file write", resp,
			goerr.V("repo", repo),
			goerr.V("path", path))
	}

	return nil
}

// LatestCommit returns the SHA of the head commit of branch
func (c *Client) LatestCommit(ctx context.Context, repo, branch string) (string, error) {
	commit, resp, err := c.githubClient.Repositories.GetCommit(ctx, c.owner, repo, branch, nil)
	if err != nil {
		return "", hostError(err, "failed to get latest commit", resp,
			goerr.V("repo", repo),
			goerr.V("branch", branch))
	}

	sha := commit.GetSHA()
	if sha == "" {
		return "", hostError(nil, "latest commit has no SHA", resp,
			goerr.V("repo", repo),
			goerr.V("branch", branch))
	}

	return sha, nil
}

// ConfigurePages enables GitHub Pages for repo. If Pages is already enabled
// the configuration is updated instead. Other API errors are logged and
// ignored because the site is not required for the round to complete; only
// transport failures are returned.
func (c *Client) ConfigurePages(ctx context.Context, repo, branch, buildType string) error {
	logger := ctxlog.From(ctx)

	source := &github.PagesSource{
		Branch: github.Ptr(branch),
		Path:   github.Ptr("/"),
	}

	_, resp, err := c.githubClient.Repositories.EnablePages(ctx, c.owner, repo, &github.Pages{
		BuildType: github.Ptr(buildType),
		Source:    source,
	})
	if err == nil {
		logger.Info("Enabled GitHub Pages", "repo", repo, "build_type", buildType)
		return nil
	}

	switch status := statusOf(resp); {
	case status == 0:
		return hostError(err, "failed to enable GitHub Pages", resp, goerr.V("repo", repo))

	case status == http.StatusConflict:
		logger.Info("GitHub Pages already enabled, updating configuration", "repo", repo)
		resp, err = c.githubClient.Repositories.UpdatePages(ctx, c.owner, repo, &github.PagesUpdate{
			BuildType: github.Ptr(buildType),
			Source:    source,
		})
		if err != nil {
			if statusOf(resp) == 0 {
				return hostError(err, "failed to update GitHub Pages", resp, goerr.V("repo", repo))
			}
			logger.Warn("Failed to update GitHub Pages",
				"repo", repo,
				"status", statusOf(resp),
				"error", err,
			)
		}
		return nil

	default:
		logger.Warn("Failed to enable GitHub Pages",
			"repo", repo,
			"status", status,
			"error", err,
		)
		return nil
	}
}
