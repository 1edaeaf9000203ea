package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/pagecraft/pkg/domain/interfaces"
	"github.com/m-mizutani/pagecraft/pkg/domain/model"
	"github.com/m-mizutani/pagecraft/pkg/domain/types"
	"github.com/m-mizutani/pagecraft/pkg/utils/clock"
)

// Publisher writes artifacts into a repository, one commit per file
type Publisher struct {
	host     interfaces.RepoHost
	pipeline model.Pipeline
	sleep    clock.SleepFunc
}

// NewPublisher creates a Publisher writing to pipeline.Branch through host
func NewPublisher(host interfaces.RepoHost, pipeline model.Pipeline) *Publisher {
	return &Publisher{
		host:     host,
		pipeline: pipeline,
		sleep:    clock.Sleep,
	}
}

// Publish creates or updates each artifact in order. The current blob SHA
// of every path is probed first so an existing file is updated
// conditionally instead of overwritten blindly. The first failure stops
// the loop; files already written stay in place.
func (p *Publisher) Publish(ctx context.Context, repo string, artifacts []*model.Artifact, round model.Round) error {
	logger := ctxlog.From(ctx)

	for i, artifact := range artifacts {
		if i > 0 {
			if err := p.sleep(ctx, p.pipeline.WriteInterval); err != nil {
				return goerr.Wrap(err, "publish interrupted", goerr.T(types.ErrTagPublish))
			}
		}

		content, err := decodeContent(artifact.Content)
		if err != nil {
			return goerr.Wrap(err, "failed to decode artifact content",
				goerr.V("file", artifact.Name),
				goerr.T(types.ErrTagPublish))
		}

		priorSHA, err := p.host.ProbeFile(ctx, repo, artifact.Name, p.pipeline.Branch)
		if err != nil {
			return goerr.Wrap(err, "failed to probe file",
				goerr.V("file", artifact.Name),
				goerr.T(types.ErrTagPublish))
		}

		message := fmt.Sprintf("Add/Update %s (Round %d)", artifact.Name, round)
		if err := p.host.WriteFile(ctx, repo, artifact.Name, content, message, p.pipeline.Branch, priorSHA); err != nil {
			return goerr.Wrap(err, "failed to push file",
				goerr.V("file", artifact.Name),
				goerr.V("prior_sha", priorSHA),
				goerr.T(types.ErrTagPublish))
		}

		logger.Info("Pushed file",
			"repo", repo,
			"file", artifact.Name,
			"updated", priorSHA != "",
			"size", len(content),
		)
	}

	return nil
}

// decodeContent returns the raw bytes of an artifact. Text is used as is;
// a data URI is decoded so already encoded payloads are not encoded twice.
func decodeContent(content string) ([]byte, error) {
	if !strings.HasPrefix(content, "data:") {
		return []byte(content), nil
	}

	meta, payload, ok := strings.Cut(strings.TrimPrefix(content, "data:"), ",")
	if !ok {
		return nil, goerr.New("malformed data URI")
	}

	if strings.HasSuffix(meta, ";base64") {
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid base64 payload in data URI")
		}
		return raw, nil
	}

	raw, err := url.PathUnescape(payload)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid escaped payload in data URI")
	}
	return []byte(raw), nil
}
