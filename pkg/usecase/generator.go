package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/pagecraft/pkg/domain/model"
	"github.com/m-mizutani/pagecraft/pkg/domain/types"
)

//go:embed prompts/page_system.md
var pageSystemPrompt string

//go:embed prompts/page_user.md
var pageUserPromptTemplate string

// attachment URLs are often long data URIs; only a prefix is useful as a hint
const maxAttachmentURLLength = 100

const codeFence = "```"

// Generator writes the page and README of a task with an LLM
type Generator struct {
	llmClient    gollem.LLMClient
	userTemplate *template.Template
}

// NewGenerator creates a Generator backed by llmClient
func NewGenerator(llmClient gollem.LLMClient) (*Generator, error) {
	tmpl, err := template.New("page_user").Parse(pageUserPromptTemplate)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse user prompt template")
	}

	return &Generator{
		llmClient:    llmClient,
		userTemplate: tmpl,
	}, nil
}

type promptAttachment struct {
	Name string
	URL  string
}

// Generate asks the LLM for the page and README and extracts them from the
// fenced blocks of the answer. A missing block is skipped, so the result may
// hold zero, one or two artifacts.
func (g *Generator) Generate(ctx context.Context, req *model.TaskRequest) ([]*model.Artifact, error) {
	logger := ctxlog.From(ctx)

	prompt, err := g.buildPrompt(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build prompt", goerr.T(types.ErrTagGeneration))
	}

	logger.Debug("Calling LLM for page generation", "prompt_length", len(prompt))

	session, err := g.llmClient.NewSession(ctx,
		gollem.WithSessionSystemPrompt(pageSystemPrompt),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session", goerr.T(types.ErrTagGeneration))
	}

	resp, err := session.Generate(ctx, []gollem.Input{gollem.Text(prompt)})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate LLM content", goerr.T(types.ErrTagGeneration))
	}
	if resp == nil || len(resp.Texts) == 0 {
		return nil, goerr.New("no response from LLM", goerr.T(types.ErrTagGeneration))
	}

	artifacts := ParseArtifacts(strings.Join(resp.Texts, ""))

	names := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		names = append(names, a.Name)
	}
	logger.Info("Generated artifacts", "task", req.Task, "artifacts", names)

	return artifacts, nil
}

func (g *Generator) buildPrompt(req *model.TaskRequest) (string, error) {
	attachments := make([]promptAttachment, 0, len(req.Attachments))
	for _, att := range req.Attachments {
		u := att.URL
		if len(u) > maxAttachmentURLLength {
			u = u[:maxAttachmentURLLength] + "..."
		}
		attachments = append(attachments, promptAttachment{Name: att.Name, URL: u})
	}

	var buf bytes.Buffer
	if err := g.userTemplate.Execute(&buf, map[string]any{
		"Task":        req.Task,
		"Brief":       req.Brief,
		"Checks":      req.Checks,
		"Attachments": attachments,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute user prompt template")
	}

	return buf.String(), nil
}

// ParseArtifacts extracts index.html from the first ```html block and
// README.md from the first ```markdown block (or ```md when there is none).
func ParseArtifacts(text string) []*model.Artifact {
	var artifacts []*model.Artifact

	if content, ok := extractBlock(text, codeFence+"html"); ok {
		artifacts = append(artifacts, &model.Artifact{Name: model.ArtifactPage, Content: content})
	}

	content, ok := extractBlock(text, codeFence+"markdown")
	if !ok {
		content, ok = extractBlock(text, codeFence+"md")
	}
	if ok {
		artifacts = append(artifacts, &model.Artifact{Name: model.ArtifactDescription, Content: content})
	}

	return artifacts
}

// extractBlock returns the text between opener and the next fence. An
// unterminated block runs to the end of text.
func extractBlock(text, opener string) (string, bool) {
	start := strings.Index(text, opener)
	if start < 0 {
		return "", false
	}
	start += len(opener)

	body := text[start:]
	if end := strings.Index(body, codeFence); end >= 0 {
		body = body[:end]
	}

	return strings.TrimSpace(body), true
}
