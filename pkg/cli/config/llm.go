package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/claude"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/urfave/cli/v3"
)

// LLM providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

const defaultGeminiModel = "gemini-2.5-flash"

// LLM holds the configuration of the page generation model
type LLM struct {
	Provider string
	Model    string
	APIKey   string `masq:"secret"`

	GeminiProjectID string
	GeminiLocation  string
}

// Flags returns CLI flags for LLM configuration
func (c *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Usage:       "LLM provider (gemini, openai, claude)",
			Value:       ProviderGemini,
			Destination: &c.Provider,
			Sources:     cli.EnvVars("PAGECRAFT_LLM_PROVIDER"),
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Usage:       "Model name; the provider default is used when empty",
			Destination: &c.Model,
			Sources:     cli.EnvVars("PAGECRAFT_LLM_MODEL"),
		},
		&cli.StringFlag{
			Name:        "llm-api-key",
			Usage:       "API key for openai and claude",
			Destination: &c.APIKey,
			Sources:     cli.EnvVars("PAGECRAFT_LLM_API_KEY"),
		},
		&cli.StringFlag{
			Name:        "gemini-project-id",
			Usage:       "Google Cloud Project ID for Gemini",
			Destination: &c.GeminiProjectID,
			Sources:     cli.EnvVars("PAGECRAFT_GEMINI_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Vertex AI location/region",
			Value:       "us-central1",
			Destination: &c.GeminiLocation,
			Sources:     cli.EnvVars("PAGECRAFT_GEMINI_LOCATION"),
		},
	}
}

// Validate checks that the selected provider has what it needs
func (c *LLM) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if c.GeminiProjectID == "" {
			return goerr.New("--gemini-project-id is required for gemini")
		}
	case ProviderOpenAI, ProviderClaude:
		if c.APIKey == "" {
			return goerr.New("--llm-api-key is required", goerr.V("provider", c.Provider))
		}
	default:
		return goerr.New("unknown LLM provider", goerr.V("provider", c.Provider))
	}
	return nil
}

// NewClient creates the LLM client of the selected provider
func (c *LLM) NewClient(ctx context.Context) (gollem.LLMClient, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	switch c.Provider {
	case ProviderOpenAI:
		var opts []openai.Option
		if c.Model != "" {
			opts = append(opts, openai.WithModel(c.Model))
		}
		client, err := openai.New(ctx, c.APIKey, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create OpenAI client")
		}
		return client, nil

	case ProviderClaude:
		var opts []claude.Option
		if c.Model != "" {
			opts = append(opts, claude.WithModel(c.Model))
		}
		client, err := claude.New(ctx, c.APIKey, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Claude client")
		}
		return client, nil

	default:
		model := c.Model
		if model == "" {
			model = defaultGeminiModel
		}
		client, err := gemini.New(ctx, c.GeminiProjectID, c.GeminiLocation, gemini.WithModel(model))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create Gemini client",
				goerr.V("project_id", c.GeminiProjectID),
				goerr.V("location", c.GeminiLocation))
		}
		return client, nil
	}
}
