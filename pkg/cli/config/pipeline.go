package config

import (
	"bytes"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/pagecraft/pkg/domain/model"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

const maxNotifyAttempts = 20

// Pipeline points to the optional TOML file tuning round execution
type Pipeline struct {
	Path string
}

// Flags returns CLI flags for pipeline configuration
func (c *Pipeline) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "pipeline-config",
			Usage:       "Path to a TOML file overriding round timings and GitHub Pages settings",
			Destination: &c.Path,
			Sources:     cli.EnvVars("PAGECRAFT_PIPELINE_CONFIG"),
		},
	}
}

type pipelineFile struct {
	Branch           string `toml:"branch"`
	PagesBuildType   string `toml:"pages_build_type"`
	RepoReadyWait    string `toml:"repo_ready_wait"`
	CommitSettleWait string `toml:"commit_settle_wait"`
	WriteInterval    string `toml:"write_interval"`

	Notify struct {
		MaxAttempts int    `toml:"max_attempts"`
		Timeout     string `toml:"timeout"`
		BaseDelay   string `toml:"base_delay"`
	} `toml:"notify"`
}

// Load returns the default pipeline, overridden by the file when a path is set
func (c *Pipeline) Load() (model.Pipeline, error) {
	if c.Path == "" {
		return model.DefaultPipeline(), nil
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		return model.Pipeline{}, goerr.Wrap(err, "failed to read pipeline config", goerr.V("path", c.Path))
	}

	p, err := ParsePipeline(data)
	if err != nil {
		return model.Pipeline{}, goerr.Wrap(err, "invalid pipeline config", goerr.V("path", c.Path))
	}
	return p, nil
}

// ParsePipeline applies TOML data on top of model.DefaultPipeline. Keys
// that are not set keep their default.
func ParsePipeline(data []byte) (model.Pipeline, error) {
	p := model.DefaultPipeline()

	var file pipelineFile
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&file); err != nil {
		return p, goerr.Wrap(err, "failed to decode TOML")
	}

	if file.Branch != "" {
		p.Branch = file.Branch
	}
	if file.PagesBuildType != "" {
		p.PagesBuildType = file.PagesBuildType
	}
	if file.Notify.MaxAttempts != 0 {
		p.NotifyMaxAttempts = file.Notify.MaxAttempts
	}

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"repo_ready_wait", file.RepoReadyWait, &p.RepoReadyWait},
		{"commit_settle_wait", file.CommitSettleWait, &p.CommitSettleWait},
		{"write_interval", file.WriteInterval, &p.WriteInterval},
		{"notify.timeout", file.Notify.Timeout, &p.NotifyTimeout},
		{"notify.base_delay", file.Notify.BaseDelay, &p.NotifyBaseDelay},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return p, goerr.Wrap(err, "invalid duration", goerr.V("key", d.key), goerr.V("value", d.value))
		}
		if v < 0 {
			return p, goerr.New("duration must not be negative", goerr.V("key", d.key), goerr.V("value", d.value))
		}
		*d.dst = v
	}

	if p.PagesBuildType != model.PagesBuildLegacy && p.PagesBuildType != model.PagesBuildWorkflow {
		return p, goerr.New("pages_build_type must be legacy or workflow", goerr.V("value", p.PagesBuildType))
	}
	if p.NotifyMaxAttempts < 1 || p.NotifyMaxAttempts > maxNotifyAttempts {
		return p, goerr.New("notify.max_attempts is out of range",
			goerr.V("value", p.NotifyMaxAttempts),
			goerr.V("max", maxNotifyAttempts))
	}
	if p.NotifyTimeout == 0 {
		return p, goerr.New("notify.timeout must be positive")
	}

	return p, nil
}
