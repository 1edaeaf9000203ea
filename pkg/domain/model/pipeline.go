package model

import "time"

// Pages build types accepted by the GitHub Pages API
const (
	PagesBuildLegacy   = "legacy"
	PagesBuildWorkflow = "workflow"
)

// Pipeline holds the tunables of a round. Zero durations disable the
// corresponding pause.
type Pipeline struct {
	Branch           string
	PagesBuildType   string
	RepoReadyWait    time.Duration
	CommitSettleWait time.Duration
	WriteInterval    time.Duration

	NotifyMaxAttempts int
	NotifyTimeout     time.Duration
	NotifyBaseDelay   time.Duration
}

// DefaultPipeline returns the settings used when no pipeline file is given
func DefaultPipeline() Pipeline {
	return Pipeline{
		Branch:            "main",
		PagesBuildType:    PagesBuildLegacy,
		RepoReadyWait:     2 * time.Second,
		CommitSettleWait:  2 * time.Second,
		NotifyMaxAttempts: 5,
		NotifyTimeout:     30 * time.Second,
		NotifyBaseDelay:   time.Second,
	}
}
