package model

import (
	"net/url"
	"regexp"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/pagecraft/pkg/domain/types"
)

// Round identifies which cycle of a task is requested
type Round int

const (
	RoundCreate Round = 1
	RoundUpdate Round = 2
)

// IsValid reports whether the round is one the service knows how to run
func (r Round) IsValid() bool {
	return r == RoundCreate || r == RoundUpdate
}

// Attachment is a named resource the generated page may embed
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TaskRequest is the inbound request body of /handle_task
type TaskRequest struct {
	Email         string       `json:"email"`
	Secret        string       `json:"secret" masq:"secret"`
	Task          string       `json:"task"`
	Round         Round        `json:"round"`
	Nonce         string       `json:"nonce"`
	Brief         string       `json:"brief"`
	Checks        []string     `json:"checks"`
	EvaluationURL string       `json:"evaluation_url"`
	Attachments   []Attachment `json:"attachments,omitempty"`
}

// GitHub repository names: ASCII letters, digits, '.', '-' and '_'
var repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)

// IsValidRepoName reports whether name can be used as a repository name
func IsValidRepoName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return repoNamePattern.MatchString(name)
}

// Validate checks that the request carries everything a round needs.
// The secret is checked separately before this is called.
func (x *TaskRequest) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"task", x.Task},
		{"email", x.Email},
		{"nonce", x.Nonce},
		{"brief", x.Brief},
		{"evaluation_url", x.EvaluationURL},
	}
	for _, r := range required {
		if r.value == "" {
			return goerr.New("required field is missing",
				goerr.V("field", r.name),
				goerr.T(types.ErrTagValidation))
		}
	}
	if x.Checks == nil {
		return goerr.New("required field is missing",
			goerr.V("field", "checks"),
			goerr.T(types.ErrTagValidation))
	}

	if !x.Round.IsValid() {
		return goerr.New("Invalid round",
			goerr.V("round", int(x.Round)),
			goerr.T(types.ErrTagValidation))
	}

	if !IsValidRepoName(x.Task) {
		return goerr.New("task is not a valid repository name",
			goerr.V("task", x.Task),
			goerr.T(types.ErrTagValidation))
	}

	u, err := url.Parse(x.EvaluationURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return goerr.New("evaluation_url must be an absolute http(s) URL",
			goerr.V("evaluation_url", x.EvaluationURL),
			goerr.T(types.ErrTagValidation))
	}

	return nil
}
