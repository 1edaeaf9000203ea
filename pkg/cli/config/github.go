package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/pagecraft/pkg/infra/github"
	"github.com/urfave/cli/v3"
)

// GitHub holds GitHub configuration
type GitHub struct {
	Token          string `masq:"secret"`
	Owner          string
	AppID          int64
	InstallationID int64
	PrivateKey     string `masq:"secret"`
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub personal access token",
			Destination: &c.Token,
			Sources:     cli.EnvVars("PAGECRAFT_GITHUB_TOKEN", "GITHUB_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "github-owner",
			Usage:       "Account that owns the created repositories",
			Required:    true,
			Destination: &c.Owner,
			Sources:     cli.EnvVars("PAGECRAFT_GITHUB_OWNER"),
		},
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID, used instead of a token when set",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("PAGECRAFT_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("PAGECRAFT_GITHUB_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-private-key",
			Usage:       "GitHub App private key (PEM)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("PAGECRAFT_GITHUB_PRIVATE_KEY"),
		},
	}
}

// Validate checks that one complete set of credentials is given
func (c *GitHub) Validate() error {
	if c.AppID != 0 {
		if c.InstallationID == 0 || c.PrivateKey == "" {
			return goerr.New("GitHub App requires installation ID and private key",
				goerr.V("app_id", c.AppID))
		}
		return nil
	}
	if c.Token == "" {
		return goerr.New("either --github-token or GitHub App credentials are required")
	}
	return nil
}

// NewClient creates the GitHub client described by the configuration
func (c *GitHub) NewClient(opts ...github.Option) (*github.Client, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if c.AppID != 0 {
		opts = append(opts, github.WithApp(c.AppID, c.InstallationID, []byte(c.PrivateKey)))
	} else {
		opts = append(opts, github.WithToken(c.Token))
	}

	return github.NewClient(c.Owner, opts...)
}
