package config

import (
	"github.com/m-mizutani/pagecraft/pkg/domain/interfaces"
	"github.com/m-mizutani/pagecraft/pkg/infra/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds alert configuration
type Slack struct {
	WebhookURL string `masq:"secret"`
}

// Flags returns CLI flags for Slack configuration
func (c *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook URL for partial and failed rounds",
			Destination: &c.WebhookURL,
			Sources:     cli.EnvVars("PAGECRAFT_SLACK_WEBHOOK_URL"),
		},
	}
}

// NewAlerter returns a Slack alerter, or nil when no webhook is configured
func (c *Slack) NewAlerter() interfaces.Alerter {
	if c.WebhookURL == "" {
		return nil
	}
	return slack.NewAlerter(c.WebhookURL)
}
