package config

import (
	"github.com/m-mizutani/shipyard/pkg/infra/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds release notification configuration
type Slack struct {
	Token   string `masq:"secret"`
	Channel string
}

// Flags returns CLI flags for Slack notification
func (c *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-token",
			Usage:       "Slack bot token used to announce releases",
			Destination: &c.Token,
			Sources:     cli.EnvVars("SHIPYARD_SLACK_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Slack channel for release announcements",
			Destination: &c.Channel,
			Sources:     cli.EnvVars("SHIPYARD_SLACK_CHANNEL"),
		},
	}
}

// Enabled reports whether both token and channel are configured
func (c *Slack) Enabled() bool {
	return c.Token != "" && c.Channel != ""
}

// NewNotifier creates the release notifier
func (c *Slack) NewNotifier() (*slack.Notifier, error) {
	return slack.New(c.Token, c.Channel)
}
