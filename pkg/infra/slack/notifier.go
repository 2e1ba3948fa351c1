package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shipyard/pkg/domain/interfaces"
	"github.com/m-mizutani/shipyard/pkg/domain/model"
	"github.com/slack-go/slack"
)

// Notifier posts a release summary to a Slack channel
type Notifier struct {
	client  *slack.Client
	channel string
}

var _ interfaces.Notifier = (*Notifier)(nil)

type config struct {
	apiURL string
}

// Option is a functional option for Notifier
type Option func(*config)

// WithAPIURL overrides the Slack API endpoint. It must end with a slash.
func WithAPIURL(url string) Option {
	return func(c *config) {
		c.apiURL = url
	}
}

// New creates a Notifier with a bot token
func New(token, channel string, opts ...Option) (*Notifier, error) {
	if token == "" {
		return nil, goerr.New("Slack token is empty")
	}
	if channel == "" {
		return nil, goerr.New("Slack channel is empty")
	}

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	var clientOpts []slack.Option
	if cfg.apiURL != "" {
		clientOpts = append(clientOpts, slack.OptionAPIURL(cfg.apiURL))
	}

	return &Notifier{
		client:  slack.New(token, clientOpts...),
		channel: channel,
	}, nil
}

// NotifyRelease posts the release summary
func (n *Notifier) NotifyRelease(ctx context.Context, result *model.PipelineResult) error {
	text := FormatRelease(result)

	channel, ts, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return goerr.Wrap(err, "failed to post Slack message", goerr.V("channel", n.channel))
	}

	ctxlog.From(ctx).Debug("Posted release notification",
		"channel", channel,
		"ts", ts,
	)
	return nil
}

// FormatRelease renders the message body for a published release
func FormatRelease(result *model.PipelineResult) string {
	var b strings.Builder

	tag := string(result.Version)
	if result.Release != nil {
		tag = result.Release.TagName
	}

	title := fmt.Sprintf("Published %s to %s", tag, result.Repo.String())
	if result.Platform != "" {
		title += fmt.Sprintf(" (%s)", result.Platform)
	}
	if result.Release != nil && result.Release.HTMLURL != "" {
		title = fmt.Sprintf("<%s|%s>", result.Release.HTMLURL, title)
	}
	b.WriteString(":package: " + title)

	if result.Publish != nil {
		for _, name := range result.Publish.Uploaded {
			b.WriteString("\n• " + name)
		}
	}

	return b.String()
}
