package config

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shipyard/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// Sentry holds error reporting configuration
type Sentry struct {
	DSN string `masq:"secret"`
	Env string
}

// Flags returns CLI flags for Sentry configuration
func (c *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN. Errors are reported when set",
			Destination: &c.DSN,
			Sources:     cli.EnvVars("SHIPYARD_SENTRY_DSN"),
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment",
			Value:       "default",
			Destination: &c.Env,
			Sources:     cli.EnvVars("SHIPYARD_SENTRY_ENV"),
		},
	}
}

// Configure initializes the Sentry SDK. It returns false without error when
// no DSN is set.
func (c *Sentry) Configure() (bool, error) {
	if c.DSN == "" {
		return false, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         c.DSN,
		Environment: c.Env,
		Release:     types.Version,
	}); err != nil {
		return false, goerr.Wrap(err, "failed to initialize Sentry", goerr.T(types.ErrTagConfig))
	}
	return true, nil
}

// Report sends err to Sentry and waits for delivery
func (c *Sentry) Report(err error, tags map[string]string) {
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		var gerr *goerr.Error
		if errors.As(err, &gerr) {
			scope.SetContext("error", sentry.Context(gerr.Values()))
		}
	})
	hub.CaptureException(err)
	hub.Flush(2 * time.Second)
}
