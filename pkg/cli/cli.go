package cli

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/shipyard/pkg/cli/config"
	"github.com/m-mizutani/shipyard/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	var (
		loggerCfg config.Logger
		sentryCfg config.Sentry
		logger    *slog.Logger
		reporting bool
	)
	runID := uuid.NewString()

	app := &cli.Command{
		Name:    "shipyard",
		Usage:   "Build a product from GitHub sources and publish it as a release",
		Version: types.Version,
		Flags:   append(loggerCfg.Flags(), sentryCfg.Flags()...),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}
			logger = logger.With("run_id", runID)

			reporting, err = sentryCfg.Configure()
			if err != nil {
				return nil, err
			}

			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdRun(),
			cmdFetch(),
			cmdPublish(),
			cmdPlatforms(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed", slog.Any("error", err))
		if reporting {
			sentryCfg.Report(err, map[string]string{"run_id": runID})
		}
		return err
	}

	return nil
}
