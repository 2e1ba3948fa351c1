package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shipyard/pkg/cli/config"
	"github.com/m-mizutani/shipyard/pkg/domain/interfaces"
	"github.com/m-mizutani/shipyard/pkg/domain/model"
	"github.com/m-mizutani/shipyard/pkg/infra/command"
	"github.com/m-mizutani/shipyard/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// pipelineConfig bundles the configuration shared by pipeline commands
type pipelineConfig struct {
	github   config.GitHub
	pipeline config.Pipeline
	storage  config.Storage
	slack    config.Slack
}

func (c *pipelineConfig) flags(withOutputs bool) []cli.Flag {
	flags := append(c.github.Flags(), c.pipeline.Flags()...)
	if withOutputs {
		flags = append(flags, c.storage.Flags()...)
		flags = append(flags, c.slack.Flags()...)
	}
	return flags
}

// build loads the pipeline and wires the use case. The returned cleanup
// releases external clients.
func (c *pipelineConfig) build(ctx context.Context) (*model.PipelineSpec, interfaces.PipelineUseCase, func(), error) {
	logger := ctxlog.From(ctx)
	cleanup := func() {}

	spec, err := c.pipeline.Load()
	if err != nil {
		return nil, nil, cleanup, err
	}

	githubClient, err := c.github.NewClient()
	if err != nil {
		return nil, nil, cleanup, err
	}

	opts := []usecase.PipelineOption{
		usecase.WithRateLimit(c.pipeline.RateLimit()),
		usecase.WithBlobConcurrency(c.pipeline.Concurrency),
	}

	if c.storage.Enabled() {
		mirror, err := c.storage.NewMirror(ctx)
		if err != nil {
			return nil, nil, cleanup, err
		}
		cleanup = func() {
			if err := mirror.Close(); err != nil {
				logger.Warn("Failed to close storage client", "error", err)
			}
		}
		opts = append(opts, usecase.WithMirror(mirror))
	}

	if c.slack.Enabled() {
		notifier, err := c.slack.NewNotifier()
		if err != nil {
			return nil, nil, cleanup, err
		}
		opts = append(opts, usecase.WithNotifier(notifier))
	}

	logger.Info("Pipeline loaded",
		"platform", spec.Platform.Name,
		"workdir", spec.WorkDir,
		"sources", len(spec.Sources),
		"release", spec.Release.RepoRef().String(),
	)

	return spec, usecase.NewPipeline(githubClient, command.New(), opts...), cleanup, nil
}

func cmdRun() *cli.Command {
	var cfg pipelineConfig

	return &cli.Command{
		Name:  "run",
		Usage: "Download sources, build, and publish the release",
		Flags: cfg.flags(true),
		Action: func(ctx context.Context, c *cli.Command) error {
			spec, uc, cleanup, err := cfg.build(ctx)
			defer cleanup()
			if err != nil {
				return err
			}

			result, err := uc.Run(ctx, spec)
			if err != nil {
				return goerr.Wrap(err, "pipeline failed", goerr.V("platform", spec.Platform.Name))
			}

			printStats(c.Root().Writer, &result.Materialize)
			printResult(c.Root().Writer, result)
			return nil
		},
	}
}

func cmdFetch() *cli.Command {
	var cfg pipelineConfig

	return &cli.Command{
		Name:  "fetch",
		Usage: "Download sources into the workdir without building",
		Flags: cfg.flags(false),
		Action: func(ctx context.Context, c *cli.Command) error {
			spec, uc, cleanup, err := cfg.build(ctx)
			defer cleanup()
			if err != nil {
				return err
			}

			stats, err := uc.Fetch(ctx, spec)
			if err != nil {
				return err
			}

			printStats(c.Root().Writer, stats)
			return nil
		},
	}
}

func cmdPublish() *cli.Command {
	var cfg pipelineConfig

	return &cli.Command{
		Name:  "publish",
		Usage: "Publish an existing build output as a release",
		Flags: cfg.flags(true),
		Action: func(ctx context.Context, c *cli.Command) error {
			spec, uc, cleanup, err := cfg.build(ctx)
			defer cleanup()
			if err != nil {
				return err
			}

			result, err := uc.Publish(ctx, spec)
			if err != nil {
				return err
			}

			printResult(c.Root().Writer, result)
			return nil
		},
	}
}

func cmdPlatforms() *cli.Command {
	var cfg config.Pipeline

	return &cli.Command{
		Name:  "platforms",
		Usage: "List platform profiles of the pipeline",
		Flags: cfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			names, err := cfg.PlatformNames()
			if err != nil {
				return err
			}

			w := c.Root().Writer
			for _, name := range names {
				platformCfg := cfg
				platformCfg.Platform = name
				spec, err := platformCfg.Load()
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%d steps\t%s\n",
					color.New(color.Bold).Sprint(name),
					len(spec.Platform.Steps),
					spec.Platform.ArtifactDir,
				)
			}
			return nil
		},
	}
}

func printStats(w io.Writer, stats *model.MaterializeStats) {
	fmt.Fprintf(w, "%s %d trees, %d files (%d bytes), %d skipped\n",
		color.CyanString("Downloaded"),
		stats.Trees,
		stats.Blobs,
		stats.Bytes,
		stats.Skipped,
	)
}

func printResult(w io.Writer, result *model.PipelineResult) {
	fmt.Fprintf(w, "%s %s to %s (release %d)\n",
		color.New(color.FgGreen, color.Bold).Sprint("Published"),
		result.Publish.TagName,
		result.Repo.String(),
		result.Release.ID,
	)
	if result.Release.HTMLURL != "" {
		fmt.Fprintf(w, "  %s\n", result.Release.HTMLURL)
	}
	if len(result.Publish.Uploaded) > 0 {
		fmt.Fprintf(w, "  %s\n", strings.Join(result.Publish.Uploaded, "\n  "))
	}
}
