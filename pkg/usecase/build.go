package usecase

import (
	"context"
	"path/filepath"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shipyard/pkg/domain/interfaces"
	"github.com/m-mizutani/shipyard/pkg/domain/model"
	"github.com/m-mizutani/shipyard/pkg/domain/types"
)

// BuildDriver runs build steps as external processes, in order
type BuildDriver struct {
	runner interfaces.CommandRunner
}

// NewBuildDriver creates a new BuildDriver
func NewBuildDriver(runner interfaces.CommandRunner) *BuildDriver {
	return &BuildDriver{runner: runner}
}

// Run executes steps sequentially. The first step that fails to start or exits
// non-zero stops the pipeline with a BuildStepFailedError.
func (d *BuildDriver) Run(ctx context.Context, workDir string, steps []model.BuildStep) error {
	logger := ctxlog.From(ctx)

	for i, step := range steps {
		if len(step.Command) == 0 {
			return goerr.New("build step has no command", goerr.V("step", step.String()))
		}

		dir := workDir
		if step.Dir != "" {
			dir = step.Dir
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(workDir, dir)
			}
		}

		logger.Info("Running build step",
			"step", step.String(),
			"index", i+1,
			"total", len(steps),
			"dir", dir,
		)

		start := time.Now()
		exitCode, err := d.runner.Run(ctx, dir, step.Command)
		if err != nil {
			return goerr.Wrap(&types.BuildStepFailedError{Step: step.String(), ExitCode: -1, Err: err},
				"failed to start build step",
				goerr.V("dir", dir),
				goerr.V("command", step.Command),
			)
		}
		if exitCode != 0 {
			logger.Error("Build step failed",
				"step", step.String(),
				"exit_code", exitCode,
			)
			return goerr.Wrap(&types.BuildStepFailedError{Step: step.String(), ExitCode: exitCode},
				"build step exited with non-zero status",
				goerr.V("dir", dir),
				goerr.V("command", step.Command),
			)
		}

		logger.Info("Build step completed",
			"step", step.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	return nil
}
