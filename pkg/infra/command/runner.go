package command

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	"github.com/m-mizutani/goerr/v2"
)

// Runner starts build commands as child processes
type Runner struct {
	stdout io.Writer
	stderr io.Writer
	env    []string
}

// Option is a functional option for Runner
type Option func(*Runner)

// WithStdout sets where child stdout goes
func WithStdout(w io.Writer) Option {
	return func(r *Runner) {
		r.stdout = w
	}
}

// WithStderr sets where child stderr goes
func WithStderr(w io.Writer) Option {
	return func(r *Runner) {
		r.stderr = w
	}
}

// WithEnv appends KEY=VALUE pairs to the inherited environment
func WithEnv(env ...string) Option {
	return func(r *Runner) {
		r.env = append(r.env, env...)
	}
}

// New creates a Runner that streams child output to the parent's stdout and stderr
func New(opts ...Option) *Runner {
	r := &Runner{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes command in dir and waits for it. The command is not passed
// through a shell.
func (r *Runner) Run(ctx context.Context, dir string, command []string) (int, error) {
	if len(command) == 0 {
		return -1, goerr.New("empty command")
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, goerr.Wrap(err, "failed to start command",
			goerr.V("command", command),
			goerr.V("dir", dir),
		)
	}

	return 0, nil
}
