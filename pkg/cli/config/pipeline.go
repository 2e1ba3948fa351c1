package config

import (
	"bytes"
	_ "embed"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shipyard/pkg/domain/model"
	"github.com/m-mizutani/shipyard/pkg/domain/types"
	"github.com/m-mizutani/shipyard/pkg/utils/retry"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

//go:embed default.toml
var defaultPipeline []byte

// Pipeline holds pipeline configuration
type Pipeline struct {
	ConfigPath     string
	Platform       string
	WorkDir        string
	StageArtifacts bool
	Concurrency    int
	MaxRetries     int
	TagPrefix      string
	TagBranch      string
}

// pipelineFile is the TOML layout of a pipeline definition
type pipelineFile struct {
	WorkDir   string                    `toml:"workdir"`
	Sources   []model.Source            `toml:"sources"`
	Release   model.ReleaseTarget       `toml:"release"`
	Platforms map[string]model.Platform `toml:"platforms"`
}

// Flags returns CLI flags for pipeline configuration
func (c *Pipeline) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Pipeline definition file (TOML). The built-in browser pipeline is used when omitted",
			Destination: &c.ConfigPath,
			Sources:     cli.EnvVars("SHIPYARD_CONFIG"),
		},
		&cli.StringFlag{
			Name:        "platform",
			Aliases:     []string{"p"},
			Usage:       "Platform profile to build (e.g. windows, linux)",
			Destination: &c.Platform,
			Sources:     cli.EnvVars("SHIPYARD_PLATFORM"),
		},
		&cli.StringFlag{
			Name:        "workdir",
			Usage:       "Directory the primary source is materialized into",
			Destination: &c.WorkDir,
			Sources:     cli.EnvVars("SHIPYARD_WORKDIR"),
		},
		&cli.BoolFlag{
			Name:        "stage-artifacts",
			Usage:       "Copy artifacts into version/<version> under the workdir",
			Value:       true,
			Destination: &c.StageArtifacts,
			Sources:     cli.EnvVars("SHIPYARD_STAGE_ARTIFACTS"),
		},
		&cli.IntFlag{
			Name:        "concurrency",
			Usage:       "Number of sibling blobs fetched in parallel",
			Value:       1,
			Destination: &c.Concurrency,
			Sources:     cli.EnvVars("SHIPYARD_CONCURRENCY"),
		},
		&cli.IntFlag{
			Name:        "max-rate-limit-retries",
			Usage:       "Number of rate limit waits allowed per remote operation",
			Value:       retry.DefaultMaxRetries,
			Destination: &c.MaxRetries,
			Sources:     cli.EnvVars("SHIPYARD_MAX_RATE_LIMIT_RETRIES"),
		},
		&cli.StringFlag{
			Name:        "tag-prefix",
			Usage:       "Prefix prepended to the version to form the release tag (overrides the pipeline file)",
			Destination: &c.TagPrefix,
			Sources:     cli.EnvVars("SHIPYARD_TAG_PREFIX"),
		},
		&cli.StringFlag{
			Name:        "tag-branch",
			Usage:       "Create the release tag at the head of this branch before creating the release (overrides the pipeline file)",
			Destination: &c.TagBranch,
			Sources:     cli.EnvVars("SHIPYARD_TAG_BRANCH"),
		},
	}
}

func (c *Pipeline) readFile() (*pipelineFile, error) {
	data := defaultPipeline
	if c.ConfigPath != "" {
		raw, err := os.ReadFile(c.ConfigPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read pipeline file",
				goerr.T(types.ErrTagConfig),
				goerr.V("path", c.ConfigPath),
			)
		}
		data = raw
	}

	var f pipelineFile
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&f); err != nil {
		return nil, goerr.Wrap(err, "failed to parse pipeline file",
			goerr.T(types.ErrTagConfig),
			goerr.V("path", c.ConfigPath),
		)
	}
	return &f, nil
}

// PlatformNames returns the platform profiles defined in the pipeline file
func (c *Pipeline) PlatformNames() ([]string, error) {
	f, err := c.readFile()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(f.Platforms))
	for name := range f.Platforms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Load reads the pipeline file and resolves it for the selected platform
func (c *Pipeline) Load() (*model.PipelineSpec, error) {
	f, err := c.readFile()
	if err != nil {
		return nil, err
	}

	if c.Platform == "" {
		return nil, goerr.New("platform is required", goerr.T(types.ErrTagConfig))
	}
	platform, ok := f.Platforms[c.Platform]
	if !ok {
		names := make([]string, 0, len(f.Platforms))
		for name := range f.Platforms {
			names = append(names, name)
		}
		slices.Sort(names)
		return nil, goerr.New("unknown platform",
			goerr.T(types.ErrTagConfig),
			goerr.V("platform", c.Platform),
			goerr.V("available", names),
		)
	}
	platform.Name = c.Platform

	release := f.Release
	if c.TagPrefix != "" {
		release.TagPrefix = c.TagPrefix
	}
	if c.TagBranch != "" {
		release.TagBranch = c.TagBranch
	}

	workDir := c.WorkDir
	if workDir == "" {
		workDir = f.WorkDir
	}
	if workDir == "" {
		workDir = "."
	}
	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve workdir", goerr.T(types.ErrTagConfig))
	}

	spec := &model.PipelineSpec{
		WorkDir:        workDir,
		Sources:        f.Sources,
		Release:        release,
		Platform:       platform,
		StageArtifacts: c.StageArtifacts,
	}
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// RateLimit returns the retrier shared by all remote calls of a run
func (c *Pipeline) RateLimit() *retry.RateLimit {
	return retry.NewRateLimit(retry.WithMaxRetries(c.MaxRetries))
}

func validateSpec(spec *model.PipelineSpec) error {
	if len(spec.Sources) == 0 {
		return goerr.New("pipeline has no sources", goerr.T(types.ErrTagConfig))
	}
	for i, src := range spec.Sources {
		if src.Owner == "" || src.Repo == "" || src.Branch == "" {
			return goerr.New("source requires owner, repo and branch",
				goerr.T(types.ErrTagConfig),
				goerr.V("index", i),
				goerr.V("name", src.Name),
			)
		}
		if !isRelativePath(src.Path) {
			return goerr.New("source path must be relative to the workdir",
				goerr.T(types.ErrTagConfig),
				goerr.V("name", src.Name),
				goerr.V("path", src.Path),
			)
		}
	}

	if spec.Release.Owner == "" || spec.Release.Repo == "" {
		return goerr.New("release requires owner and repo", goerr.T(types.ErrTagConfig))
	}

	if spec.Platform.MetadataFile == "" || spec.Platform.ArtifactDir == "" {
		return goerr.New("platform requires metadata_file and artifact_dir",
			goerr.T(types.ErrTagConfig),
			goerr.V("platform", spec.Platform.Name),
		)
	}
	for _, step := range spec.Platform.Steps {
		if len(step.Command) == 0 {
			return goerr.New("build step has no command",
				goerr.T(types.ErrTagConfig),
				goerr.V("step", step.Name),
			)
		}
		if !isRelativePath(step.Dir) {
			return goerr.New("build step dir must be relative to the workdir",
				goerr.T(types.ErrTagConfig),
				goerr.V("step", step.String()),
				goerr.V("dir", step.Dir),
			)
		}
	}
	for _, ext := range spec.Platform.ExcludedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return goerr.New("excluded extension must start with a dot",
				goerr.T(types.ErrTagConfig),
				goerr.V("extension", ext),
			)
		}
	}

	return nil
}

// isRelativePath accepts "" (the workdir itself) and paths that stay inside it
func isRelativePath(p string) bool {
	return p == "" || filepath.IsLocal(p)
}
