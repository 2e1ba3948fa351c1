package usecase

import (
	"context"
	"path/filepath"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shipyard/pkg/domain/interfaces"
	"github.com/m-mizutani/shipyard/pkg/domain/model"
	"github.com/m-mizutani/shipyard/pkg/utils/async"
	"github.com/m-mizutani/shipyard/pkg/utils/retry"
)

const notifyTimeout = 30 * time.Second

type pipelineUseCase struct {
	githubClient interfaces.GitHubClient
	rateLimit    *retry.RateLimit
	materializer *Materializer
	builder      *BuildDriver
	reconciler   *ReleaseReconciler
	publisher    *AssetPublisher
	mirror       interfaces.ArtifactMirror
	notifier     interfaces.Notifier
}

type pipelineConfig struct {
	rateLimit   *retry.RateLimit
	concurrency int
	mirror      interfaces.ArtifactMirror
	notifier    interfaces.Notifier
}

// PipelineOption is a functional option for the pipeline use case
type PipelineOption func(*pipelineConfig)

// WithRateLimit sets the rate limit retrier shared by all remote calls
func WithRateLimit(r *retry.RateLimit) PipelineOption {
	return func(c *pipelineConfig) {
		c.rateLimit = r
	}
}

// WithBlobConcurrency sets sibling blob fetch parallelism
func WithBlobConcurrency(n int) PipelineOption {
	return func(c *pipelineConfig) {
		c.concurrency = n
	}
}

// WithMirror stores a copy of artifacts before publishing
func WithMirror(m interfaces.ArtifactMirror) PipelineOption {
	return func(c *pipelineConfig) {
		c.mirror = m
	}
}

// WithNotifier announces published releases
func WithNotifier(n interfaces.Notifier) PipelineOption {
	return func(c *pipelineConfig) {
		c.notifier = n
	}
}

// NewPipeline creates a new instance of PipelineUseCase
func NewPipeline(githubClient interfaces.GitHubClient, runner interfaces.CommandRunner, opts ...PipelineOption) interfaces.PipelineUseCase {
	cfg := &pipelineConfig{concurrency: 1}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.rateLimit == nil {
		cfg.rateLimit = retry.NewRateLimit()
	}

	return &pipelineUseCase{
		githubClient: githubClient,
		rateLimit:    cfg.rateLimit,
		materializer: NewMaterializer(githubClient,
			WithMaterializerRateLimit(cfg.rateLimit),
			WithConcurrency(cfg.concurrency),
		),
		builder:    NewBuildDriver(runner),
		reconciler: NewReleaseReconciler(githubClient, cfg.rateLimit),
		publisher:  NewAssetPublisher(githubClient, cfg.rateLimit),
		mirror:     cfg.mirror,
		notifier:   cfg.notifier,
	}
}

// Run materializes sources, builds, and publishes a release. Steps run
// strictly in sequence; the first failure aborts the run.
func (uc *pipelineUseCase) Run(ctx context.Context, spec *model.PipelineSpec) (*model.PipelineResult, error) {
	logger := ctxlog.From(ctx)

	stats, err := uc.Fetch(ctx, spec)
	if err != nil {
		return nil, err
	}

	logger.Info("Running build pipeline",
		"platform", spec.Platform.Name,
		"steps", len(spec.Platform.Steps),
	)
	if err := uc.builder.Run(ctx, spec.WorkDir, spec.Platform.Steps); err != nil {
		return nil, goerr.Wrap(err, "build pipeline failed", goerr.V("platform", spec.Platform.Name))
	}

	result, err := uc.Publish(ctx, spec)
	if err != nil {
		return nil, err
	}
	result.Materialize = *stats
	return result, nil
}

// Fetch materializes every source at its branch head into the workdir
func (uc *pipelineUseCase) Fetch(ctx context.Context, spec *model.PipelineSpec) (*model.MaterializeStats, error) {
	logger := ctxlog.From(ctx)
	total := &model.MaterializeStats{}

	for _, src := range spec.Sources {
		repo := src.RepoRef()
		start := time.Now()

		sha, err := retry.DoValue(ctx, uc.rateLimit, "resolve branch head", func(ctx context.Context) (string, error) {
			return uc.githubClient.ResolveBranchHead(ctx, repo, src.Branch)
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to resolve source branch",
				goerr.V("repo", repo.String()),
				goerr.V("branch", src.Branch),
			)
		}

		dest := filepath.Join(spec.WorkDir, src.Path)
		logger.Info("Downloading source tree",
			"repo", repo.String(),
			"branch", src.Branch,
			"sha", sha,
			"dest", dest,
		)

		stats, err := uc.materializer.Materialize(ctx, repo, sha, dest)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to materialize source",
				goerr.V("repo", repo.String()),
				goerr.V("sha", sha),
			)
		}

		logger.Info("Downloaded source tree",
			"repo", repo.String(),
			"trees", stats.Trees,
			"blobs", stats.Blobs,
			"skipped", stats.Skipped,
			"size_bytes", stats.Bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		total.Add(stats)
	}

	return total, nil
}

// Publish discovers the version, collects artifacts from the build output and
// publishes them to the release for that version
func (uc *pipelineUseCase) Publish(ctx context.Context, spec *model.PipelineSpec) (*model.PipelineResult, error) {
	logger := ctxlog.From(ctx)

	version, err := DiscoverVersion(spec.MetadataPath())
	if err != nil {
		return nil, err
	}
	logger.Info("Discovered version", "version", version)

	artifacts, err := CollectArtifacts(spec.ArtifactPath(), spec.Platform.ExcludedSet())
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		return nil, goerr.New("no artifacts found in build output", goerr.V("dir", spec.ArtifactPath()))
	}
	logger.Info("Collected artifacts", "count", len(artifacts), "dir", spec.ArtifactPath())

	if spec.StageArtifacts {
		if err := StageArtifacts(ctx, artifacts, spec.StagingPath(version)); err != nil {
			return nil, err
		}
	}

	if uc.mirror != nil {
		if err := uc.mirror.Mirror(ctx, version, artifacts); err != nil {
			return nil, goerr.Wrap(err, "failed to mirror artifacts")
		}
	}

	release, err := uc.reconciler.Resolve(ctx, spec.Release, version)
	if err != nil {
		return nil, err
	}

	published, err := uc.publisher.Publish(ctx, spec.Release.RepoRef(), release.ID, artifacts)
	if err != nil {
		return nil, err
	}
	published.TagName = release.TagName

	result := &model.PipelineResult{
		Platform:  spec.Platform.Name,
		Repo:      spec.Release.RepoRef(),
		Version:   version,
		Artifacts: artifacts,
		Release:   release,
		Publish:   published,
	}

	if uc.notifier != nil {
		// The release is already public; a failed announcement does not fail the run
		done := async.Dispatch(ctx, func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
			defer cancel()
			return uc.notifier.NotifyRelease(ctx, result)
		})
		if err := <-done; err != nil {
			logger.Warn("Failed to send release notification", "error", err)
		}
	}

	return result, nil
}
