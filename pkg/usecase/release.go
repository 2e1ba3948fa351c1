package usecase

import (
	"context"
	"errors"
	"net/http"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shipyard/pkg/domain/interfaces"
	"github.com/m-mizutani/shipyard/pkg/domain/model"
	"github.com/m-mizutani/shipyard/pkg/domain/types"
	"github.com/m-mizutani/shipyard/pkg/utils/retry"
)

// ReleaseReconciler finds or creates the release for a version
type ReleaseReconciler struct {
	githubClient interfaces.GitHubClient
	rateLimit    *retry.RateLimit
}

// NewReleaseReconciler creates a new ReleaseReconciler
func NewReleaseReconciler(githubClient interfaces.GitHubClient, rateLimit *retry.RateLimit) *ReleaseReconciler {
	if rateLimit == nil {
		rateLimit = retry.NewRateLimit()
	}
	return &ReleaseReconciler{
		githubClient: githubClient,
		rateLimit:    rateLimit,
	}
}

// Resolve returns the release tagged for version, creating a prerelease when
// none exists. The tag is built once and used for both the lookup and the
// creation.
func (r *ReleaseReconciler) Resolve(ctx context.Context, target model.ReleaseTarget, version model.Version) (*model.ReleaseRecord, error) {
	logger := ctxlog.From(ctx)
	repo := target.RepoRef()
	tag := model.TagName(target.TagPrefix, version)

	logger.Info("Checking if the release already exists",
		"repo", repo.String(),
		"tag", tag,
	)

	releases, err := retry.DoValue(ctx, r.rateLimit, "list releases", func(ctx context.Context) ([]*model.ReleaseRecord, error) {
		return r.githubClient.ListReleases(ctx, repo)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to look up existing release", goerr.V("tag", tag))
	}

	for _, release := range releases {
		if release.TagName == tag {
			logger.Info("Release already exists, using it",
				"tag", tag,
				"release_id", release.ID,
			)
			return release, nil
		}
	}

	if target.TagBranch != "" {
		if err := r.createTagRef(ctx, repo, tag, target.TagBranch); err != nil {
			return nil, err
		}
	}

	created, err := retry.DoValue(ctx, r.rateLimit, "create release", func(ctx context.Context) (*model.ReleaseRecord, error) {
		return r.githubClient.CreateRelease(ctx, repo, tag, true)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create release", goerr.V("tag", tag))
	}

	logger.Info("Created release",
		"tag", created.TagName,
		"release_id", created.ID,
	)
	return created, nil
}

func (r *ReleaseReconciler) createTagRef(ctx context.Context, repo model.RepoRef, tag, branch string) error {
	logger := ctxlog.From(ctx)

	sha, err := retry.DoValue(ctx, r.rateLimit, "resolve tag branch", func(ctx context.Context) (string, error) {
		return r.githubClient.ResolveBranchHead(ctx, repo, branch)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to resolve branch for tag", goerr.V("branch", branch))
	}

	err = r.rateLimit.Do(ctx, "create tag ref", func(ctx context.Context) error {
		return r.githubClient.CreateTagRef(ctx, repo, tag, sha)
	})
	if err != nil {
		if isUnprocessable(err) {
			logger.Warn("Tag ref already exists, keeping it", "tag", tag)
			return nil
		}
		return goerr.Wrap(err, "failed to create tag ref", goerr.V("tag", tag), goerr.V("sha", sha))
	}

	logger.Info("Created tag ref", "tag", tag, "sha", sha)
	return nil
}

func isUnprocessable(err error) bool {
	var re *types.RemoteError
	return errors.As(err, &re) && re.Status == http.StatusUnprocessableEntity
}

// AssetPublisher uploads artifacts to a resolved release
type AssetPublisher struct {
	githubClient interfaces.GitHubClient
	rateLimit    *retry.RateLimit
}

// NewAssetPublisher creates a new AssetPublisher
func NewAssetPublisher(githubClient interfaces.GitHubClient, rateLimit *retry.RateLimit) *AssetPublisher {
	if rateLimit == nil {
		rateLimit = retry.NewRateLimit()
	}
	return &AssetPublisher{
		githubClient: githubClient,
		rateLimit:    rateLimit,
	}
}

// Publish uploads every artifact, in order, under its file name. Assets
// already attached to the release are not checked; a name conflict comes back
// as a RemoteError and stops publishing.
func (p *AssetPublisher) Publish(ctx context.Context, repo model.RepoRef, releaseID int64, artifacts []*model.ArtifactFile) (*model.PublishResult, error) {
	logger := ctxlog.From(ctx)
	result := &model.PublishResult{ReleaseID: releaseID}

	for _, a := range artifacts {
		logger.Info("Uploading release asset",
			"name", a.Name,
			"size_bytes", a.Size,
			"release_id", releaseID,
		)

		err := p.rateLimit.Do(ctx, "upload "+a.Name, func(ctx context.Context) error {
			f, err := a.Open()
			if err != nil {
				return goerr.Wrap(err, "failed to open artifact", goerr.V("path", a.Path))
			}
			defer f.Close()

			return p.githubClient.UploadAsset(ctx, repo, releaseID, a.Name, f)
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to publish artifact",
				goerr.V("name", a.Name),
				goerr.V("uploaded", result.Uploaded),
			)
		}

		result.Uploaded = append(result.Uploaded, a.Name)
	}

	return result, nil
}
