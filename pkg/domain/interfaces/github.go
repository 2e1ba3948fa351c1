package interfaces

import (
	"context"
	"os"

	"github.com/m-mizutani/shipyard/pkg/domain/model"
)

// GitHubClient defines operations for interacting with GitHub API
type GitHubClient interface {
	// ResolveBranchHead returns the commit SHA at the head of a branch
	ResolveBranchHead(ctx context.Context, repo model.RepoRef, branch string) (string, error)

	// GetTree returns one level of a tree listing
	GetTree(ctx context.Context, repo model.RepoRef, treeSHA string) ([]*model.TreeEntry, error)

	// GetBlob returns the decoded content of a blob
	GetBlob(ctx context.Context, repo model.RepoRef, blobSHA string) ([]byte, error)

	// ListReleases returns all releases of a repository
	ListReleases(ctx context.Context, repo model.RepoRef) ([]*model.ReleaseRecord, error)

	// CreateRelease creates a release for the tag
	CreateRelease(ctx context.Context, repo model.RepoRef, tagName string, prerelease bool) (*model.ReleaseRecord, error)

	// CreateTagRef creates refs/tags/<tagName> pointing to commitSHA
	CreateTagRef(ctx context.Context, repo model.RepoRef, tagName, commitSHA string) error

	// UploadAsset uploads file as a release asset named name
	UploadAsset(ctx context.Context, repo model.RepoRef, releaseID int64, name string, file *os.File) error
}
