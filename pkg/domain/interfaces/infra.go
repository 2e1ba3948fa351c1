package interfaces

import (
	"context"

	"github.com/m-mizutani/shipyard/pkg/domain/model"
)

// CommandRunner runs an external process and waits for it to exit.
// A non-zero exit is reported through exitCode, not err.
type CommandRunner interface {
	Run(ctx context.Context, dir string, command []string) (exitCode int, err error)
}

// ArtifactMirror stores a copy of published artifacts outside of GitHub
type ArtifactMirror interface {
	Mirror(ctx context.Context, version model.Version, artifacts []*model.ArtifactFile) error
}

// Notifier announces a published release
type Notifier interface {
	NotifyRelease(ctx context.Context, result *model.PipelineResult) error
}
