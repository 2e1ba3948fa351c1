package interfaces

import (
	"context"

	"github.com/m-mizutani/shipyard/pkg/domain/model"
)

// PipelineUseCase defines the release pipeline entry points
type PipelineUseCase interface {
	// Run materializes sources, builds, and publishes a release
	Run(ctx context.Context, spec *model.PipelineSpec) (*model.PipelineResult, error)

	// Fetch only materializes sources into the workdir
	Fetch(ctx context.Context, spec *model.PipelineSpec) (*model.MaterializeStats, error)

	// Publish collects already built artifacts and publishes them
	Publish(ctx context.Context, spec *model.PipelineSpec) (*model.PipelineResult, error)
}
