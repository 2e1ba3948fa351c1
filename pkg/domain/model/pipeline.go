package model

import (
	"path/filepath"
	"strings"
)

// Source is a repository branch materialized into a subdirectory of the workdir
type Source struct {
	Name   string `toml:"name"`
	Owner  string `toml:"owner"`
	Repo   string `toml:"repo"`
	Branch string `toml:"branch"`
	Path   string `toml:"path"` // Relative to the workdir; empty means the workdir itself
}

// RepoRef returns the repository of the source
func (s Source) RepoRef() RepoRef {
	return RepoRef{Owner: s.Owner, Repo: s.Repo}
}

// BuildStep is one external command of the build pipeline
type BuildStep struct {
	Name    string   `toml:"name"`
	Command []string `toml:"command"`
	Dir     string   `toml:"dir"` // Relative to the workdir
}

func (s BuildStep) String() string {
	if s.Name != "" {
		return s.Name
	}
	return strings.Join(s.Command, " ")
}

// Platform describes the platform-specific part of a pipeline run
type Platform struct {
	Name               string      `toml:"-"`
	Steps              []BuildStep `toml:"steps"`
	MetadataFile       string      `toml:"metadata_file"`
	ArtifactDir        string      `toml:"artifact_dir"`
	ExcludedExtensions []string    `toml:"excluded_extensions"`
}

// ExcludedSet returns ExcludedExtensions as a lookup set
func (p *Platform) ExcludedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.ExcludedExtensions))
	for _, ext := range p.ExcludedExtensions {
		set[ext] = struct{}{}
	}
	return set
}

// ReleaseTarget is the repository that receives releases
type ReleaseTarget struct {
	Owner     string `toml:"owner"`
	Repo      string `toml:"repo"`
	TagPrefix string `toml:"tag_prefix"`
	TagBranch string `toml:"tag_branch"` // When set, refs/tags/<tag> is created at this branch head before the release
}

// RepoRef returns the release repository
func (r ReleaseTarget) RepoRef() RepoRef {
	return RepoRef{Owner: r.Owner, Repo: r.Repo}
}

// PipelineSpec is a fully resolved pipeline definition for one platform
type PipelineSpec struct {
	WorkDir        string
	Sources        []Source
	Release        ReleaseTarget
	Platform       Platform
	StageArtifacts bool
}

// MetadataPath returns the absolute path of the build metadata file
func (p *PipelineSpec) MetadataPath() string {
	return filepath.Join(p.WorkDir, p.Platform.MetadataFile)
}

// ArtifactPath returns the absolute path of the build output directory
func (p *PipelineSpec) ArtifactPath() string {
	return filepath.Join(p.WorkDir, p.Platform.ArtifactDir)
}

// StagingPath returns the version/<version> directory for staged copies
func (p *PipelineSpec) StagingPath(v Version) string {
	return filepath.Join(p.WorkDir, "version", string(v))
}

// PipelineResult represents the outcome of a full pipeline run
type PipelineResult struct {
	Platform    string
	Repo        RepoRef // Release repository
	Version     Version
	Materialize MaterializeStats
	Artifacts   []*ArtifactFile
	Release     *ReleaseRecord
	Publish     *PublishResult
}
