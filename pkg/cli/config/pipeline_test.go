package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/shipyard/pkg/cli/config"
	"github.com/m-mizutani/shipyard/pkg/domain/types"
)

func writePipelineFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const customPipeline = `
workdir = "out"

[[sources]]
name = "app"
owner = "acme"
repo = "app"
branch = "release"

[release]
owner = "acme"
repo = "app-releases"
tag_prefix = "v"

[platforms.mac]
metadata_file = "package.json"
artifact_dir = "dist"

[[platforms.mac.steps]]
command = ["make", "dmg"]
`

func TestPipeline_LoadDefault(t *testing.T) {
	cfg := &config.Pipeline{Platform: "windows", StageArtifacts: true}
	spec, err := cfg.Load()
	gt.NoError(t, err)

	gt.True(t, filepath.IsAbs(spec.WorkDir))
	gt.Equal(t, filepath.Base(spec.WorkDir), "browser")
	gt.A(t, spec.Sources).Length(4)
	gt.Equal(t, spec.Sources[0].Repo, "browser")
	gt.Equal(t, spec.Sources[0].Path, "")
	gt.Equal(t, spec.Sources[1].Path, "packages/domain-fetch")
	// Installers are published to the dedicated releases repository, not the source repository
	gt.Equal(t, spec.Release.RepoRef().String(), "PraxiveSoftware/releases")
	gt.Equal(t, spec.Release.TagBranch, "")
	gt.Equal(t, spec.Release.TagPrefix, "")

	gt.Equal(t, spec.Platform.Name, "windows")
	gt.Equal(t, spec.Platform.ArtifactDir, "dist/nsis-web")
	gt.Equal(t, spec.Platform.ExcludedExtensions, []string{".yml", ".blockmap"})
	last := spec.Platform.Steps[len(spec.Platform.Steps)-1]
	gt.Equal(t, last.Command, []string{"yarn", "compile-windows"})
	gt.True(t, spec.StageArtifacts)

	// pdf-viewer is downloaded but never built
	for _, step := range spec.Platform.Steps {
		gt.False(t, step.Dir == "packages/pdf-viewer")
	}
}

func TestPipeline_PlatformNames(t *testing.T) {
	names, err := (&config.Pipeline{}).PlatformNames()
	gt.NoError(t, err)
	gt.Equal(t, names, []string{"linux", "windows"})

	names, err = (&config.Pipeline{ConfigPath: writePipelineFile(t, customPipeline)}).PlatformNames()
	gt.NoError(t, err)
	gt.Equal(t, names, []string{"mac"})
}

func TestPipeline_LoadCustom(t *testing.T) {
	path := writePipelineFile(t, customPipeline)

	t.Run("file values", func(t *testing.T) {
		spec, err := (&config.Pipeline{ConfigPath: path, Platform: "mac"}).Load()
		gt.NoError(t, err)
		gt.Equal(t, filepath.Base(spec.WorkDir), "out")
		gt.Equal(t, spec.Release.TagPrefix, "v")
		gt.Equal(t, spec.Release.TagBranch, "")
		gt.Equal(t, spec.Platform.Steps[0].String(), "make dmg")
	})

	t.Run("flags override the file", func(t *testing.T) {
		workDir := t.TempDir()
		spec, err := (&config.Pipeline{
			ConfigPath: path,
			Platform:   "mac",
			WorkDir:    workDir,
			TagPrefix:  "app-v",
			TagBranch:  "main",
		}).Load()
		gt.NoError(t, err)
		gt.Equal(t, spec.WorkDir, workDir)
		gt.Equal(t, spec.Release.TagPrefix, "app-v")
		gt.Equal(t, spec.Release.TagBranch, "main")
	})
}

func TestPipeline_LoadErrors(t *testing.T) {
	testCases := map[string]struct {
		cfg config.Pipeline
	}{
		"missing platform": {
			cfg: config.Pipeline{},
		},
		"unknown platform": {
			cfg: config.Pipeline{Platform: "solaris"},
		},
		"missing file": {
			cfg: config.Pipeline{ConfigPath: "/nonexistent/pipeline.toml", Platform: "windows"},
		},
		"unknown field": {
			cfg: config.Pipeline{ConfigPath: writePipelineFile(t, "unknown = 1\n"), Platform: "windows"},
		},
		"no sources": {
			cfg: config.Pipeline{ConfigPath: writePipelineFile(t, `
[release]
owner = "acme"
repo = "app"

[platforms.mac]
metadata_file = "package.json"
artifact_dir = "dist"
`), Platform: "mac"},
		},
		"source path escapes workdir": {
			cfg: config.Pipeline{ConfigPath: writePipelineFile(t, `
[[sources]]
owner = "acme"
repo = "app"
branch = "main"
path = "../outside"

[release]
owner = "acme"
repo = "app"

[platforms.mac]
metadata_file = "package.json"
artifact_dir = "dist"
`), Platform: "mac"},
		},
		"missing release repo": {
			cfg: config.Pipeline{ConfigPath: writePipelineFile(t, `
[[sources]]
owner = "acme"
repo = "app"
branch = "main"

[release]
owner = "acme"

[platforms.mac]
metadata_file = "package.json"
artifact_dir = "dist"
`), Platform: "mac"},
		},
		"step without command": {
			cfg: config.Pipeline{ConfigPath: writePipelineFile(t, `
[[sources]]
owner = "acme"
repo = "app"
branch = "main"

[release]
owner = "acme"
repo = "app"

[platforms.mac]
metadata_file = "package.json"
artifact_dir = "dist"

[[platforms.mac.steps]]
name = "noop"
`), Platform: "mac"},
		},
		"extension without dot": {
			cfg: config.Pipeline{ConfigPath: writePipelineFile(t, `
[[sources]]
owner = "acme"
repo = "app"
branch = "main"

[release]
owner = "acme"
repo = "app"

[platforms.mac]
metadata_file = "package.json"
artifact_dir = "dist"
excluded_extensions = ["yml"]
`), Platform: "mac"},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.cfg.Load()
			gt.Error(t, err)
			gt.True(t, goerr.HasTag(err, types.ErrTagConfig))
		})
	}
}
