package usecase

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shipyard/pkg/domain/model"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// buildMetadata is the name/version pair written by the build
// (package.json, electron-builder latest.yml, or a TOML manifest)
type buildMetadata struct {
	Name    string `json:"name" yaml:"name" toml:"name"`
	Version string `json:"version" yaml:"version" toml:"version"`
}

// DiscoverVersion reads the version from the build metadata file at path.
// The format is chosen by extension. The value must be a full semantic
// version, with or without a leading "v"; it is returned without the "v".
func DiscoverVersion(path string) (model.Version, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read build metadata", goerr.V("path", path))
	}

	var meta buildMetadata
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(raw, &meta)
	case ".yml", ".yaml":
		err = yaml.Unmarshal(raw, &meta)
	case ".toml":
		err = toml.Unmarshal(raw, &meta)
	default:
		return "", goerr.New("unsupported build metadata format",
			goerr.V("path", path),
			goerr.V("ext", ext),
		)
	}
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse build metadata", goerr.V("path", path))
	}

	v := strings.TrimPrefix(strings.TrimSpace(meta.Version), "v")
	if v == "" {
		return "", goerr.New("build metadata has no version", goerr.V("path", path))
	}
	if !isFullSemver(v) {
		return "", goerr.New("build metadata version is not a semantic version",
			goerr.V("path", path),
			goerr.V("version", meta.Version),
		)
	}

	return model.Version(v), nil
}

// isFullSemver accepts MAJOR.MINOR.PATCH with optional pre-release and build
// parts. Shorthands such as "1" or "1.2" are rejected.
func isFullSemver(v string) bool {
	sv := "v" + v
	core, _, _ := strings.Cut(sv, "+")
	return semver.IsValid(sv) && semver.Canonical(sv) == core
}
