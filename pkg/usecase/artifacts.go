package usecase

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shipyard/pkg/domain/model"
)

// CollectArtifacts lists the regular files directly under sourceDir, leaving
// out those whose extension is in excluded. Matching is case-sensitive and
// looks at the last extension only.
func CollectArtifacts(sourceDir string, excluded map[string]struct{}) ([]*model.ArtifactFile, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(err, "artifact directory does not exist; the packaging step may not have produced it",
				goerr.V("dir", sourceDir),
			)
		}
		return nil, goerr.Wrap(err, "failed to read artifact directory", goerr.V("dir", sourceDir))
	}

	var artifacts []*model.ArtifactFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if _, skip := excluded[filepath.Ext(entry.Name())]; skip {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to stat artifact", goerr.V("name", entry.Name()))
		}

		path, err := filepath.Abs(filepath.Join(sourceDir, entry.Name()))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to resolve artifact path", goerr.V("name", entry.Name()))
		}

		artifacts = append(artifacts, &model.ArtifactFile{
			Name: entry.Name(),
			Path: path,
			Size: info.Size(),
		})
	}

	return artifacts, nil
}

// StageArtifacts copies artifacts into stagingDir, creating it when needed
func StageArtifacts(ctx context.Context, artifacts []*model.ArtifactFile, stagingDir string) error {
	logger := ctxlog.From(ctx)

	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return goerr.Wrap(err, "failed to create staging directory", goerr.V("dir", stagingDir))
	}

	for _, a := range artifacts {
		dst := filepath.Join(stagingDir, a.Name)
		if err := copyFile(a.Path, dst); err != nil {
			return goerr.Wrap(err, "failed to stage artifact",
				goerr.V("name", a.Name),
				goerr.V("dst", dst),
			)
		}
		logger.Debug("Staged artifact", "name", a.Name, "dst", dst)
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
