package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shipyard/pkg/domain/interfaces"
	"github.com/m-mizutani/shipyard/pkg/domain/model"
	"github.com/m-mizutani/shipyard/pkg/domain/types"
	"github.com/m-mizutani/shipyard/pkg/utils/retry"
	"golang.org/x/sync/errgroup"
)

// Materializer reproduces a remote tree as a local directory layout
type Materializer struct {
	githubClient interfaces.GitHubClient
	rateLimit    *retry.RateLimit
	concurrency  int
}

// MaterializerOption is a functional option for Materializer
type MaterializerOption func(*Materializer)

// WithMaterializerRateLimit sets the rate limit retrier
func WithMaterializerRateLimit(r *retry.RateLimit) MaterializerOption {
	return func(m *Materializer) {
		m.rateLimit = r
	}
}

// WithConcurrency sets how many sibling blobs of one tree level are fetched at once.
// 1 keeps the walk strictly sequential.
func WithConcurrency(n int) MaterializerOption {
	return func(m *Materializer) {
		m.concurrency = n
	}
}

// NewMaterializer creates a new Materializer
func NewMaterializer(githubClient interfaces.GitHubClient, opts ...MaterializerOption) *Materializer {
	m := &Materializer{
		githubClient: githubClient,
		rateLimit:    retry.NewRateLimit(),
		concurrency:  1,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.concurrency < 1 {
		m.concurrency = 1
	}
	return m
}

// Materialize walks the tree at treeSHA and writes it under destDir.
//
// A rate limited node is retried as a whole with the same arguments once the
// quota resets; rewriting a node is idempotent. Any other failure aborts the
// walk and leaves already written files in place.
func (m *Materializer) Materialize(ctx context.Context, repo model.RepoRef, treeSHA, destDir string) (*model.MaterializeStats, error) {
	var stats *model.MaterializeStats
	err := m.rateLimit.Do(ctx, "materialize tree "+treeSHA, func(ctx context.Context) error {
		s, err := m.materializeNode(ctx, repo, treeSHA, destDir)
		if err != nil {
			return err
		}
		stats = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

type blobJob struct {
	entry *model.TreeEntry
	path  string
}

func (m *Materializer) materializeNode(ctx context.Context, repo model.RepoRef, treeSHA, destDir string) (*model.MaterializeStats, error) {
	logger := ctxlog.From(ctx)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create destination directory", goerr.V("dir", destDir))
	}

	entries, err := m.githubClient.GetTree(ctx, repo, treeSHA)
	if err != nil {
		return nil, err
	}

	logger.Debug("Materializing tree",
		"repo", repo.String(),
		"sha", treeSHA,
		"dir", destDir,
		"entries", len(entries),
	)

	stats := &model.MaterializeStats{Trees: 1}
	var pending []blobJob

	for _, entry := range entries {
		path, err := entryPath(destDir, entry.Path)
		if err != nil {
			return nil, err
		}

		switch entry.Type {
		case model.EntryTypeTree:
			if err := os.MkdirAll(path, 0o755); err != nil {
				return nil, goerr.Wrap(err, "failed to create directory", goerr.V("dir", path))
			}
			child, err := m.Materialize(ctx, repo, entry.SHA, path)
			if err != nil {
				return nil, err
			}
			stats.Add(child)

		case model.EntryTypeBlob:
			if m.concurrency > 1 {
				pending = append(pending, blobJob{entry: entry, path: path})
				continue
			}
			n, ok, err := m.writeBlob(ctx, repo, entry, path)
			if err != nil {
				return nil, err
			}
			stats.AddBlob(n, ok)

		case model.EntryTypeCommit:
			logger.Warn("Skipping submodule entry", "path", path, "sha", entry.SHA)
			stats.Skipped++

		default:
			logger.Warn("Skipping unknown tree entry type", "path", path, "type", entry.Type)
			stats.Skipped++
		}
	}

	if len(pending) > 0 {
		if err := m.writeBlobsConcurrently(ctx, repo, pending, stats); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func (m *Materializer) writeBlobsConcurrently(ctx context.Context, repo model.RepoRef, jobs []blobJob, stats *model.MaterializeStats) error {
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(m.concurrency)

	for _, job := range jobs {
		eg.Go(func() error {
			n, ok, err := m.writeBlob(egCtx, repo, job.entry, job.path)
			if err != nil {
				return err
			}
			mu.Lock()
			stats.AddBlob(n, ok)
			mu.Unlock()
			return nil
		})
	}
	return eg.Wait()
}

// writeBlob fetches one blob and overwrites path with it. A missing blob is
// treated as an entry that already exists as a directory: it is skipped and
// written is false.
func (m *Materializer) writeBlob(ctx context.Context, repo model.RepoRef, entry *model.TreeEntry, path string) (int64, bool, error) {
	logger := ctxlog.From(ctx)

	data, err := m.githubClient.GetBlob(ctx, repo, entry.SHA)
	if err != nil {
		if !types.IsNotFound(err) {
			return 0, false, err
		}
		logger.Warn("Blob not found, the entry is already materialized as a directory; skipping",
			"path", path,
			"sha", entry.SHA,
		)
		return 0, false, nil
	}

	perm := os.FileMode(0o644)
	switch entry.Mode {
	case model.ModeExecutable:
		perm = 0o755
	case model.ModeSymlink:
		// The blob holds the link target; it is written as a regular file
		logger.Debug("Writing symlink entry as a regular file", "path", path, "target", string(data))
	}

	if err := os.WriteFile(path, data, perm); err != nil {
		return 0, false, goerr.Wrap(err, "failed to write file", goerr.V("path", path))
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(path, perm); err != nil {
		return 0, false, goerr.Wrap(err, "failed to set file mode", goerr.V("path", path))
	}

	return int64(len(data)), true, nil
}

// entryPath joins a single tree entry name onto dir. Names that could
// escape dir are rejected.
func entryPath(dir, name string) (string, error) {
	// Backslash is an ordinary file name character outside Windows
	if name == "" || name == "." || name == ".." ||
		strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) ||
		filepath.IsAbs(name) {
		return "", goerr.New("unsafe tree entry path",
			goerr.T(types.ErrTagUnsafePath),
			goerr.V("dir", dir),
			goerr.V("name", name),
		)
	}

	return filepath.Join(dir, name), nil
}
