package storage

import (
	"context"
	"io"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shipyard/pkg/domain/interfaces"
	"github.com/m-mizutani/shipyard/pkg/domain/model"
	"google.golang.org/api/option"
)

// Mirror copies release artifacts into a Cloud Storage bucket under
// <prefix>/<version>/<name>
type Mirror struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ interfaces.ArtifactMirror = (*Mirror)(nil)

type config struct {
	prefix        string
	clientOptions []option.ClientOption
}

// Option is a functional option for Mirror
type Option func(*config)

// WithPrefix sets the object name prefix
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// WithEndpoint points the client to an emulator. Authentication is disabled.
func WithEndpoint(endpoint string) Option {
	return func(c *config) {
		c.clientOptions = append(c.clientOptions,
			option.WithEndpoint(endpoint),
			option.WithoutAuthentication(),
		)
	}
}

// New creates a Mirror with application default credentials
func New(ctx context.Context, bucket string, opts ...Option) (*Mirror, error) {
	if bucket == "" {
		return nil, goerr.New("bucket name is empty")
	}

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	client, err := storage.NewClient(ctx, cfg.clientOptions...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client", goerr.V("bucket", bucket))
	}

	return &Mirror{
		client: client,
		bucket: bucket,
		prefix: cfg.prefix,
	}, nil
}

// Close releases the underlying client
func (m *Mirror) Close() error {
	return m.client.Close()
}

// ObjectName returns the object name of an artifact
func ObjectName(prefix string, version model.Version, name string) string {
	return path.Join(prefix, string(version), name)
}

// Mirror uploads every artifact. Existing objects are overwritten.
func (m *Mirror) Mirror(ctx context.Context, version model.Version, artifacts []*model.ArtifactFile) error {
	logger := ctxlog.From(ctx)

	for _, a := range artifacts {
		name := ObjectName(m.prefix, version, a.Name)
		if err := m.upload(ctx, name, a); err != nil {
			return err
		}
		logger.Info("Mirrored artifact",
			"bucket", m.bucket,
			"object", name,
			"size_bytes", a.Size,
		)
	}

	return nil
}

func (m *Mirror) upload(ctx context.Context, name string, a *model.ArtifactFile) error {
	f, err := a.Open()
	if err != nil {
		return goerr.Wrap(err, "failed to open artifact", goerr.V("path", a.Path))
	}
	defer f.Close()

	w := m.client.Bucket(m.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/octet-stream"

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write object",
			goerr.V("bucket", m.bucket),
			goerr.V("object", name),
		)
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize object",
			goerr.V("bucket", m.bucket),
			goerr.V("object", name),
		)
	}
	return nil
}
