package config

import (
	"context"

	"github.com/m-mizutani/shipyard/pkg/infra/storage"
	"github.com/urfave/cli/v3"
)

// Storage holds artifact mirror configuration
type Storage struct {
	Bucket   string
	Prefix   string
	Endpoint string
}

// Flags returns CLI flags for the Cloud Storage mirror
func (c *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gcs-bucket",
			Usage:       "Cloud Storage bucket that receives a copy of the artifacts",
			Destination: &c.Bucket,
			Sources:     cli.EnvVars("SHIPYARD_GCS_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "gcs-prefix",
			Usage:       "Object name prefix for mirrored artifacts",
			Destination: &c.Prefix,
			Sources:     cli.EnvVars("SHIPYARD_GCS_PREFIX"),
		},
		&cli.StringFlag{
			Name:        "gcs-endpoint",
			Usage:       "Cloud Storage endpoint (emulator only)",
			Destination: &c.Endpoint,
			Sources:     cli.EnvVars("SHIPYARD_GCS_ENDPOINT"),
		},
	}
}

// Enabled reports whether a bucket is configured
func (c *Storage) Enabled() bool {
	return c.Bucket != ""
}

// NewMirror creates the artifact mirror
func (c *Storage) NewMirror(ctx context.Context) (*storage.Mirror, error) {
	opts := []storage.Option{storage.WithPrefix(c.Prefix)}
	if c.Endpoint != "" {
		opts = append(opts, storage.WithEndpoint(c.Endpoint))
	}
	return storage.New(ctx, c.Bucket, opts...)
}
