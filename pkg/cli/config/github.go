package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shipyard/pkg/domain/types"
	"github.com/m-mizutani/shipyard/pkg/infra/github"
	"github.com/urfave/cli/v3"
)

// GitHub holds GitHub credentials. A token takes precedence over App
// installation credentials.
type GitHub struct {
	Token          string `masq:"secret"`
	AppID          int64
	InstallationID int64
	PrivateKey     string `masq:"secret"` // PEM content or path to a PEM file
	BaseURL        string
	UploadURL      string
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub token with contents:write on the release repository",
			Destination: &c.Token,
			Sources:     cli.EnvVars("SHIPYARD_GITHUB_TOKEN", "GITHUB_TOKEN"),
		},
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("SHIPYARD_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-app-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("SHIPYARD_GITHUB_APP_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-app-private-key",
			Usage:       "GitHub App private key (PEM content or file path)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("SHIPYARD_GITHUB_APP_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-base-url",
			Usage:       "GitHub Enterprise Server API URL (e.g. https://ghe.example.com/api/v3/)",
			Destination: &c.BaseURL,
			Sources:     cli.EnvVars("SHIPYARD_GITHUB_BASE_URL"),
		},
		&cli.StringFlag{
			Name:        "github-upload-url",
			Usage:       "GitHub Enterprise Server upload URL. Derived from --github-base-url when omitted",
			Destination: &c.UploadURL,
			Sources:     cli.EnvVars("SHIPYARD_GITHUB_UPLOAD_URL"),
		},
	}
}

// NewClient creates a GitHub client from the configured credentials. The
// credentials are read once; a missing credential fails before any remote call.
func (c *GitHub) NewClient() (*github.Client, error) {
	var opts []github.Option
	if c.BaseURL != "" {
		opts = append(opts, github.WithBaseURL(c.BaseURL))
		if c.UploadURL != "" {
			opts = append(opts, github.WithUploadURL(c.UploadURL))
		}
	}

	if c.Token != "" {
		return github.NewClient(c.Token, opts...)
	}

	if c.AppID != 0 && c.InstallationID != 0 && c.PrivateKey != "" {
		key, err := c.privateKey()
		if err != nil {
			return nil, err
		}
		return github.NewAppClient(c.AppID, c.InstallationID, key, opts...)
	}

	return nil, goerr.New("GitHub credential is not configured; set --github-token (GITHUB_TOKEN) or GitHub App credentials",
		goerr.T(types.ErrTagConfig),
	)
}

func (c *GitHub) privateKey() ([]byte, error) {
	if len(c.PrivateKey) > 0 && c.PrivateKey[0] == '-' {
		return []byte(c.PrivateKey), nil
	}

	data, err := os.ReadFile(c.PrivateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read GitHub App private key",
			goerr.T(types.ErrTagConfig),
			goerr.V("path", c.PrivateKey),
		)
	}
	return data, nil
}
