package github

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shipyard/pkg/domain/interfaces"
	"github.com/m-mizutani/shipyard/pkg/domain/model"
)

const listPerPage = 100

// Client wraps go-github with the typed error mapping used by the pipeline
type Client struct {
	githubClient *github.Client
}

var _ interfaces.GitHubClient = (*Client)(nil)

type config struct {
	baseURL    string
	uploadURL  string
	serverURL  string
	httpClient *http.Client
}

// Option is a functional option for Client configuration
type Option func(*config)

// WithBaseURL sets the GitHub Enterprise Server API URL, e.g.
// https://ghe.example.com/api/v3/. Asset uploads go to the matching
// /api/uploads/ endpoint unless WithUploadURL is given.
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = baseURL
	}
}

// WithUploadURL sets the GitHub Enterprise Server upload URL
func WithUploadURL(uploadURL string) Option {
	return func(c *config) {
		c.uploadURL = uploadURL
	}
}

// withServerURL serves both the API and uploads from the root of one server
func withServerURL(serverURL string) Option {
	return func(c *config) {
		c.serverURL = serverURL
	}
}

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *config) {
		c.httpClient = httpClient
	}
}

// NewClient creates a GitHub client authenticated with a token
func NewClient(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, goerr.New("GitHub token is empty")
	}

	cfg := newConfig(opts)
	githubClient := github.NewClient(cfg.httpClient).WithAuthToken(token)
	return newClient(githubClient, cfg)
}

// NewAppClient creates a GitHub client with App installation authentication
func NewAppClient(appID, installationID int64, privateKey []byte, opts ...Option) (*Client, error) {
	cfg := newConfig(opts)

	base := http.DefaultTransport
	if cfg.httpClient != nil && cfg.httpClient.Transport != nil {
		base = cfg.httpClient.Transport
	}

	itr, err := ghinstallation.New(base, appID, installationID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport",
			goerr.V("app_id", appID),
			goerr.V("installation_id", installationID),
		)
	}

	client, err := newClient(github.NewClient(&http.Client{Transport: itr}), cfg)
	if err != nil {
		return nil, err
	}
	// Installation tokens are issued by the same API host
	itr.BaseURL = strings.TrimSuffix(client.githubClient.BaseURL.String(), "/")
	return client, nil
}

func newConfig(opts []Option) *config {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func newClient(githubClient *github.Client, cfg *config) (*Client, error) {
	switch {
	case cfg.serverURL != "":
		raw := cfg.serverURL
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid GitHub server URL", goerr.V("server_url", cfg.serverURL))
		}
		githubClient.BaseURL = u
		githubClient.UploadURL = u

	case cfg.baseURL != "":
		uploadURL := cfg.uploadURL
		if uploadURL == "" {
			uploadURL = uploadURLFor(cfg.baseURL)
		}
		enterprise, err := githubClient.WithEnterpriseURLs(cfg.baseURL, uploadURL)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid GitHub Enterprise URL",
				goerr.V("base_url", cfg.baseURL),
				goerr.V("upload_url", uploadURL),
			)
		}
		githubClient = enterprise
	}

	return &Client{githubClient: githubClient}, nil
}

// uploadURLFor returns the upload endpoint paired with a GHES API URL:
// https://ghe.example.com/api/v3/ -> https://ghe.example.com/api/uploads/
func uploadURLFor(baseURL string) string {
	host := strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/api/v3")
	return host + "/api/uploads/"
}

// ResolveBranchHead returns the commit SHA at the head of a branch
func (c *Client) ResolveBranchHead(ctx context.Context, repo model.RepoRef, branch string) (string, error) {
	ref, _, err := c.githubClient.Git.GetRef(ctx, repo.Owner, repo.Repo, "heads/"+branch)
	if err != nil {
		return "", goerr.Wrap(convertError(err), "failed to resolve branch head",
			goerr.V("repo", repo.String()),
			goerr.V("branch", branch),
		)
	}

	sha := ref.GetObject().GetSHA()
	if sha == "" {
		return "", goerr.New("branch reference has no object SHA",
			goerr.V("repo", repo.String()),
			goerr.V("branch", branch),
		)
	}
	return sha, nil
}

// GetTree returns one level of a tree listing in server order
func (c *Client) GetTree(ctx context.Context, repo model.RepoRef, treeSHA string) ([]*model.TreeEntry, error) {
	tree, _, err := c.githubClient.Git.GetTree(ctx, repo.Owner, repo.Repo, treeSHA, false)
	if err != nil {
		return nil, goerr.Wrap(convertError(err), "failed to get tree",
			goerr.V("repo", repo.String()),
			goerr.V("sha", treeSHA),
		)
	}

	entries := make([]*model.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		entries = append(entries, &model.TreeEntry{
			Path: e.GetPath(),
			Type: model.EntryType(e.GetType()),
			SHA:  e.GetSHA(),
			Mode: e.GetMode(),
			Size: e.GetSize(),
		})
	}
	return entries, nil
}

// GetBlob returns the decoded content of a blob
func (c *Client) GetBlob(ctx context.Context, repo model.RepoRef, blobSHA string) ([]byte, error) {
	blob, _, err := c.githubClient.Git.GetBlob(ctx, repo.Owner, repo.Repo, blobSHA)
	if err != nil {
		return nil, goerr.Wrap(convertError(err), "failed to get blob",
			goerr.V("repo", repo.String()),
			goerr.V("sha", blobSHA),
		)
	}

	switch blob.GetEncoding() {
	case "base64":
		data, err := base64.StdEncoding.DecodeString(blob.GetContent())
		if err != nil {
			return nil, goerr.Wrap(err, "failed to decode blob content", goerr.V("sha", blobSHA))
		}
		return data, nil
	case "utf-8", "":
		return []byte(blob.GetContent()), nil
	default:
		return nil, goerr.New("unsupported blob encoding",
			goerr.V("sha", blobSHA),
			goerr.V("encoding", blob.GetEncoding()),
		)
	}
}

// ListReleases returns all releases of a repository
func (c *Client) ListReleases(ctx context.Context, repo model.RepoRef) ([]*model.ReleaseRecord, error) {
	var records []*model.ReleaseRecord
	opt := &github.ListOptions{PerPage: listPerPage}

	for {
		releases, resp, err := c.githubClient.Repositories.ListReleases(ctx, repo.Owner, repo.Repo, opt)
		if err != nil {
			return nil, goerr.Wrap(convertError(err), "failed to list releases",
				goerr.V("repo", repo.String()),
				goerr.V("page", opt.Page),
			)
		}

		for _, r := range releases {
			records = append(records, toReleaseRecord(r))
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	return records, nil
}

// CreateRelease creates a release whose name equals its tag
func (c *Client) CreateRelease(ctx context.Context, repo model.RepoRef, tagName string, prerelease bool) (*model.ReleaseRecord, error) {
	release, _, err := c.githubClient.Repositories.CreateRelease(ctx, repo.Owner, repo.Repo, &github.RepositoryRelease{
		TagName:    github.Ptr(tagName),
		Name:       github.Ptr(tagName),
		Prerelease: github.Ptr(prerelease),
	})
	if err != nil {
		return nil, goerr.Wrap(convertError(err), "failed to create release",
			goerr.V("repo", repo.String()),
			goerr.V("tag", tagName),
		)
	}

	return toReleaseRecord(release), nil
}

// CreateTagRef creates refs/tags/<tagName> pointing to commitSHA
func (c *Client) CreateTagRef(ctx context.Context, repo model.RepoRef, tagName, commitSHA string) error {
	_, _, err := c.githubClient.Git.CreateRef(ctx, repo.Owner, repo.Repo, github.CreateRef{
		Ref: "refs/tags/" + tagName,
		SHA: commitSHA,
	})
	if err != nil {
		return goerr.Wrap(convertError(err), "failed to create tag ref",
			goerr.V("repo", repo.String()),
			goerr.V("tag", tagName),
			goerr.V("sha", commitSHA),
		)
	}
	return nil
}

// UploadAsset uploads file as a release asset named name
func (c *Client) UploadAsset(ctx context.Context, repo model.RepoRef, releaseID int64, name string, file *os.File) error {
	_, _, err := c.githubClient.Repositories.UploadReleaseAsset(ctx, repo.Owner, repo.Repo, releaseID, &github.UploadOptions{
		Name: name,
	}, file)
	if err != nil {
		return goerr.Wrap(convertError(err), "failed to upload release asset",
			goerr.V("repo", repo.String()),
			goerr.V("release_id", releaseID),
			goerr.V("name", name),
		)
	}
	return nil
}

func toReleaseRecord(r *github.RepositoryRelease) *model.ReleaseRecord {
	return &model.ReleaseRecord{
		ID:         r.GetID(),
		TagName:    r.GetTagName(),
		Name:       r.GetName(),
		Prerelease: r.GetPrerelease(),
		UploadURL:  r.GetUploadURL(),
		HTMLURL:    r.GetHTMLURL(),
	}
}
