package model

import (
	"fmt"
	"strings"
)

// RepoRef identifies a GitHub repository
type RepoRef struct {
	Owner string `toml:"owner"`
	Repo  string `toml:"repo"`
}

func (r RepoRef) String() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Repo)
}

// ReleaseRecord represents a release on the remote host
type ReleaseRecord struct {
	ID         int64  // Remote release identifier
	TagName    string // Tag the release is attached to
	Name       string // Display name
	Prerelease bool
	UploadURL  string
	HTMLURL    string
}

// Version is the semantic version discovered from build metadata, without a
// leading "v"
type Version string

func (v Version) String() string {
	return string(v)
}

// TagName builds the canonical release tag for a version. The same value is
// used to look up existing releases and to create new ones. A leading "v" on
// the version is dropped so that the prefix alone decides it.
func TagName(prefix string, v Version) string {
	return prefix + strings.TrimPrefix(string(v), "v")
}

// PublishResult represents the outcome of an asset upload pass
type PublishResult struct {
	ReleaseID int64
	TagName   string
	Uploaded  []string
}
