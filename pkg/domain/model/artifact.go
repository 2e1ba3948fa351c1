package model

import "os"

// ArtifactFile is a packaged output file staged for upload. Content is read
// on demand through Open.
type ArtifactFile struct {
	Name string // Base file name used as the asset name
	Path string // Absolute path on local disk
	Size int64
}

// Open opens the artifact for reading
func (a *ArtifactFile) Open() (*os.File, error) {
	return os.Open(a.Path)
}

