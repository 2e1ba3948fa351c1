package model

// EntryType is the kind of node in a remote tree listing
type EntryType string

const (
	EntryTypeTree   EntryType = "tree"
	EntryTypeBlob   EntryType = "blob"
	EntryTypeCommit EntryType = "commit" // submodule pointer
)

// File modes reported by the Git Data API
const (
	ModeExecutable = "100755"
	ModeSymlink    = "120000"
)

// TreeEntry represents one node of a remote tree snapshot
type TreeEntry struct {
	Path string    // Path segment relative to the parent tree
	Type EntryType // tree, blob or commit
	SHA  string    // Content-addressed identifier
	Mode string    // Git file mode, e.g. 100644
	Size int       // Blob size in bytes (zero for trees)
}

// MaterializeStats summarizes a materialization walk
type MaterializeStats struct {
	Trees   int   // Directories created or confirmed
	Blobs   int   // Files written
	Skipped int   // Entries skipped with a warning
	Bytes   int64 // Total bytes written
}

// Add accumulates other into s
func (s *MaterializeStats) Add(other *MaterializeStats) {
	if other == nil {
		return
	}
	s.Trees += other.Trees
	s.Blobs += other.Blobs
	s.Skipped += other.Skipped
	s.Bytes += other.Bytes
}

// AddBlob records a written blob of n bytes, or a skipped one when written is false
func (s *MaterializeStats) AddBlob(n int64, written bool) {
	if !written {
		s.Skipped++
		return
	}
	s.Blobs++
	s.Bytes += n
}
