package usecase_test

import (
	"context"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/m-mizutani/shipyard/pkg/domain/model"
	"github.com/m-mizutani/shipyard/pkg/domain/types"
	"github.com/m-mizutani/shipyard/pkg/utils/retry"
)

// MockGitHubClient is an in-memory GitHub with hooks for injecting failures
type MockGitHubClient struct {
	mu sync.Mutex

	heads    map[string]string // "owner/repo@branch" -> commit SHA
	trees    map[string][]*model.TreeEntry
	blobs    map[string][]byte
	releases []*model.ReleaseRecord
	nextID   int64

	// Hooks run before the default behavior; a non-nil error is returned as is
	getTreeHook       func(sha string, call int) error
	getBlobHook       func(sha string, call int) error
	createReleaseHook func(tag string) error
	uploadHook        func(name string, call int) error
	createTagRefHook  func(tag string) error

	treeCalls      map[string]int
	blobCalls      map[string]int
	uploadAttempts map[string]int
	createCalls    []string
	tagRefCalls    []MockTagRefCall
	uploadCalls    []MockUploadCall
	listCallCount  int
}

type MockTagRefCall struct {
	Tag string
	SHA string
}

type MockUploadCall struct {
	ReleaseID int64
	Name      string
	Content   []byte
}

func NewMockGitHubClient() *MockGitHubClient {
	return &MockGitHubClient{
		heads:          map[string]string{},
		trees:          map[string][]*model.TreeEntry{},
		blobs:          map[string][]byte{},
		nextID:         100,
		treeCalls:      map[string]int{},
		blobCalls:      map[string]int{},
		uploadAttempts: map[string]int{},
	}
}

func (m *MockGitHubClient) SetHead(repo model.RepoRef, branch, sha string) {
	m.heads[repo.String()+"@"+branch] = sha
}

func (m *MockGitHubClient) AddTree(sha string, entries ...*model.TreeEntry) {
	m.trees[sha] = entries
}

func (m *MockGitHubClient) AddBlob(sha string, content []byte) {
	m.blobs[sha] = content
}

func (m *MockGitHubClient) AddRelease(r *model.ReleaseRecord) {
	m.releases = append(m.releases, r)
}

func (m *MockGitHubClient) ResolveBranchHead(ctx context.Context, repo model.RepoRef, branch string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sha, ok := m.heads[repo.String()+"@"+branch]
	if !ok {
		return "", &types.RemoteError{Status: http.StatusNotFound, Message: "Not Found"}
	}
	return sha, nil
}

func (m *MockGitHubClient) GetTree(ctx context.Context, repo model.RepoRef, treeSHA string) ([]*model.TreeEntry, error) {
	m.mu.Lock()
	m.treeCalls[treeSHA]++
	call := m.treeCalls[treeSHA]
	hook := m.getTreeHook
	m.mu.Unlock()

	if hook != nil {
		if err := hook(treeSHA, call); err != nil {
			return nil, err
		}
	}

	entries, ok := m.trees[treeSHA]
	if !ok {
		return nil, &types.RemoteError{Status: http.StatusNotFound, Message: "Not Found"}
	}
	return entries, nil
}

func (m *MockGitHubClient) GetBlob(ctx context.Context, repo model.RepoRef, blobSHA string) ([]byte, error) {
	m.mu.Lock()
	m.blobCalls[blobSHA]++
	call := m.blobCalls[blobSHA]
	hook := m.getBlobHook
	m.mu.Unlock()

	if hook != nil {
		if err := hook(blobSHA, call); err != nil {
			return nil, err
		}
	}

	data, ok := m.blobs[blobSHA]
	if !ok {
		return nil, &types.RemoteError{Status: http.StatusNotFound, Message: "Not Found"}
	}
	return append([]byte(nil), data...), nil
}

func (m *MockGitHubClient) ListReleases(ctx context.Context, repo model.RepoRef) ([]*model.ReleaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCallCount++
	return append([]*model.ReleaseRecord(nil), m.releases...), nil
}

func (m *MockGitHubClient) CreateRelease(ctx context.Context, repo model.RepoRef, tagName string, prerelease bool) (*model.ReleaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls = append(m.createCalls, tagName)

	if m.createReleaseHook != nil {
		if err := m.createReleaseHook(tagName); err != nil {
			return nil, err
		}
	}

	m.nextID++
	r := &model.ReleaseRecord{ID: m.nextID, TagName: tagName, Name: tagName, Prerelease: prerelease}
	m.releases = append(m.releases, r)
	return r, nil
}

func (m *MockGitHubClient) CreateTagRef(ctx context.Context, repo model.RepoRef, tagName, commitSHA string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tagRefCalls = append(m.tagRefCalls, MockTagRefCall{Tag: tagName, SHA: commitSHA})
	if m.createTagRefHook != nil {
		return m.createTagRefHook(tagName)
	}
	return nil
}

func (m *MockGitHubClient) UploadAsset(ctx context.Context, repo model.RepoRef, releaseID int64, name string, file *os.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.uploadAttempts[name]++
	call := m.uploadAttempts[name]
	if m.uploadHook != nil {
		if err := m.uploadHook(name, call); err != nil {
			return err
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	m.uploadCalls = append(m.uploadCalls, MockUploadCall{ReleaseID: releaseID, Name: name, Content: data})
	return nil
}

// MockCommandRunner records commands and returns scripted exit codes
type MockCommandRunner struct {
	calls []MockCommand
	runFn func(dir string, command []string) (int, error)
}

type MockCommand struct {
	Dir     string
	Command []string
}

func (r *MockCommandRunner) Run(ctx context.Context, dir string, command []string) (int, error) {
	r.calls = append(r.calls, MockCommand{Dir: dir, Command: command})
	if r.runFn != nil {
		return r.runFn(dir, command)
	}
	return 0, nil
}

// fakeSleeper records requested waits instead of blocking
type fakeSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return nil
}

var testNow = time.Unix(1700000000, 0)

func newTestRateLimit(s *fakeSleeper) *retry.RateLimit {
	return retry.NewRateLimit(
		retry.WithClock(func() time.Time { return testNow }),
		retry.WithSleeper(s.Sleep),
	)
}

func blobEntry(path, sha string) *model.TreeEntry {
	return &model.TreeEntry{Path: path, Type: model.EntryTypeBlob, SHA: sha, Mode: "100644"}
}

func treeEntry(path, sha string) *model.TreeEntry {
	return &model.TreeEntry{Path: path, Type: model.EntryTypeTree, SHA: sha, Mode: "040000"}
}
