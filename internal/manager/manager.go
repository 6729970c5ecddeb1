// Package manager coordinates the store and an in-memory cache of
// recent app-builder results.
package manager

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/codeforge-ai/codeforge/internal/store"
	"github.com/codeforge-ai/codeforge/pkg/extract"
)

// MaxCachedBuilds bounds how many generated builds stay in memory.
// The store keeps the raw response, so eviction only costs a re-parse.
const MaxCachedBuilds = 32

// Build is one generated app: the raw model text plus the files
// extracted from it.
type Build struct {
	ProjectID string
	Raw       string
	Files     []extract.FileRecord
	CreatedAt time.Time
}

// Manager wraps the store with a bounded LRU of recent builds so the
// ZIP download route does not re-run extraction on every request.
type Manager struct {
	store  *store.Store
	builds *lru.Cache[string, *Build]
	mu     sync.RWMutex
	log    *zap.Logger
}

// New creates a Manager around an open store.
func New(s *store.Store, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	cache, _ := lru.New[string, *Build](MaxCachedBuilds)
	return &Manager{store: s, builds: cache, log: log}
}

// Store exposes the underlying store.
func (m *Manager) Store() *store.Store {
	return m.store
}

// PutBuild persists a build's raw response on the project and caches
// the extracted records.
func (m *Manager) PutBuild(projectID, prompt, raw string, files []extract.FileRecord) error {
	if err := m.store.SaveBuild(projectID, prompt, raw); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds.Add(projectID, &Build{
		ProjectID: projectID,
		Raw:       raw,
		Files:     files,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// GetBuild returns the project's most recent build, re-extracting from
// the stored raw response on a cache miss. A project that was never
// built yields a build with zero files, not an error.
func (m *Manager) GetBuild(projectID string) (*Build, error) {
	m.mu.RLock()
	if b, ok := m.builds.Get(projectID); ok {
		m.mu.RUnlock()
		return b, nil
	}
	m.mu.RUnlock()

	p, err := m.store.GetProject(projectID)
	if err != nil {
		return nil, err
	}

	b := &Build{
		ProjectID: projectID,
		Raw:       p.RawResponse,
		Files:     extract.Files(p.RawResponse),
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.builds.Add(projectID, b)
	m.mu.Unlock()

	m.log.Debug("build rebuilt from store",
		zap.String("project", projectID),
		zap.Int("files", len(b.Files)))
	return b, nil
}

// DropBuild evicts a project's cached build, e.g. after deletion.
func (m *Manager) DropBuild(projectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds.Remove(projectID)
}
