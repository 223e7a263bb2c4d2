package settings

import (
	"context"
	"sync"

	"github.com/kazz187/agentgate/internal/permission"
)

// Manager caches the merged settings document and funnels every mutation
// through an atomic re-read, modify, rewrite of the whole document.
// There is exactly one operator, so last-writer-wins is acceptable.
type Manager struct {
	repo Repository

	mu  sync.RWMutex
	doc *Document // nil when the cache has been invalidated
}

func NewManager(repo Repository) *Manager {
	return &Manager{repo: repo}
}

// Get returns the cached merged document, loading it on first use or after
// invalidation.
func (m *Manager) Get(ctx context.Context) (*Document, error) {
	m.mu.RLock()
	doc := m.doc
	m.mu.RUnlock()
	if doc != nil {
		return doc, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc != nil {
		return m.doc, nil
	}
	loaded, err := m.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	m.doc = loaded
	return loaded, nil
}

// Update re-reads the persisted document, applies mutate, and rewrites the
// whole document. The cache is replaced with the written state.
func (m *Manager) Update(ctx context.Context, mutate func(*Document)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.repo.Load(ctx)
	if err != nil {
		return err
	}
	mutate(doc)
	if err := m.repo.Save(ctx, doc); err != nil {
		return err
	}
	m.doc = doc
	return nil
}

// Invalidate drops the cached document so the next Get reloads from disk.
// Called when the settings files change outside the process.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.doc = nil
	m.mu.Unlock()
}

// Permissions implements permission.Source.
func (m *Manager) Permissions(ctx context.Context) (*permission.Set, error) {
	doc, err := m.Get(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Permissions, nil
}

// UpdatePermissions implements permission.Source.
func (m *Manager) UpdatePermissions(ctx context.Context, set *permission.Set) error {
	return m.Update(ctx, func(doc *Document) {
		doc.Permissions = set
	})
}

// Mode returns the persisted operating mode string ("" when unset).
func (m *Manager) Mode(ctx context.Context) (string, error) {
	doc, err := m.Get(ctx)
	if err != nil {
		return "", err
	}
	return doc.Mode, nil
}

// UpdateMode persists a new operating mode.
func (m *Manager) UpdateMode(ctx context.Context, modeStr string) error {
	return m.Update(ctx, func(doc *Document) {
		doc.Mode = modeStr
	})
}
