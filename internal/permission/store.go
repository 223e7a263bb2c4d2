package permission

import "context"

// Source loads and persists the permission section of the settings document.
// Updates are last-writer-wins against persisted state.
type Source interface {
	Permissions(ctx context.Context) (*Set, error)
	UpdatePermissions(ctx context.Context, set *Set) error
}

// Store is the gate's permission store: project-scoped allow-list, deny-list,
// and remembered per-command decisions, persisted through a Source.
type Store struct {
	src Source
}

func NewStore(src Source) *Store {
	return &Store{src: src}
}

// Get returns the current permission set. A missing section yields an empty
// set, not an error.
func (s *Store) Get(ctx context.Context) (*Set, error) {
	set, err := s.src.Permissions(ctx)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return NewSet(), nil
	}
	return set, nil
}

// Update replaces the persisted permission set (last-writer-wins).
func (s *Store) Update(ctx context.Context, set *Set) error {
	return s.src.UpdatePermissions(ctx, set)
}

// Remember re-reads the set, records the target for the project, and writes
// the whole document back.
func (s *Store) Remember(ctx context.Context, target, projectDir string) error {
	set, err := s.Get(ctx)
	if err != nil {
		return err
	}
	if err := set.Remember(target, projectDir); err != nil {
		return err
	}
	return s.Update(ctx, set)
}
