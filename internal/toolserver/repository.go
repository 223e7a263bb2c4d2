package toolserver

import "context"

// Repository provides persistence for auxiliary tool server definitions.
type Repository interface {
	// Get returns the definition with the given name.
	Get(ctx context.Context, name string) (*Definition, error)

	// List returns all known definitions.
	List(ctx context.Context) ([]*Definition, error)

	// Upsert creates or replaces a definition.
	Upsert(ctx context.Context, def *Definition) error
}
