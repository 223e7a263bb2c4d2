package settings

import "context"

// Repository provides persistence for the settings document.
type Repository interface {
	// Load returns the merged user+project document. Missing files yield an
	// empty document; malformed content is an error, since continuing with an
	// unknown permission state is unsafe.
	Load(ctx context.Context) (*Document, error)

	// Save rewrites the whole persisted document, last-writer-wins.
	Save(ctx context.Context, doc *Document) error
}
