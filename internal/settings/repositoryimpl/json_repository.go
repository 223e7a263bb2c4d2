package repositoryimpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kazz187/agentgate/internal/settings"
	"github.com/kazz187/agentgate/pkg/cerr"
	"github.com/kazz187/agentgate/pkg/storage"
)

const settingsFile = "settings.json"

// JSONRepository stores the settings document as JSON, split across a
// user-level store and a project-level store. Load merges the two; Save
// rewrites the user-level file with the full merged document.
type JSONRepository struct {
	user    *storage.LocalStorage
	project *storage.LocalStorage
}

// NewJSONRepository creates a repository over the user config directory and
// the project's .agentgate directory.
func NewJSONRepository(userDir, projectDir string) (*JSONRepository, error) {
	user, err := storage.NewLocalStorage(userDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open user settings storage: %w", err)
	}
	project, err := storage.NewLocalStorage(filepath.Join(projectDir, ".agentgate"))
	if err != nil {
		return nil, fmt.Errorf("failed to open project settings storage: %w", err)
	}
	return &JSONRepository{user: user, project: project}, nil
}

func (r *JSONRepository) Load(ctx context.Context) (*settings.Document, error) {
	userDoc, err := r.read(ctx, r.user, "user settings")
	if err != nil {
		return nil, err
	}
	projectDoc, err := r.read(ctx, r.project, "project settings")
	if err != nil {
		return nil, err
	}
	return settings.Merge(userDoc, projectDoc), nil
}

func (r *JSONRepository) Save(ctx context.Context, doc *settings.Document) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to marshal settings", err)
	}
	if err := r.user.Write(ctx, settingsFile, append(data, '\n')); err != nil {
		return cerr.WrapStorageWriteError("settings", err)
	}
	return nil
}

// WatchPaths returns the on-disk files a settings watcher should observe.
func (r *JSONRepository) WatchPaths() []string {
	return []string{
		filepath.Join(r.user.BasePath(), settingsFile),
		filepath.Join(r.project.BasePath(), settingsFile),
	}
}

func (r *JSONRepository) read(ctx context.Context, store *storage.LocalStorage, target string) (*settings.Document, error) {
	data, err := store.Read(ctx, settingsFile)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, cerr.WrapStorageReadError(target, err)
	}
	var doc settings.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		// A document we cannot parse means an unknown permission state.
		// Refuse to start rather than guess.
		return nil, cerr.NewError(cerr.DataLoss, fmt.Sprintf("malformed %s document", target), err)
	}
	return &doc, nil
}
