package repositoryimpl

import (
	"context"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/agentgate/internal/toolserver"
	"github.com/kazz187/agentgate/pkg/cerr"
	"github.com/kazz187/agentgate/pkg/storage"
)

const toolServersPrefix = "toolservers"

// YAMLRepository stores tool server definitions as YAML files keyed by name.
type YAMLRepository struct {
	storage storage.Storage
}

// NewYAMLRepository creates a new YAML-backed tool server repository.
func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

func defPath(name string) string {
	return fmt.Sprintf("%s/%s.yaml", toolServersPrefix, name)
}

func (r *YAMLRepository) Get(ctx context.Context, name string) (*toolserver.Definition, error) {
	data, err := r.storage.Read(ctx, defPath(name))
	if err != nil {
		return nil, cerr.WrapStorageReadError("tool server", err)
	}
	var def toolserver.Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, cerr.NewError(cerr.Internal, "failed to unmarshal tool server", err)
	}
	if def.Name == "" {
		def.Name = name
	}
	return &def, nil
}

func (r *YAMLRepository) List(ctx context.Context) ([]*toolserver.Definition, error) {
	paths, err := r.storage.List(ctx, toolServersPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("tool servers", err)
	}
	var defs []*toolserver.Definition
	for _, p := range paths {
		base := path.Base(p)
		if !strings.HasSuffix(base, ".yaml") {
			continue
		}
		def, err := r.Get(ctx, strings.TrimSuffix(base, ".yaml"))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (r *YAMLRepository) Upsert(ctx context.Context, def *toolserver.Definition) error {
	if def.Name == "" {
		return cerr.NewError(cerr.InvalidArgument, "tool server requires a name", nil)
	}
	data, err := yaml.Marshal(def)
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to marshal tool server", err)
	}
	if err := r.storage.Write(ctx, defPath(def.Name), data); err != nil {
		return cerr.WrapStorageWriteError("tool server", err)
	}
	return nil
}
