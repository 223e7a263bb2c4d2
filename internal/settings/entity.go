package settings

import (
	"slices"

	"github.com/kazz187/agentgate/internal/permission"
)

// Document is the persisted settings document. It is loaded by merging a
// user-level file and a project-level file, project entries overriding user
// entries key-by-key.
type Document struct {
	Mode        string          `json:"mode,omitempty"`
	Permissions *permission.Set `json:"permissions,omitempty"`
	ToolServers []string        `json:"tool_servers,omitempty"`
}

// Merge overlays project onto user, key by key. Either side may be nil.
func Merge(user, project *Document) *Document {
	if user == nil {
		user = &Document{}
	}
	merged := &Document{
		Mode:        user.Mode,
		Permissions: user.Permissions,
		ToolServers: slices.Clone(user.ToolServers),
	}
	if project == nil {
		return merged
	}
	if project.Mode != "" {
		merged.Mode = project.Mode
	}
	if project.Permissions != nil {
		merged.Permissions = project.Permissions
	}
	if project.ToolServers != nil {
		merged.ToolServers = slices.Clone(project.ToolServers)
	}
	return merged
}
