package permission

import (
	"path/filepath"
	"slices"
)

// Set holds the operator's persisted permission rules: a global allow-list,
// a global deny-list, and per-project remembered commands. Keys of
// AllowedCmds are absolute project directory paths.
type Set struct {
	Allow       []string            `json:"allow"`
	Deny        []string            `json:"deny"`
	AllowedCmds map[string][]string `json:"allowed_cmds"`
}

// NewSet returns an empty permission set with initialized collections.
func NewSet() *Set {
	return &Set{
		Allow:       []string{},
		Deny:        []string{},
		AllowedCmds: map[string][]string{},
	}
}

// IsDenied reports whether the target is on the deny-list.
// Deny always wins: callers must check it before any allow lookup.
func (s *Set) IsDenied(target string) bool {
	return slices.Contains(s.Deny, target)
}

// IsAllowed reports whether the target is on the allow-list or remembered
// for the given project directory.
func (s *Set) IsAllowed(target, projectDir string) bool {
	if slices.Contains(s.Allow, target) {
		return true
	}
	key, err := projectKey(projectDir)
	if err != nil {
		return false
	}
	return slices.Contains(s.AllowedCmds[key], target)
}

// Remember records the target as approved for unattended reuse within the
// given project.
func (s *Set) Remember(target, projectDir string) error {
	key, err := projectKey(projectDir)
	if err != nil {
		return err
	}
	if s.AllowedCmds == nil {
		s.AllowedCmds = map[string][]string{}
	}
	if slices.Contains(s.AllowedCmds[key], target) {
		return nil
	}
	s.AllowedCmds[key] = append(s.AllowedCmds[key], target)
	return nil
}

// AddAllow puts the target on the global allow-list.
func (s *Set) AddAllow(target string) {
	if !slices.Contains(s.Allow, target) {
		s.Allow = append(s.Allow, target)
	}
}

// AddDeny puts the target on the global deny-list. Deny entries beat every
// allow entry, so adding one here disables the target everywhere.
func (s *Set) AddDeny(target string) {
	if !slices.Contains(s.Deny, target) {
		s.Deny = append(s.Deny, target)
	}
}

// Forget removes a remembered target from the given project.
func (s *Set) Forget(target, projectDir string) error {
	key, err := projectKey(projectDir)
	if err != nil {
		return err
	}
	cmds := s.AllowedCmds[key]
	if idx := slices.Index(cmds, target); idx >= 0 {
		s.AllowedCmds[key] = slices.Delete(cmds, idx, idx+1)
	}
	return nil
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	clone := &Set{
		Allow:       slices.Clone(s.Allow),
		Deny:        slices.Clone(s.Deny),
		AllowedCmds: make(map[string][]string, len(s.AllowedCmds)),
	}
	for k, v := range s.AllowedCmds {
		clone.AllowedCmds[k] = slices.Clone(v)
	}
	return clone
}

// projectKey normalizes a project directory to its absolute form.
// Relative keys must never reach the persisted document.
func projectKey(projectDir string) (string, error) {
	return filepath.Abs(projectDir)
}
