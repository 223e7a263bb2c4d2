// Package pathguard gives a static allow/deny verdict on a filesystem path
// plus operation kind, independent of stored permissions. Paths are resolved
// to canonical absolute form before checking so traversal spellings and
// symlinks cannot dodge the restricted roots. Resolution failures deny.
package pathguard

import (
	"os"
	"path/filepath"
	"strings"
)

type Operation int32

const (
	OpRead Operation = iota
	OpWrite
	OpList
	OpSearch
)

func (o Operation) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpList:
		return "list"
	case OpSearch:
		return "search"
	default:
		return "unknown"
	}
}

// MaxWriteSize caps the size of an existing file that may be overwritten.
const MaxWriteSize = 100 * 1024 * 1024

var defaultRestrictedRoots = []string{
	"/etc", "/bin", "/sbin", "/usr/bin", "/usr/sbin",
	"/boot", "/dev", "/proc", "/sys", "/root",
	`C:\Windows`, `C:\Program Files`, `C:\System32`,
}

var defaultAllowedExtensions = map[string]struct{}{
	".txt": {}, ".md": {}, ".py": {}, ".js": {}, ".json": {},
	".yaml": {}, ".yml": {}, ".toml": {}, ".ini": {}, ".cfg": {},
	".conf": {}, ".log": {}, ".csv": {}, ".go": {},
}

// Guardian checks file operations against restricted roots, an extension
// allow-list, and a write size cap.
type Guardian struct {
	restrictedRoots   []string
	allowedExtensions map[string]struct{}
	maxWriteSize      int64
}

// Option configures a Guardian.
type Option func(*Guardian)

// WithRestrictedRoots replaces the restricted root set.
func WithRestrictedRoots(roots []string) Option {
	return func(g *Guardian) { g.restrictedRoots = roots }
}

// WithAllowedExtensions replaces the extension allow-list for read/write.
func WithAllowedExtensions(exts []string) Option {
	return func(g *Guardian) {
		g.allowedExtensions = make(map[string]struct{}, len(exts))
		for _, ext := range exts {
			g.allowedExtensions[strings.ToLower(ext)] = struct{}{}
		}
	}
}

// WithMaxWriteSize replaces the existing-target size cap for writes.
func WithMaxWriteSize(n int64) Option {
	return func(g *Guardian) { g.maxWriteSize = n }
}

func NewGuardian(opts ...Option) *Guardian {
	g := &Guardian{
		restrictedRoots:   defaultRestrictedRoots,
		allowedExtensions: defaultAllowedExtensions,
		maxWriteSize:      MaxWriteSize,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsAllowed reports whether the operation on path passes the static checks.
func (g *Guardian) IsAllowed(path string, op Operation) bool {
	_, allowed := g.Explain(path, op)
	return allowed
}

// Explain returns the name of the rule that denied the operation, or ok=true.
func (g *Guardian) Explain(path string, op Operation) (rule string, allowed bool) {
	resolved, err := canonicalize(path)
	if err != nil {
		// Fail closed on any resolution error.
		return "resolution_failed", false
	}

	for _, root := range g.restrictedRoots {
		if isUnder(resolved, root) {
			return "restricted_path", false
		}
	}

	if op == OpRead || op == OpWrite {
		ext := strings.ToLower(filepath.Ext(resolved))
		if _, ok := g.allowedExtensions[ext]; !ok {
			return "extension_not_allowed", false
		}
	}

	if op == OpWrite {
		info, err := os.Stat(resolved)
		switch {
		case err == nil:
			if info.Size() > g.maxWriteSize {
				return "target_too_large", false
			}
		case os.IsNotExist(err):
			// Creating a new file is fine.
		default:
			return "resolution_failed", false
		}
	}

	return "", true
}

// canonicalize resolves path to its canonical absolute form. For targets that
// do not exist yet (new files under write), the nearest existing ancestor is
// resolved and the remainder re-joined, so `..` and symlink tricks in the
// existing part still collapse.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	// Walk up to the nearest existing ancestor.
	dir := abs
	var tail []string
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		tail = append([]string{filepath.Base(dir)}, tail...)
		dir = parent
		resolved, err = filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}
	return abs, nil
}

// isUnder reports whether path equals root or sits beneath it.
func isUnder(path, root string) bool {
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}
