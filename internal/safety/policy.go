package safety

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"dirsweep/internal/model"
)

// systemRoots are never deleted unless explicitly allowed. Like every
// protected root they are matched exactly, not as prefixes.
var systemRoots = []string{
	"/bin",
	"/boot",
	"/dev",
	"/etc",
	"/lib",
	"/lib64",
	"/proc",
	"/sbin",
	"/sys",
	"/usr",
	"/var",
}

// PolicyOptions configures NewPolicy.
type PolicyOptions struct {
	// RepoRoot is the repository the operator runs from; it is protected.
	RepoRoot string
	// Home overrides the detected home directory (tests).
	Home string
	// ProtectedRoots are extra exact-match protected paths.
	ProtectedRoots []string
	// AllowRoots are exact-match overrides for protected roots.
	AllowRoots []string
	// RestrictTo limits deletions to these subtrees. Empty means no limit.
	RestrictTo []string
}

// Policy is the read-only deletion policy for a run. It is built once and
// shared by every worker.
type Policy struct {
	protected map[string]struct{}
	allowed   map[string]struct{}
	restrict  []string
}

// NewPolicy builds a Policy. Every root is stored both as written
// (absolute, cleaned) and with symlinks resolved, so a candidate matches a
// root in either form.
func NewPolicy(opts PolicyOptions) *Policy {
	home := opts.Home
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}

	protected := []string{string(filepath.Separator)}
	if runtime.GOOS != "windows" {
		protected = append(protected, systemRoots...)
	}
	if home != "" {
		protected = append(protected, home)
	}
	if opts.RepoRoot != "" {
		protected = append(protected, opts.RepoRoot)
	}
	protected = append(protected, opts.ProtectedRoots...)

	return &Policy{
		protected: rootSet(protected),
		allowed:   rootSet(opts.AllowRoots),
		restrict:  normalizeRoots(opts.RestrictTo),
	}
}

// Check returns ReasonNone when the path may be probed and deleted, or the
// policy reason that forbids it. The path is checked as written and again
// with its parent directories resolved, so a symlinked parent cannot lead
// the removal to a protected or restricted directory. The last component is
// never followed; the first veto wins.
func (p *Policy) Check(path string) model.Reason {
	clean := filepath.Clean(path)
	if reason := p.checkForm(clean); reason != model.ReasonNone {
		return reason
	}
	if resolved, ok := resolveParent(clean); ok && resolved != clean {
		return p.checkForm(resolved)
	}
	return model.ReasonNone
}

func (p *Policy) checkForm(path string) model.Reason {
	if len(p.restrict) > 0 && !IsWithinAllowedRoots(path, p.restrict) {
		return model.ReasonPolicyBlocked
	}
	if p.IsProtected(path) {
		return model.ReasonProtectedRoot
	}
	return model.ReasonNone
}

// resolveParent resolves symlinks in every component of path except the
// last. It reports false when the parent cannot be resolved (for example
// because it does not exist).
func resolveParent(path string) (string, bool) {
	if isAnchor(path) {
		return path, false
	}
	parent, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		return "", false
	}
	return filepath.Join(parent, filepath.Base(path)), true
}

// IsProtected reports whether path exactly matches a protected root or a
// volume anchor and has no exact allow override.
func (p *Policy) IsProtected(path string) bool {
	clean := filepath.Clean(path)
	if _, ok := p.allowed[clean]; ok {
		return false
	}
	if _, ok := p.protected[clean]; ok {
		return true
	}
	return isAnchor(clean)
}

// Restricted reports whether a restrict-to set is configured.
func (p *Policy) Restricted() bool {
	return len(p.restrict) > 0
}

// isAnchor reports whether path is a filesystem root or drive anchor.
func isAnchor(path string) bool {
	return path == filepath.VolumeName(path)+string(filepath.Separator)
}

// IsWithinAllowedRoots checks if path is within any allowed root
func IsWithinAllowedRoots(path string, allowedRoots []string) bool {
	p := filepath.Clean(path)
	for _, r := range allowedRoots {
		if hasPathPrefix(p, r) {
			return true
		}
	}
	return false
}

// hasPathPrefix checks if path equals prefix or lies below it
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if path == prefix {
		return true
	}
	if isAnchor(prefix) {
		return strings.HasPrefix(path, prefix)
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}

// rootSet indexes the literal and resolved form of each root.
func rootSet(roots []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roots)*2)
	for _, r := range normalizeRoots(roots) {
		set[r] = struct{}{}
	}
	return set
}

// normalizeRoots converts roots to absolute, cleaned paths and appends the
// symlink-resolved form when it differs.
func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		p, err := NormalizePath(r)
		if err != nil {
			continue
		}
		out = append(out, p)
		if resolved, err := filepath.EvalSymlinks(p); err == nil && resolved != p {
			out = append(out, filepath.Clean(resolved))
		}
	}
	return out
}

// DetectRepoRoot walks up from start to the first directory holding a .git
// entry. It returns start itself when none is found.
func DetectRepoRoot(start string) string {
	abs, err := filepath.Abs(start)
	if err != nil {
		return start
	}
	for dir := abs; ; {
		if _, err := os.Lstat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		dir = parent
	}
}
