package safety

import (
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"dirsweep/internal/model"
)

var ErrInvalidPath = errors.New("invalid path")

// NormalizePath expands ~ and environment references and returns an
// absolute, cleaned path. Symlinks are never resolved here. Only inputs that
// cannot name a path at all (blank, NUL bytes) are rejected.
func NormalizePath(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" || strings.ContainsRune(raw, 0) {
		return "", ErrInvalidPath
	}

	expanded := ExpandUser(ExpandEnv(raw))
	abs, err := filepath.Abs(expanded)
	if err != nil {
		// cwd unavailable; keep a best-effort form so later stages can classify it
		return filepath.Clean(expanded), nil
	}
	return abs, nil
}

// ExpandEnv substitutes $VAR and ${VAR}. Unset variables are left as written.
func ExpandEnv(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	return os.Expand(s, func(name string) string {
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return "${" + name + "}"
	})
}

// ExpandUser replaces a leading ~ or ~user with the matching home directory.
func ExpandUser(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}

	name, rest := p[1:], ""
	if i := strings.IndexFunc(name, isSeparator); i >= 0 {
		name, rest = name[:i], name[i+1:]
	}

	var home string
	if name == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		home = h
	} else {
		u, err := user.Lookup(name)
		if err != nil {
			return p
		}
		home = u.HomeDir
	}

	if rest == "" {
		return home
	}
	return filepath.Join(home, rest)
}

// BuildCandidates normalizes raw inputs in order. With dedupe enabled, later
// inputs that normalize to an already seen path are dropped. Inputs that
// cannot be normalized are kept with an empty Path.
func BuildCandidates(raw []string, dedupe bool) []model.Candidate {
	out := make([]model.Candidate, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for i, r := range raw {
		p, err := NormalizePath(r)
		if err != nil {
			out = append(out, model.Candidate{Index: i, Raw: r})
			continue
		}
		if dedupe {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
		}
		out = append(out, model.Candidate{Index: i, Raw: r, Path: p})
	}
	return out
}

func isSeparator(r rune) bool {
	return r == '/' || r == filepath.Separator
}
