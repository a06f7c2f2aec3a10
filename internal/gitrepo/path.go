package gitrepo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"graderservice/internal/errdefs"
)

// reserved names are entries of a bare repository. A submission repository
// lives inside the release repository directory, so usernames may not
// shadow them.
var reserved = map[string]struct{}{
	"HEAD":        {},
	"config":      {},
	"description": {},
	"hooks":       {},
	"info":        {},
	"objects":     {},
	"refs":        {},
	"branches":    {},
	"logs":        {},
	"packed-refs": {},
	"shallow":     {},
	"worktrees":   {},
}

const maxSegmentLen = 255

// ValidSegment reports whether s can be used as a single path component.
func ValidSegment(s string) bool {
	if s == "" || len(s) > maxSegmentLen || strings.HasPrefix(s, ".") {
		return false
	}
	return !strings.ContainsAny(s, "/\\\x00")
}

func validOwner(s string) bool {
	if !ValidSegment(s) {
		return false
	}
	_, isReserved := reserved[s]
	return !isReserved
}

// Within resolves symlinks in path and returns the result if it is a
// strict descendant of base. base must already be symlink free.
// Components of path that do not exist yet are kept verbatim.
func Within(base, path string) (string, error) {
	resolved, err := evalExisting(path)
	if err != nil {
		return "", err
	}
	if !isStrictDescendant(base, resolved) {
		return "", fmt.Errorf("%w: %s", errdefs.ErrPathEscape, path)
	}
	return resolved, nil
}

func isStrictDescendant(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || filepath.IsAbs(rel) {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func evalExisting(path string) (string, error) {
	path = filepath.Clean(path)
	cur := path
	var rest []string
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		// a dangling symlink would be followed on creation
		if _, lerr := os.Lstat(cur); lerr == nil {
			return "", fmt.Errorf("%w: dangling link %s", errdefs.ErrPathEscape, cur)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return path, nil
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}
