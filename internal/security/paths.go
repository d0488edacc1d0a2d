// Package security guards the file paths that tools write to.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideDir is returned when a path resolves outside its allowed roots.
var ErrOutsideDir = errors.New("path escapes allowed directory")

// canonical resolves p to an absolute path with symlinks evaluated. Missing
// trailing components are kept as written below the deepest existing parent.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", p, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rest, _ := filepath.Rel(dir, abs)
			return filepath.Join(resolved, rest), nil
		}
		if dir == filepath.Dir(dir) {
			return abs, nil
		}
	}
}

// WithinDir reports an error unless path resolves inside root.
func WithinDir(path, root string) error {
	cp, err := canonical(path)
	if err != nil {
		return err
	}
	cr, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", root, err)
	}
	if cr, err = filepath.EvalSymlinks(cr); err != nil {
		return fmt.Errorf("resolve %q: %w", root, err)
	}
	rel, err := filepath.Rel(cr, cp)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s not under %s", ErrOutsideDir, path, root)
	}
	return nil
}

// ValidateOutputPath accepts paths under the working directory or the
// system temp directory.
func ValidateOutputPath(path string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}
	for _, root := range []string{cwd, os.TempDir()} {
		if WithinDir(path, root) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be under %s or %s", ErrOutsideDir, path, cwd, os.TempDir())
}

// SafeFileName maps a free-form label to a file name stem. Runs of
// disallowed characters collapse to one underscore.
func SafeFileName(s string) string {
	const maxLen = 96
	var b strings.Builder
	under := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
			under = false
		case !under:
			b.WriteByte('_')
			under = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "session"
	}
	return out
}
