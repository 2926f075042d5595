// Package native provides the stateless path and filesystem helpers behind
// the path.* and fs.* operations.
package native

import (
	"fmt"
	"os"
	"path/filepath"
)

// Separator is the platform path separator as a string.
func Separator() string {
	return string(filepath.Separator)
}

// Join joins path elements with the platform separator and cleans the
// result. Empty elements are ignored.
func Join(elem ...string) string {
	return filepath.Join(elem...)
}

// Relative returns the lexical path from base to target. Both are made
// absolute against the working directory first. Identical paths yield "".
func Relative(base, target string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", base, err)
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", target, err)
	}
	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", nil
	}
	return rel, nil
}

// Dirname returns the parent directory of p, or "" when p has none
// (a bare name, a filesystem root or the empty string).
func Dirname(p string) string {
	if p == "" {
		return ""
	}
	clean := filepath.Clean(p)
	dir := filepath.Dir(clean)
	if dir == "." || dir == clean {
		return ""
	}
	return dir
}

// Exists reports whether p names an existing file or directory, following
// symlinks.
func Exists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}

// Mkdir creates a single directory. Callers of fs.mkdirSync ignore the error.
func Mkdir(p string) error {
	return os.Mkdir(p, 0o755) //nolint:gosec // project directories are user-readable
}

// RootPath returns the directory the running executable was installed in.
func RootPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
