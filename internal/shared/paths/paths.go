package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName means a name cannot be used as a single path element
var ErrInvalidName = errors.New("invalid name")

// Layout holds the directories the server persists to. Empty entries are
// in-memory only.
type Layout struct {
	Reports    string
	Blueprints string
}

// Directories returns the configured, non-empty directories
func (l Layout) Directories() []string {
	var dirs []string
	for _, d := range []string{l.Reports, l.Blueprints} {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// Ensure creates every configured directory
func (l Layout) Ensure() error {
	for _, d := range l.Directories() {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// ValidateName checks name is usable as a file name inside a managed directory
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(name) > 128:
		return fmt.Errorf("%w: longer than 128 characters", ErrInvalidName)
	case strings.ContainsAny(name, `/\`) || strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q contains path separators", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q is hidden", ErrInvalidName, name)
	case filepath.Base(name) != name:
		return fmt.Errorf("%w: %q is not a single path element", ErrInvalidName, name)
	}
	return nil
}

// Join validates name and joins it, with ext appended, under dir
func Join(dir, name, ext string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(dir, name+ext), nil
}

// Within reports whether path lies inside root
func Within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// WriteAtomic writes data to a temp file beside path and renames it into place
func WriteAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
