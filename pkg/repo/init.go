package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrAlreadyExists is returned by Init when the target already holds a
// metadata directory.
var ErrAlreadyExists = errors.New("repository already exists")

const defaultDescription = "Unnamed repository; edit this file 'description' to name the repository.\n"

// Init creates a new repository at path. It creates the .git/ directory
// structure: HEAD, config, description, objects/, refs/heads/ and refs/tags/.
// path itself is created if missing.
func Init(path string, opts ...Option) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("init: abs path: %w", err)
	}
	metaDir := filepath.Join(abs, DirName)

	if _, err := os.Stat(metaDir); err == nil {
		return nil, fmt.Errorf("init: %w at %s", ErrAlreadyExists, metaDir)
	}

	dirs := []string{
		filepath.Join(metaDir, "objects"),
		filepath.Join(metaDir, "refs", "heads"),
		filepath.Join(metaDir, "refs", "tags"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	files := []struct {
		name string
		data string
	}{
		{"HEAD", "ref: refs/heads/main\n"},
		{"description", defaultDescription},
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(metaDir, f.name), []byte(f.data), 0o644); err != nil {
			return nil, fmt.Errorf("init: write %s: %w", f.name, err)
		}
	}

	r := newRepo(abs, opts)
	if err := r.WriteConfig(DefaultConfig()); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return r, nil
}
