package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/odvcencio/rit/pkg/object"
	"go.uber.org/zap"
)

// DirName is the metadata directory that marks a repository root.
const DirName = ".git"

// ErrNotFound is returned when no ancestor of the starting directory holds a
// metadata directory.
var ErrNotFound = errors.New("not a repository (or any parent up to /)")

// Repo represents an opened repository.
type Repo struct {
	RootDir string        // working directory root
	MetaDir string        // .git/ directory
	Store   *object.Store // content-addressed object store
}

// Option configures how a Repo is opened.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger passes logger down to the repository's object store.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newRepo(root string, opts []Option) *Repo {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	metaDir := filepath.Join(root, DirName)
	return &Repo{
		RootDir: root,
		MetaDir: metaDir,
		Store:   object.NewStore(metaDir, object.WithLogger(o.logger)),
	}
}

// Locate searches upward from start for a directory containing a name
// subdirectory and returns that directory. An empty start means the current
// directory. start is made absolute and symlink-resolved before the first
// check; failing to do so is an error of its own, distinct from ErrNotFound.
func Locate(start, name string) (string, error) {
	if start == "" {
		start = "."
	}
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("locate: abs path: %w", err)
	}
	cur, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("locate: resolve %s: %w", abs, err)
	}

	for {
		info, err := os.Stat(filepath.Join(cur, name))
		if err == nil && info.IsDir() {
			return cur, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return "", fmt.Errorf("locate %s: %w", abs, ErrNotFound)
		}
		cur = parent
	}
}

// Open searches upward from path for a .git/ directory and opens the
// repository.
func Open(path string, opts ...Option) (*Repo, error) {
	root, err := Locate(path, DirName)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return newRepo(root, opts), nil
}
