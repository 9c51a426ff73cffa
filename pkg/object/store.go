package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zlib"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrDigestMismatch is returned when a digest handed to Persist was not
// computed from the framed object it accompanies.
var ErrDigestMismatch = errors.New("digest does not match framed object")

// WriteError records a failed filesystem step while persisting an object.
type WriteError struct {
	Op   string // "compress", "mkdir", "write", "rename", ...
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("object %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WriteResult describes a persisted object.
type WriteResult struct {
	Hash Hash
	Path string
	// Bytes is the size of the compressed object at Path.
	Bytes int
	// Reused is set when a valid copy was already on disk and no write happened.
	Reused bool
}

// Store is a content-addressed object store with a 2-character fan-out
// directory layout: objects/ab/cdef0123...
type Store struct {
	root   string
	logger *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for write and verify diagnostics.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a Store rooted at the given directory, normally the
// repository metadata directory. The objects/ subdirectory is created lazily
// on first write.
func NewStore(root string, opts ...StoreOption) *Store {
	s := &Store{root: root, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the directory the store was opened on.
func (s *Store) Root() string {
	return s.root
}

// ObjectPath returns root/objects/<first 2 hex>/<remaining 38 hex>. h must be
// a full digest, as produced by Digest or ParseHash.
func ObjectPath(root string, h Hash) string {
	return filepath.Join(root, "objects", string(h[:2]), string(h[2:]))
}

// ObjectPath returns the filesystem path for a given hash.
func (s *Store) ObjectPath(h Hash) string {
	return ObjectPath(s.root, h)
}

// Has reports whether the store contains an object with the given hash.
// Malformed hashes are never present.
func (s *Store) Has(h Hash) bool {
	if !isHexHashComponent(string(h), HashSize) {
		return false
	}
	_, err := os.Stat(s.ObjectPath(h))
	return err == nil
}

// Write frames data as objType and persists it.
func (s *Store) Write(objType Type, data []byte) (*WriteResult, error) {
	f := Encode(objType, data)
	return s.Persist(f, f.Digest())
}

// Persist zlib-compresses the whole framed object and stores it at the path
// derived from h. An existing object is only kept when it decompresses and
// hashes back to h; anything else at that path is replaced. Writes are atomic:
// data is written to a temp file in the shard directory and renamed into place.
func (s *Store) Persist(f Framed, h Hash) (*WriteResult, error) {
	if actual := f.Digest(); actual != h {
		return nil, fmt.Errorf("persist %s: %w (computed %s)", h, ErrDigestMismatch, actual)
	}
	dest := s.ObjectPath(h)

	// Fast path: a verified copy already exists.
	if info, err := os.Stat(dest); err == nil && info.Mode().IsRegular() {
		verr := s.verifyLoose(h)
		if verr == nil {
			s.logger.Debug("object already stored", zap.String("hash", string(h)), zap.String("path", dest))
			return &WriteResult{Hash: h, Path: dest, Bytes: int(info.Size()), Reused: true}, nil
		}
		s.logger.Warn("replacing damaged object", zap.String("path", dest), zap.Error(verr))
	}

	compressed, err := compress(f)
	if err != nil {
		return nil, &WriteError{Op: "compress", Path: dest, Err: err}
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &WriteError{Op: "mkdir", Path: dir, Err: err}
	}

	if err := writeFileAtomic(dir, dest, compressed); err != nil {
		return nil, err
	}

	s.logger.Debug("object written",
		zap.String("hash", string(h)),
		zap.String("path", dest),
		zap.Int("bytes", len(compressed)),
	)
	return &WriteResult{Hash: h, Path: dest, Bytes: len(compressed)}, nil
}

func writeFileAtomic(dir, dest string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return &WriteError{Op: "tmpfile", Path: dir, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			err = multierr.Append(err, removeIfExists(tmpName))
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return &WriteError{Op: "write", Path: tmpName, Err: multierr.Append(err, tmp.Close())}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Chmod(tmpName, 0o444); err != nil {
		return &WriteError{Op: "chmod", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return &WriteError{Op: "rename", Path: dest, Err: err}
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func compress(f Framed) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(f); err != nil {
		return nil, multierr.Append(err, zw.Close())
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, multierr.Append(err, zr.Close())
	}
	return out, zr.Close()
}
