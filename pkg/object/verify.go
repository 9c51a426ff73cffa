package object

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// ErrCorrupt marks a stored object whose contents do not match its address.
var ErrCorrupt = errors.New("corrupt object")

// VerifySummary reports the outcome of Store.Verify.
type VerifySummary struct {
	LooseObjects int
	Types        map[Type]int
}

// Verify decompresses every loose object, checks its frame and recomputes
// its digest against the path it is stored under.
func (s *Store) Verify() (*VerifySummary, error) {
	report := &VerifySummary{Types: make(map[Type]int)}

	looseHashes, err := s.listLooseObjectHashes()
	if err != nil {
		return nil, err
	}
	for _, h := range looseHashes {
		objType, err := s.readLoose(h)
		if err != nil {
			return nil, fmt.Errorf("verify loose %s: %w", h, err)
		}
		report.LooseObjects++
		report.Types[objType]++
	}
	s.logger.Debug("verified loose objects", zap.Int("count", report.LooseObjects))
	return report, nil
}

func (s *Store) verifyLoose(h Hash) error {
	_, err := s.readLoose(h)
	return err
}

// readLoose loads, inflates and re-hashes the object stored under h.
func (s *Store) readLoose(h Hash) (Type, error) {
	compressed, err := os.ReadFile(s.ObjectPath(h))
	if err != nil {
		return 0, err
	}
	raw, err := decompress(compressed)
	if err != nil {
		return 0, fmt.Errorf("%w: inflate: %v", ErrCorrupt, err)
	}
	objType, _, err := ParseFramed(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if actual := Digest(raw); actual != h {
		return 0, fmt.Errorf("%w: hash mismatch (computed %s)", ErrCorrupt, actual)
	}
	return objType, nil
}

func (s *Store) listLooseObjectHashes() ([]Hash, error) {
	objectsDir := filepath.Join(s.root, "objects")
	fanoutDirs, err := os.ReadDir(objectsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read objects dir: %w", err)
	}

	hashes := make([]Hash, 0)
	for _, fanoutDir := range fanoutDirs {
		if !fanoutDir.IsDir() {
			continue
		}
		prefix := fanoutDir.Name()
		if !isHexHashComponent(prefix, 2) {
			continue
		}

		objectEntries, err := os.ReadDir(filepath.Join(objectsDir, prefix))
		if err != nil {
			return nil, fmt.Errorf("read objects fanout %s: %w", prefix, err)
		}
		for _, objectEntry := range objectEntries {
			if objectEntry.IsDir() {
				continue
			}
			suffix := objectEntry.Name()
			if !isHexHashComponent(suffix, HashSize-2) {
				continue
			}
			hashes = append(hashes, Hash(prefix+suffix))
		}
	}

	sort.Slice(hashes, func(i, j int) bool {
		return hashes[i] < hashes[j]
	})
	return hashes, nil
}
