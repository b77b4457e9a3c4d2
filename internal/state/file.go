package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FileStore keeps each set in its own JSON file as a sorted array of strings.
type FileStore struct {
	urlsPath   string
	hashesPath string
	logger     *zap.Logger
}

// NewFileStore constructs a FileStore for the given paths.
func NewFileStore(urlsPath, hashesPath string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		urlsPath:   urlsPath,
		hashesPath: hashesPath,
		logger:     logger,
	}
}

// Load reads both files. Missing, legacy and malformed files all yield an
// empty set; only the log records which one it was.
func (s *FileStore) Load(_ context.Context) (Snapshot, error) {
	return Snapshot{
		URLs:   s.loadList(s.urlsPath),
		Hashes: s.loadList(s.hashesPath),
	}, nil
}

// Save writes each non-empty set to its file, sorted.
func (s *FileStore) Save(_ context.Context, snap Snapshot) error {
	if len(snap.URLs) > 0 {
		s.logger.Info("dumping past URLs to file", zap.String("path", s.urlsPath), zap.Int("count", len(snap.URLs)))
		if err := writeList(s.urlsPath, snap.URLs); err != nil {
			return fmt.Errorf("save urls: %w", err)
		}
	}
	if len(snap.Hashes) > 0 {
		s.logger.Info("dumping hashes to file", zap.String("path", s.hashesPath), zap.Int("count", len(snap.Hashes)))
		if err := writeList(s.hashesPath, snap.Hashes); err != nil {
			return fmt.Errorf("save hashes: %w", err)
		}
	}
	return nil
}

func (s *FileStore) loadList(path string) []string {
	log := s.logger.With(zap.String("path", path))
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if legacy := legacyPath(path); legacy != "" && fileExists(legacy) {
				log.Warn("legacy pickle state is not readable; starting with an empty set", zap.String("legacy_path", legacy))
			}
			return nil
		}
		log.Warn("cannot read state file; starting with an empty set", zap.Error(err))
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		log.Warn("malformed state file; starting with an empty set", zap.Error(err))
		return nil
	}
	log.Info("loaded state", zap.Int("count", len(items)))
	return items
}

// writeList replaces path atomically so an interrupted save never leaves a
// truncated file behind.
func writeList(path string, items []string) error {
	data, err := json.MarshalIndent(sortedCopy(items), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// legacyPath maps urls.json to the urls.obj pickle older releases wrote.
func legacyPath(path string) string {
	if !strings.HasSuffix(path, ".json") {
		return ""
	}
	return strings.TrimSuffix(path, ".json") + ".obj"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
