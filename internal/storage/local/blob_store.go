// Package local implements the filesystem content store for samples.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/maltrieve/internal/storage"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// Dir is the dump directory samples are written into.
	Dir string `mapstructure:"dump_dir" yaml:"dump_dir"`
}

// Store writes samples to <Dir>/<hash>.
type Store struct {
	dir string
}

// New creates a filesystem-backed store after making sure the directory exists
// and accepts writes.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("dump directory is required")
	}

	info, err := os.Stat(cfg.Dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat dump directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.Dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create dump directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("dump directory path is not a directory")
	}

	probe, err := os.CreateTemp(cfg.Dir, ".writable_test")
	if err != nil {
		return nil, fmt.Errorf("dump directory is not writable: %w", err)
	}
	probeName := probe.Name()
	if err := probe.Close(); err != nil {
		return nil, fmt.Errorf("failed to close probe file: %w", err)
	}
	if err := os.Remove(probeName); err != nil {
		return nil, fmt.Errorf("failed to clean up probe file: %w", err)
	}

	return &Store{dir: cfg.Dir}, nil
}

// Dir returns the dump directory.
func (s *Store) Dir() string {
	return s.dir
}

// Store writes data under its hash and returns the file path. An existing
// file for the hash is left untouched: equal hashes mean equal bytes.
func (s *Store) Store(_ context.Context, hash string, data []byte) (string, error) {
	if err := storage.ValidateHash(hash); err != nil {
		return "", err
	}
	// The directory may have been removed since New; MkdirAll is a no-op when
	// it exists, including when another worker just created it.
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create dump directory: %w", err)
	}

	fullPath := filepath.Join(s.dir, hash)
	if info, err := os.Stat(fullPath); err == nil && info.Mode().IsRegular() {
		return fullPath, nil
	}

	tmp, err := os.CreateTemp(s.dir, "."+hash+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}
	return fullPath, nil
}

// Remove deletes the stored copy of hash. A missing file is not an error.
func (s *Store) Remove(_ context.Context, hash string) error {
	if err := storage.ValidateHash(hash); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, hash)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}
