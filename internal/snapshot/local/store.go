// Package local implements a filesystem snapshot store.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/camilorv/aeropolicy/internal/policy"
)

// Config captures the parameters for the filesystem snapshot store.
type Config struct {
	// BaseDir is the root directory where snapshots are written, one
	// subdirectory per source code.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store writes snapshots as timestamped HTML files. File names sort
// chronologically, so the latest capture is the lexicographic maximum.
type Store struct {
	baseDir string
}

// New validates the base directory and creates it when missing.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	return &Store{baseDir: cfg.BaseDir}, nil
}

// Save writes the snapshot under {code}/{timestamp}_{hash}.html.
func (s *Store) Save(_ context.Context, snap policy.Snapshot) error {
	if snap.SourceCode == "" {
		return fmt.Errorf("source code is required")
	}
	dir := filepath.Join(s.baseDir, sanitize(snap.SourceCode))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create source directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.html", snap.CapturedAt.UTC().Format("20060102T150405"), snap.Hash)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, snap.Payload, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// LatestHash returns the hash embedded in the most recent snapshot file name
// for the source. ok is false when no snapshot exists yet.
func (s *Store) LatestHash(_ context.Context, sourceCode string) (string, bool, error) {
	dir := filepath.Join(s.baseDir, sanitize(sourceCode))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read snapshot directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".html") {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return "", false, nil
	}
	sort.Strings(names)

	latest := names[len(names)-1]
	hash := strings.TrimSuffix(latest, ".html")
	if i := strings.IndexByte(hash, '_'); i >= 0 {
		hash = hash[i+1:]
	}
	if hash == "" {
		return "", false, nil
	}
	return hash, true, nil
}

// sanitize keeps source codes filesystem-safe.
func sanitize(code string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, code)
}
