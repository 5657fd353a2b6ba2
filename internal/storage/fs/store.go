// Package fs implements scraper.Storage on the local filesystem.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/hash/sha256"
	"github.com/giorgikuloshvili-boop/Web-Scraper/internal/scraper"
)

// Config captures the parameters for the filesystem store.
type Config struct {
	// BaseDir is the root directory where Markdown files are written.
	BaseDir string `mapstructure:"base_dir"`
	// Prefix is an optional subdirectory under BaseDir.
	Prefix string `mapstructure:"prefix"`
}

// Store writes one Markdown file per page under a per-job directory.
// Filenames are the SHA-256 of the page URL, so reruns overwrite rather
// than accumulate.
type Store struct {
	baseDir string
	prefix  string
	hasher  *sha256.Hasher
}

// New creates a filesystem store rooted at cfg.BaseDir, creating the
// directory if needed and verifying it is writable.
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

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("clean up test file: %w", err)
	}

	return &Store{
		baseDir: cfg.BaseDir,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		hasher:  sha256.New(),
	}, nil
}

// Store writes the Markdown output for pageURL under the job's directory.
func (s *Store) Store(_ context.Context, jobID string, pageURL string, markdown string) error {
	if strings.TrimSpace(jobID) == "" {
		return &scraper.StorageError{URL: pageURL, Err: fmt.Errorf("job id is required")}
	}

	name := s.hasher.Hash([]byte(pageURL)) + ".md"
	fullPath := filepath.Join(s.baseDir, s.prefix, jobID, name)

	// Verify the cleaned path stays inside baseDir.
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBase+string(filepath.Separator)) {
		return &scraper.StorageError{URL: pageURL, Err: fmt.Errorf("path escapes base directory")}
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return &scraper.StorageError{URL: pageURL, Err: fmt.Errorf("create job directory: %w", err)}
	}
	if err := os.WriteFile(fullPath, []byte(markdown), 0o600); err != nil {
		return &scraper.StorageError{URL: pageURL, Err: fmt.Errorf("write file: %w", err)}
	}
	return nil
}

// PathFor returns the file path a page would be stored at. Exposed for
// diagnostics and tests.
func (s *Store) PathFor(jobID, pageURL string) string {
	return filepath.Join(s.baseDir, s.prefix, jobID, s.hasher.Hash([]byte(pageURL))+".md")
}
