// Package memory implements scraper.Storage in process memory, for tests
// and local development.
package memory

import (
	"context"
	"sync"
)

// Store keeps converted Markdown keyed by job ID and page URL.
type Store struct {
	mu    sync.RWMutex
	pages map[string]map[string]string
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{pages: make(map[string]map[string]string)}
}

// Store records the Markdown output for pageURL under jobID.
func (s *Store) Store(_ context.Context, jobID string, pageURL string, markdown string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pages[jobID] == nil {
		s.pages[jobID] = make(map[string]string)
	}
	s.pages[jobID][pageURL] = markdown
	return nil
}

// Get returns the stored Markdown for a page, if present.
func (s *Store) Get(jobID, pageURL string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, ok := s.pages[jobID][pageURL]
	return md, ok
}

// Count returns how many pages are stored for a job.
func (s *Store) Count(jobID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages[jobID])
}
