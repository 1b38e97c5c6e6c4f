// Package cache provides the file-backed lookup cache that shields the
// enrichment stage from repeat search API calls across runs.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Store is a key→value cache persisted as a single JSON file. The whole
// file is loaded at open and rewritten atomically on Flush, so a crash can
// never leave a partially written cache behind. Values are stored opaquely;
// callers decide what they mean.
type Store struct {
	path string

	mu      sync.RWMutex
	entries map[string]json.RawMessage
	dirty   bool
	hits    int
	misses  int
}

// Open loads the cache at path. A missing file starts an empty cache; a
// corrupt one is discarded with a warning rather than failing the run.
func Open(path string) *Store {
	s := &Store{
		path:    path,
		entries: make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			zap.L().Warn("cache unreadable, starting empty",
				zap.String("path", path),
				zap.Error(err))
		}
		return s
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		zap.L().Warn("cache corrupt, starting empty",
			zap.String("path", path),
			zap.Error(err))
		s.entries = make(map[string]json.RawMessage)
	}

	return s
}

// NormalizeKey canonicalizes a cache key: lowercase, trimmed, with any
// leading URL scheme and www. stripped so https://Example.com and
// example.com collide.
func NormalizeKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.TrimPrefix(k, "http://")
	k = strings.TrimPrefix(k, "https://")
	k = strings.TrimPrefix(k, "www.")
	return k
}

// Get returns the cached value for key, if present.
func (s *Store) Get(key string) (json.RawMessage, bool) {
	k := NormalizeKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	val, ok := s.entries[k]
	if ok {
		s.hits++
	} else {
		s.misses++
	}
	return val, ok
}

// Put stores a value under key. The value is held in memory until Flush.
func (s *Store) Put(key string, val json.RawMessage) {
	k := NormalizeKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[k] = val
	s.dirty = true
}

// Flush writes the cache to disk via a temp file and rename. A clean cache
// is not rewritten.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "cache: marshal")
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return eris.Wrap(err, "cache: create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrap(err, "cache: write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "cache: close temp file")
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "cache: rename")
	}

	s.dirty = false
	return nil
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns the hit and miss counts accumulated since open.
func (s *Store) Stats() (hits, misses int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits, s.misses
}
