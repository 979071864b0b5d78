package artifactcache

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/spf13/afero"
)

// MemStore is a Store that keeps entries in memory. Destinations and
// sources are still files on its filesystem.
type MemStore struct {
	fs      afero.Fs
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemStore creates an empty MemStore. Without WithFs it uses an
// in-memory filesystem.
func NewMemStore(opts ...Option) *MemStore {
	fs := afero.Fs(afero.NewMemMapFs())
	o := options{fs: fs}
	for _, opt := range opts {
		opt(&o)
	}
	return &MemStore{
		fs:      o.fs,
		entries: make(map[string][]byte),
	}
}

// Fs returns the filesystem used for destinations and sources.
func (s *MemStore) Fs() afero.Fs {
	return s.fs
}

// Len returns the number of entries.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entry returns a copy of the content stored under key.
func (s *MemStore) Entry(key Key) ([]byte, bool) {
	if !key.Cacheable() {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.entries[key.String()]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// PrepareDestination implements Store.
func (s *MemStore) PrepareDestination(path string) error {
	return prepareDestination(s.fs, path)
}

// Exists implements Store.
func (s *MemStore) Exists(key Key) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key.String()]
	return ok && key.Cacheable(), nil
}

// CopyFromCache implements Store.
func (s *MemStore) CopyFromCache(key Key, dst string) error {
	s.mu.RLock()
	data, ok := s.entries[key.String()]
	s.mu.RUnlock()
	if !ok || !key.Cacheable() {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}

	f, err := s.fs.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	if err := copyBuffered(f, bytes.NewReader(data)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CopyToCache implements Store.
func (s *MemStore) CopyToCache(src string, key Key) error {
	if !key.Cacheable() {
		return fmt.Errorf("cannot store under %s", key)
	}
	data, err := afero.ReadFile(s.fs, src)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key.String()] = data
	return nil
}
