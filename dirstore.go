package artifactcache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
)

const (
	// maxNameLen bounds entry file names; longer keys are stored under a
	// digest of the key so that keys over many inputs fit file-name limits.
	maxNameLen = 200

	// tempPattern names in-flight inserts. Stats and Entries skip them.
	tempPattern = ".artcache-*.tmp"
	tempPrefix  = ".artcache-"

	// emptyPrefixDir holds keys whose prefix is empty. A prefix never
	// contains the delimiter, so no real prefix maps to it.
	emptyPrefixDir = Delimiter
)

// DirStore is a Store kept in a directory, shareable between processes.
//
// Layout:
//
//	<root>/
//	└── <key prefix>/
//	    └── <2 hex chars of xxhash(key)>/
//	        └── <key>
type DirStore struct {
	root   string
	fs     afero.Fs
	logger log.Logger
}

// NewDirStore opens the store rooted at root, creating the directory if needed.
func NewDirStore(root string, opts ...Option) (*DirStore, error) {
	o := newOptions(opts)
	s := &DirStore{
		root:   root,
		fs:     o.fs,
		logger: o.logger,
	}
	if err := s.fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return s, nil
}

// Root returns the store directory.
func (s *DirStore) Root() string {
	return s.root
}

// PrepareDestination implements Store.
func (s *DirStore) PrepareDestination(path string) error {
	return prepareDestination(s.fs, path)
}

// Exists implements Store.
func (s *DirStore) Exists(key Key) (bool, error) {
	path, err := s.entryPath(key)
	if err != nil {
		return false, err
	}
	info, err := s.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat entry: %w", err)
	}
	return !info.IsDir(), nil
}

// CopyFromCache implements Store.
func (s *DirStore) CopyFromCache(key Key, dst string) error {
	path, err := s.entryPath(key)
	if err != nil {
		return err
	}
	exists, err := s.Exists(key)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return copyFile(s.fs, path, dst)
}

// CopyToCache implements Store. The content is written to a temporary file
// next to the entry and renamed into place, so readers see either no entry
// or a complete one. Concurrent writers of the same key race and the last
// rename wins.
func (s *DirStore) CopyToCache(src string, key Key) error {
	path, err := s.entryPath(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create entry directory: %w", err)
	}

	srcFile, err := s.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer srcFile.Close()

	tmp, err := afero.TempFile(s.fs, dir, tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := copyBuffered(tmp, srcFile); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := s.fs.Chmod(tmpPath, 0o644); err != nil {
		_ = s.fs.Remove(tmpPath)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}

	if err := s.fs.Rename(tmpPath, path); err != nil {
		_ = s.fs.Remove(tmpPath)
		if exists, _ := afero.Exists(s.fs, path); exists {
			level.Debug(s.logger).Log("msg", "entry written concurrently", "key", key)
			return nil
		}
		return fmt.Errorf("failed to rename entry: %w", err)
	}
	return nil
}

// entryPath maps key to its file.
func (s *DirStore) entryPath(key Key) (string, error) {
	if !key.Cacheable() {
		return "", errors.New("uncacheable key has no entry")
	}
	name := key.String()
	if strings.ContainsAny(name, `/\`) || name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("invalid key %q", name)
	}

	prefix := key.Prefix()
	switch prefix {
	case ".", "..":
		return "", fmt.Errorf("invalid key prefix %q", prefix)
	case "":
		prefix = emptyPrefixDir
	}
	shard := fmt.Sprintf("%02x", xxhash.Sum64String(name)&0xff)
	if len(name) > maxNameLen {
		name = key.Prefix() + Delimiter + digest.SHA256.FromString(name).Encoded()
	}

	path := filepath.Join(s.root, prefix, shard, name)
	rel, err := filepath.Rel(s.root, path)
	if err != nil || strings.Count(filepath.ToSlash(rel), "/") != 2 || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return path, nil
}
