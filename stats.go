package artifactcache

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Stats summarizes the content of a DirStore.
type Stats struct {
	Entries   int                    // Total number of entries
	TotalSize int64                  // Total size of all entries in bytes
	Prefixes  map[string]PrefixStats // Per key prefix
}

// PrefixStats summarizes the entries under one key prefix.
type PrefixStats struct {
	Entries   int
	TotalSize int64
}

// Entry describes one stored artifact.
type Entry struct {
	Prefix  string
	Name    string
	Size    int64
	ModTime time.Time
}

// Stats returns statistics about the store.
func (s *DirStore) Stats() (Stats, error) {
	stats := Stats{Prefixes: make(map[string]PrefixStats)}

	err := s.walkEntries(func(e Entry) error {
		stats.Entries++
		stats.TotalSize += e.Size

		p := stats.Prefixes[e.Prefix]
		p.Entries++
		p.TotalSize += e.Size
		stats.Prefixes[e.Prefix] = p
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Entries lists all entries sorted by prefix, then name.
func (s *DirStore) Entries() ([]Entry, error) {
	var entries []Entry
	err := s.walkEntries(func(e Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Prefix != entries[j].Prefix {
			return entries[i].Prefix < entries[j].Prefix
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

// walkEntries calls fn for every entry file at <root>/<prefix>/<shard>/<name>.
func (s *DirStore) walkEntries(fn func(e Entry) error) error {
	return afero.Walk(s.fs, s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip directories
		if info.IsDir() {
			return nil
		}

		// Skip inserts still in flight or abandoned by a crash
		if strings.HasPrefix(info.Name(), tempPrefix) {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 3 {
			return nil
		}

		prefix := parts[0]
		if prefix == emptyPrefixDir {
			prefix = ""
		}
		return fn(Entry{
			Prefix:  prefix,
			Name:    parts[2],
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	})
}
