package artifactcache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
)

func newTestDirStore(t *testing.T) (*DirStore, afero.Fs) {
	t.Helper()
	memFs := afero.NewMemMapFs()
	store, err := NewDirStore("/cache", WithFs(memFs))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store, memFs
}

func TestDirStore_RoundTrip(t *testing.T) {
	store, memFs := newTestDirStore(t)
	key := NewKey("dex-" + sha256Hex("X"))
	content := "OUT\x00\xff binary"

	exists, err := store.Exists(key)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Fatalf("Exists() = true on an empty store")
	}

	writeFile(t, memFs, "/work/classes.dex", content)
	if err := store.CopyToCache("/work/classes.dex", key); err != nil {
		t.Fatalf("CopyToCache() error = %v", err)
	}

	exists, err = store.Exists(key)
	if err != nil || !exists {
		t.Fatalf("Exists() = %v, %v after insert", exists, err)
	}

	if err := store.PrepareDestination("/other/dir/classes.dex"); err != nil {
		t.Fatalf("PrepareDestination() error = %v", err)
	}
	if err := store.CopyFromCache(key, "/other/dir/classes.dex"); err != nil {
		t.Fatalf("CopyFromCache() error = %v", err)
	}
	if got := readFile(t, memFs, "/other/dir/classes.dex"); got != content {
		t.Errorf("Copied content = %q, want %q", got, content)
	}
}

func TestDirStore_Layout(t *testing.T) {
	store, memFs := newTestDirStore(t)
	key := NewKey("dex-abc")
	writeFile(t, memFs, "/work/out", "OUT")

	if err := store.CopyToCache("/work/out", key); err != nil {
		t.Fatalf("CopyToCache() error = %v", err)
	}

	path, err := store.entryPath(key)
	if err != nil {
		t.Fatalf("entryPath() error = %v", err)
	}
	rel, _ := filepath.Rel("/cache", path)
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 || parts[0] != "dex" || len(parts[1]) != 2 || parts[2] != "dex-abc" {
		t.Errorf("Entry path = %s, want /cache/dex/<shard>/dex-abc", path)
	}

	// No temp files left behind.
	infos, err := afero.ReadDir(memFs, filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("Entry directory holds %d files, want 1", len(infos))
	}
}

func TestDirStore_LongKey(t *testing.T) {
	store, memFs := newTestDirStore(t)

	long := "dex"
	for i := 0; i < 10; i++ {
		long += "-" + sha256Hex(string(rune('a'+i)))
	}
	key := NewKey(long)
	writeFile(t, memFs, "/work/out", "OUT")

	if err := store.CopyToCache("/work/out", key); err != nil {
		t.Fatalf("CopyToCache() error = %v", err)
	}
	path, _ := store.entryPath(key)
	if len(filepath.Base(path)) > maxNameLen {
		t.Errorf("Entry name %s is longer than %d", filepath.Base(path), maxNameLen)
	}
	if !strings.HasPrefix(filepath.Base(path), "dex-") {
		t.Errorf("Entry name %s lost its prefix", filepath.Base(path))
	}

	// A different long key maps elsewhere.
	other, _ := store.entryPath(NewKey(long + "-00"))
	if other == path {
		t.Errorf("Distinct long keys share the entry %s", path)
	}

	if err := store.CopyFromCache(key, "/work/copy"); err != nil {
		t.Fatalf("CopyFromCache() error = %v", err)
	}
	if got := readFile(t, memFs, "/work/copy"); got != "OUT" {
		t.Errorf("Copied content = %q, want OUT", got)
	}
}

func TestDirStore_Errors(t *testing.T) {
	store, memFs := newTestDirStore(t)

	t.Run("Copy out of absent key", func(t *testing.T) {
		err := store.CopyFromCache(NewKey("dex-missing"), "/work/out")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Copy in of missing source", func(t *testing.T) {
		err := store.CopyToCache("/work/nope", NewKey("dex-abc"))
		if err == nil {
			t.Errorf("Expected error for missing source")
		}
		if exists, _ := store.Exists(NewKey("dex-abc")); exists {
			t.Errorf("Entry created from a missing source")
		}
	})

	t.Run("Uncacheable key", func(t *testing.T) {
		if _, err := store.Exists(Uncacheable); err == nil {
			t.Errorf("Expected error for uncacheable key")
		}
	})

	t.Run("Key escaping the root", func(t *testing.T) {
		writeFile(t, memFs, "/work/out", "OUT")
		err := store.CopyToCache("/work/out", NewKey("dex/../../etc"))
		if err == nil {
			t.Errorf("Expected error for a key with separators")
		}
	})

	t.Run("Entry in a directory", func(t *testing.T) {
		key := NewKey("dex-dir")
		path, err := store.entryPath(key)
		if err != nil {
			t.Fatalf("entryPath() error = %v", err)
		}
		if err := memFs.MkdirAll(path, 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		err = store.CopyFromCache(key, "/work/dir-out")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound for a directory entry, got %v", err)
		}
	})
}

func TestDirStore_DotPrefixes(t *testing.T) {
	memFs := afero.NewMemMapFs()
	store, err := NewDirStore("/srv/cache", WithFs(memFs))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	writeFile(t, memFs, "/work/a.jar", "X")

	parent, err := NewDeriver("..", WithFs(memFs)).FileKey("/work/a.jar")
	if err != nil {
		t.Fatalf("FileKey() error = %v", err)
	}

	for _, key := range []Key{parent, NewKey(".-abc"), NewKey("..-x")} {
		t.Run(key.String(), func(t *testing.T) {
			if err := store.CopyToCache("/work/a.jar", key); err == nil {
				t.Errorf("CopyToCache() accepted %s", key)
			}
			if _, err := store.Exists(key); err == nil {
				t.Errorf("Exists() accepted %s", key)
			}
		})
	}

	var outside []string
	_ = afero.Walk(memFs, "/srv", func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() && !strings.HasPrefix(path, "/srv/cache/") {
			outside = append(outside, path)
		}
		return nil
	})
	if len(outside) != 0 {
		t.Errorf("Files written outside the store root: %v", outside)
	}
}

// An empty prefix and a real "_" prefix keep separate namespaces.
func TestDirStore_EmptyPrefix(t *testing.T) {
	store, memFs := newTestDirStore(t)
	writeFile(t, memFs, "/work/out", "OUT")

	for _, key := range []Key{NewKey("-abc"), NewKey("_-abc")} {
		if err := store.CopyToCache("/work/out", key); err != nil {
			t.Fatalf("CopyToCache(%s) error = %v", key, err)
		}
	}

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Entries() = %+v, want 2 entries", entries)
	}
	if entries[0].Prefix != "" || entries[0].Name != "-abc" {
		t.Errorf("Entries()[0] = %+v, want empty prefix -abc", entries[0])
	}
	if entries[1].Prefix != "_" || entries[1].Name != "_-abc" {
		t.Errorf("Entries()[1] = %+v, want prefix _ with _-abc", entries[1])
	}
}

func TestDirStore_PrepareDestination(t *testing.T) {
	store, memFs := newTestDirStore(t)
	writeFile(t, memFs, "/out/classes.dex", "STALE")

	if err := store.PrepareDestination("/out/classes.dex"); err != nil {
		t.Fatalf("PrepareDestination() error = %v", err)
	}
	if exists, _ := afero.Exists(memFs, "/out/classes.dex"); exists {
		t.Errorf("Stale destination not removed")
	}

	if err := store.PrepareDestination("/new/nested/classes.dex"); err != nil {
		t.Fatalf("PrepareDestination() error = %v", err)
	}
	if exists, _ := afero.DirExists(memFs, "/new/nested"); !exists {
		t.Errorf("Destination parent not created")
	}
}

// Two processes racing on the same miss both insert; readers only ever see
// a complete entry.
func TestDirStore_ConcurrentInsert(t *testing.T) {
	root := t.TempDir()
	osFs := afero.NewOsFs()
	store, err := NewDirStore(filepath.Join(root, "cache"), WithFs(osFs))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	key := NewKey("dex-race")
	content := strings.Repeat("OUT", 50000)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		i := i
		src := filepath.Join(root, "src", string(rune('a'+i)))
		if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
		if err := os.WriteFile(src, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = store.CopyToCache(src, key)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Writer %d failed: %v", i, err)
		}
	}

	dst := filepath.Join(root, "dst")
	if err := store.CopyFromCache(key, dst); err != nil {
		t.Fatalf("CopyFromCache() error = %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != content {
		t.Errorf("Entry content has %d bytes, want %d", len(got), len(content))
	}

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Entries() = %d, want 1", len(entries))
	}
}

func TestDirStore_WithCache(t *testing.T) {
	store, memFs := newTestDirStore(t)
	cache := New(store)
	writeFile(t, memFs, "/cp/a.jar", "X")

	key, err := NewDeriver("dex", WithFs(memFs)).Key([]string{"/cp/a.jar"})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}

	outcome, err := cache.Resolve("/out/a.dex", key, func() error {
		return afero.WriteFile(memFs, "/out/a.dex", []byte("OUT"), 0o644)
	})
	if err != nil || outcome != Miss {
		t.Fatalf("First Resolve() = %s, %v", outcome, err)
	}

	outcome, err = cache.Resolve("/out/b.dex", key, func() error {
		t.Errorf("Fallback ran on a hit")
		return nil
	})
	if err != nil || outcome != Hit {
		t.Fatalf("Second Resolve() = %s, %v", outcome, err)
	}
	if got := readFile(t, memFs, "/out/b.dex"); got != "OUT" {
		t.Errorf("dest = %q, want OUT", got)
	}
}
