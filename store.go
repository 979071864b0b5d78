package artifactcache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Store is the durable key to content mapping consulted by Cache.
//
// Implementations trust the key: they never check that stored content
// matches the inputs that produced the key.
type Store interface {
	// PrepareDestination makes path writable: its parent exists and any
	// stale file at path is gone.
	PrepareDestination(path string) error

	// Exists reports whether an entry is stored under key.
	Exists(key Key) (bool, error)

	// CopyFromCache copies the entry for key to dst. It fails with
	// ErrNotFound if there is no such entry.
	CopyFromCache(key Key, dst string) error

	// CopyToCache stores the content of src under key.
	CopyToCache(src string, key Key) error
}

// prepareDestination creates the parent of path and removes whatever is at path.
func prepareDestination(fs afero.Fs, path string) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := fs.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale %s: %w", path, err)
	}
	return nil
}

// copyFile copies src to dst on fs, truncating dst.
func copyFile(fs afero.Fs, src, dst string) error {
	srcFile, err := fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer srcFile.Close()

	dstFile, err := fs.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if err := copyBuffered(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}
	return dstFile.Close()
}

// copyBuffered copies r to w using a pooled buffer.
func copyBuffered(w io.Writer, r io.Reader) error {
	bufPtr := bufferPool.Get().(*[]byte)
	buffer := *bufPtr
	defer bufferPool.Put(bufPtr)

	if _, err := io.CopyBuffer(w, r, buffer); err != nil {
		return fmt.Errorf("failed to copy: %w", err)
	}
	return nil
}
