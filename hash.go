package artifactcache

import (
	_ "crypto/sha256" // register SHA-256 for go-digest
	_ "crypto/sha512" // register SHA-384/512 for go-digest
	"fmt"
	"hash"
	"io"
	"sync"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
)

// Default size for the buffer used when hashing and copying files
const defaultBufferSize = 32 * 1024 // 32KB

// bufferPool is a pool of byte slices used for file I/O
var bufferPool = sync.Pool{
	New: func() interface{} {
		buffer := make([]byte, defaultBufferSize)
		return &buffer
	},
}

// hashReader streams content into h using a pooled buffer.
func hashReader(content io.Reader, h hash.Hash) error {
	bufPtr := bufferPool.Get().(*[]byte)
	buffer := *bufPtr
	defer bufferPool.Put(bufPtr)

	_, err := io.CopyBuffer(h, content, buffer)
	if err != nil {
		return fmt.Errorf("failed to copy content: %w", err)
	}
	return nil
}

// hashFile returns the lowercase hex digest of the file at path.
func hashFile(fs afero.Fs, algorithm digest.Algorithm, path string) (string, error) {
	if !algorithm.Available() {
		return "", &DigestUnavailableError{Algorithm: algorithm}
	}

	f, err := fs.Open(path)
	if err != nil {
		return "", &InputReadError{Path: path, Err: err}
	}
	defer f.Close()

	digester := algorithm.Digester()
	if err := hashReader(f, digester.Hash()); err != nil {
		return "", &InputReadError{Path: path, Err: err}
	}
	return digester.Digest().Encoded(), nil
}
