package artifactcache

import (
	"errors"
	"fmt"

	"github.com/opencontainers/go-digest"
)

// Sentinel errors
var (
	// ErrNotFound is returned when a store has no entry for a key.
	ErrNotFound = errors.New("cache entry not found")

	// ErrDigestUnavailable is matched by DigestUnavailableError.
	ErrDigestUnavailable = errors.New("digest algorithm unavailable")
)

// InputReadError reports an input file that could not be opened or fully read
// while computing its hash.
type InputReadError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *InputReadError) Error() string {
	return fmt.Sprintf("unable to hash %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *InputReadError) Unwrap() error {
	return e.Err
}

// DigestUnavailableError reports a digest algorithm that is not registered
// in this binary.
type DigestUnavailableError struct {
	Algorithm digest.Algorithm
}

// Error implements the error interface.
func (e *DigestUnavailableError) Error() string {
	return fmt.Sprintf("digest algorithm %q unavailable", string(e.Algorithm))
}

// Is makes errors.Is(err, ErrDigestUnavailable) hold.
func (e *DigestUnavailableError) Is(target error) bool {
	return target == ErrDigestUnavailable
}

// FallbackError wraps the failure of the production step run on a miss.
type FallbackError struct {
	Err error
}

// Error implements the error interface.
func (e *FallbackError) Error() string {
	return fmt.Sprintf("fallback failed: %v", e.Err)
}

// Unwrap returns the fallback's own error.
func (e *FallbackError) Unwrap() error {
	return e.Err
}

// Store operations named in StoreError.
const (
	OpPrepare = "prepare"
	OpExists  = "exists"
	OpCopyOut = "copy-out"
	OpCopyIn  = "copy-in"
)

// StoreError reports a failed Store operation.
type StoreError struct {
	Op  string
	Key Key
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if !e.Key.Cacheable() {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}
