package artifactcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
)

// TestHashReader tests that streaming through the pooled buffer gives the
// same digest as hashing the content directly.
func TestHashReader(t *testing.T) {
	testCases := []struct {
		name    string
		content []byte
	}{
		{name: "Normal content", content: []byte("test content")},
		{name: "Empty content", content: []byte{}},
		{name: "Larger than buffer", content: bytes.Repeat([]byte("abcdefgh"), defaultBufferSize/4)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h1 := sha256.New()
			h2 := sha256.New()

			if err := hashReader(bytes.NewReader(tc.content), h1); err != nil {
				t.Fatalf("hashReader() error = %v", err)
			}
			h2.Write(tc.content)

			if !bytes.Equal(h1.Sum(nil), h2.Sum(nil)) {
				t.Errorf("hashReader() produced different hash than direct hashing")
			}
		})
	}
}

// TestHashFile tests the lowercase hex rendering of a file digest.
func TestHashFile(t *testing.T) {
	memFs := afero.NewMemMapFs()
	path := filepath.Join("/inputs", "a.jar")
	writeFile(t, memFs, path, "X")

	got, err := hashFile(memFs, digest.SHA256, path)
	if err != nil {
		t.Fatalf("hashFile() error = %v", err)
	}

	sum := sha256.Sum256([]byte("X"))
	want := hex.EncodeToString(sum[:])
	if got != want {
		t.Errorf("hashFile() = %s, want %s", got, want)
	}
	if strings.ToLower(got) != got {
		t.Errorf("hashFile() = %s, want lowercase hex", got)
	}
}

// TestHashFile_Fail tests the failure modes of hashFile.
func TestHashFile_Fail(t *testing.T) {
	memFs := afero.NewMemMapFs()

	t.Run("Non-existent file", func(t *testing.T) {
		path := "/inputs/missing.jar"
		_, err := hashFile(memFs, digest.SHA256, path)

		var readErr *InputReadError
		if !errors.As(err, &readErr) {
			t.Fatalf("Expected *InputReadError, got %T: %v", err, err)
		}
		if readErr.Path != path {
			t.Errorf("InputReadError.Path = %s, want %s", readErr.Path, path)
		}
		if !strings.Contains(err.Error(), path) {
			t.Errorf("Error message %q does not mention %s", err.Error(), path)
		}
	})

	t.Run("Unavailable algorithm", func(t *testing.T) {
		writeFile(t, memFs, "/inputs/a.jar", "X")
		_, err := hashFile(memFs, digest.Algorithm("md4"), "/inputs/a.jar")

		if !errors.Is(err, ErrDigestUnavailable) {
			t.Fatalf("Expected ErrDigestUnavailable, got %v", err)
		}
		var digestErr *DigestUnavailableError
		if !errors.As(err, &digestErr) || digestErr.Algorithm != "md4" {
			t.Errorf("Expected *DigestUnavailableError for md4, got %v", err)
		}
	})
}
