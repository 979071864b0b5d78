package artifactcache

import (
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Delimiter separates the prefix and the input hashes inside a key.
// It never occurs in a hex digest.
const Delimiter = "-"

// Key is an opaque cache key.
// The zero value is Uncacheable.
type Key struct {
	name      string
	cacheable bool
}

// Uncacheable is the absence of a key: the inputs cannot be cached.
var Uncacheable = Key{}

// NewKey wraps a key computed elsewhere. An empty string yields Uncacheable.
func NewKey(name string) Key {
	if name == "" {
		return Uncacheable
	}
	return Key{name: name, cacheable: true}
}

// Cacheable reports whether k names a store entry.
func (k Key) Cacheable() bool {
	return k.cacheable
}

// String returns the key text, or "uncacheable" for the sentinel.
func (k Key) String() string {
	if !k.cacheable {
		return "uncacheable"
	}
	return k.name
}

// Prefix returns the human-readable part of the key before the first delimiter.
func (k Key) Prefix() string {
	prefix, _, _ := strings.Cut(k.name, Delimiter)
	return prefix
}

// Deriver computes cache keys from the content of input files.
// The prefix names the kind of artifact; DirStore groups entries by it.
type Deriver struct {
	prefix      string
	fs          afero.Fs
	algorithm   digest.Algorithm
	eligible    EligibleFunc
	concurrency int
	logger      log.Logger
}

// NewDeriver creates a Deriver producing keys that start with prefix.
// It uses SHA-256 and the OS filesystem unless configured otherwise.
//
// The prefix should not contain Delimiter: Key.Prefix stops at the first
// one, so DirStore would group "my-dex" keys under "my".
func NewDeriver(prefix string, opts ...Option) *Deriver {
	o := newOptions(opts)
	return &Deriver{
		prefix:      prefix,
		fs:          o.fs,
		algorithm:   o.algorithm,
		eligible:    o.eligible,
		concurrency: o.concurrency,
		logger:      o.logger,
	}
}

// Prefix returns the key prefix.
func (d *Deriver) Prefix() string {
	return d.prefix
}

// Hash returns the lowercase hex digest of the content of file.
// Failures are *InputReadError or *DigestUnavailableError.
func (d *Deriver) Hash(file string) (string, error) {
	return hashFile(d.fs, d.algorithm, file)
}

// FileKey returns the key for the content of a single file.
// No eligibility check is applied.
func (d *Deriver) FileKey(file string) (Key, error) {
	sum, err := d.Hash(file)
	if err != nil {
		return Uncacheable, err
	}
	return Key{name: d.prefix + Delimiter + sum, cacheable: true}, nil
}

// Key returns the key for the ordered content of files, or Uncacheable if
// any file fails the eligibility predicate. Files preceding the first
// ineligible one are still hashed, and their read errors win.
func (d *Deriver) Key(files []string) (Key, error) {
	eligible := len(files)
	for i, file := range files {
		if !d.eligible(file) {
			eligible = i
			break
		}
	}

	sums, err := d.hashAll(files[:eligible])
	if err != nil {
		return Uncacheable, err
	}
	if eligible < len(files) {
		level.Debug(d.logger).Log("msg", "inputs not cacheable", "prefix", d.prefix, "file", files[eligible])
		return Uncacheable, nil
	}

	var b strings.Builder
	b.WriteString(d.prefix)
	for _, sum := range sums {
		b.WriteString(Delimiter)
		b.WriteString(sum)
	}
	return Key{name: b.String(), cacheable: true}, nil
}

// hashAll hashes files with up to d.concurrency workers. Results keep the
// input order and the returned error belongs to the lowest failing index.
func (d *Deriver) hashAll(files []string) ([]string, error) {
	sums := make([]string, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			sums[i], errs[i] = d.Hash(file)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return sums, nil
}
