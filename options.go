package artifactcache

import (
	"strings"

	"github.com/go-kit/log"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
)

// EligibleFunc reports whether an input file may take part in a cache key.
type EligibleFunc func(path string) bool

// Option configures a Deriver, a Cache or a store.
type Option func(*options)

type options struct {
	fs          afero.Fs
	algorithm   digest.Algorithm
	eligible    EligibleFunc
	concurrency int
	logger      log.Logger
}

func newOptions(opts []Option) options {
	o := options{
		fs:          afero.NewOsFs(),
		algorithm:   digest.Canonical,
		eligible:    IsJar,
		concurrency: 1,
		logger:      log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// IsJar is the default eligibility predicate: only packaged .jar archives are
// cacheable, directories and loose class files are not.
func IsJar(path string) bool {
	return strings.HasSuffix(path, ".jar")
}

// WithFs sets the filesystem used for input files, destinations and store entries.
// This is primarily useful for testing with in-memory filesystems.
//
// Example:
//
//	d := artifactcache.NewDeriver("dex", artifactcache.WithFs(afero.NewMemMapFs()))
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithAlgorithm sets the content digest used for input hashes.
// The default is SHA-256.
//
// Note: Changing the algorithm for an existing cache directory silently
// invalidates every entry in it.
func WithAlgorithm(algorithm digest.Algorithm) Option {
	return func(o *options) {
		o.algorithm = algorithm
	}
}

// WithEligibility replaces the cacheability predicate applied by Deriver.Key.
func WithEligibility(fn EligibleFunc) Option {
	return func(o *options) {
		o.eligible = fn
	}
}

// WithConcurrency sets how many input files Deriver.Key hashes at once.
// Values below 1 are treated as 1. The resulting key does not depend on it.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.concurrency = n
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
