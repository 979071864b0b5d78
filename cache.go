package artifactcache

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Outcome tells how Resolve produced the destination.
type Outcome int

const (
	// Miss means the fallback ran.
	Miss Outcome = iota
	// Hit means the destination was copied out of the store.
	Hit
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	if o == Hit {
		return "hit"
	}
	return "miss"
}

// Fallback produces the artifact at the destination on a miss.
type Fallback func() error

// Cache resolves artifacts through a Store, producing them on a miss.
// It keeps no state between calls; every Resolve asks the store again.
type Cache struct {
	store  Store
	logger log.Logger
}

// New creates a Cache backed by store.
func New(store Store, opts ...Option) *Cache {
	o := newOptions(opts)
	return &Cache{
		store:  store,
		logger: o.logger,
	}
}

// Resolve leaves the artifact for key at dst.
//
// On a hit the stored entry is copied to dst and fallback is not called.
// Otherwise fallback runs, and if key is cacheable its output at dst is
// inserted into the store afterwards. An uncacheable key always runs the
// fallback and never touches the store entries.
//
// A failed insert returns Miss with a *StoreError; dst is kept because the
// caller can still use it.
func (c *Cache) Resolve(dst string, key Key, fallback Fallback) (Outcome, error) {
	if err := c.store.PrepareDestination(dst); err != nil {
		return Miss, &StoreError{Op: OpPrepare, Key: key, Err: err}
	}

	if key.Cacheable() {
		exists, err := c.store.Exists(key)
		if err != nil {
			return Miss, &StoreError{Op: OpExists, Key: key, Err: err}
		}
		if exists {
			if err := c.store.CopyFromCache(key, dst); err != nil {
				return Miss, &StoreError{Op: OpCopyOut, Key: key, Err: err}
			}
			level.Debug(c.logger).Log("msg", "cache hit", "key", key, "dst", dst)
			return Hit, nil
		}
	}

	level.Debug(c.logger).Log("msg", "cache miss", "key", key, "dst", dst)
	if err := fallback(); err != nil {
		return Miss, &FallbackError{Err: err}
	}

	if err := c.insert(key, dst); err != nil {
		return Miss, err
	}
	return Miss, nil
}

// insert copies content into the store under key. Uncacheable keys are
// accepted and ignored so callers need not check.
func (c *Cache) insert(key Key, content string) error {
	if !key.Cacheable() {
		return nil
	}
	level.Debug(c.logger).Log("msg", "inserting", "key", key)
	if err := c.store.CopyToCache(content, key); err != nil {
		level.Warn(c.logger).Log("msg", "failed to insert", "key", key, "err", err)
		return &StoreError{Op: OpCopyIn, Key: key, Err: err}
	}
	return nil
}
