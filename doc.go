/*
Package artifactcache caches build outputs by the content of their inputs.

A build step that turns the same inputs into the same output every time (for
example dexing a set of jars) can be skipped when its output for those
inputs was stored before. artifactcache derives a key from the content hashes
of the inputs, looks the key up in a Store, and either copies the stored
output to the destination or runs the build step and stores what it wrote.

# Keys

A Deriver turns a prefix and an ordered list of input files into a Key:

	d := artifactcache.NewDeriver("dex")
	key, err := d.Key([]string{"lib/a.jar", "lib/b.jar"})
	// key.String() == "dex-<sha256 of a.jar>-<sha256 of b.jar>"

Order matters: the same files in another order give another key. If any
input fails the eligibility predicate (by default: not a .jar), the key is
Uncacheable. A file that cannot be read fails with *InputReadError.

# Resolving

	store, err := artifactcache.NewDirStore(".artifact-cache")
	if err != nil {
	    log.Fatalf("Failed to open store: %v", err)
	}
	cache := artifactcache.New(store)

	outcome, err := cache.Resolve("out/classes.dex", key, func() error {
	    return exec.Command("dx", "--dex", "--output=out/classes.dex", "lib/a.jar", "lib/b.jar").Run()
	})

On a hit the fallback never runs. On a miss it runs, and for a cacheable key
its output is inserted afterwards. Uncacheable keys always run the fallback
and never insert.

# Stores

DirStore keeps entries in a directory that several processes may share.
Inserts go through a temporary file and a rename, so readers never see a
partial entry:

	.artifact-cache/
	└── dex/
	    └── [2 hex chars of xxhash(key)]/
	        └── [key]

Keys with an empty prefix live under "-". Prefixes should not contain the
delimiter, and keys whose path would leave the store root are rejected.

MemStore keeps entries in memory and is handy in tests.

Neither verifies that an entry matches its key, and nothing is ever evicted.

# Error Handling

  - *InputReadError: an input could not be hashed
  - *DigestUnavailableError: the digest algorithm is not linked in (matches ErrDigestUnavailable)
  - *FallbackError: the build step failed; nothing was inserted
  - *StoreError: the store failed; after a failed insert the destination is still valid
*/
package artifactcache
