package store

import "sync/atomic"

// versionClock is a monotonic logical clock for store versions.
//
// Every sanctioned write (commit, state replacement, registry rebuild)
// bumps the version. Observers key memoized getter values on the version:
// an unchanged version guarantees no committed write happened in between.
//
// Thread-safety: safe for concurrent use via atomic operations.
type versionClock struct {
	seq atomic.Int64
}

// next increments the clock and returns the new version.
// Calls are linearizable: each returns a unique, increasing value.
func (c *versionClock) next() int64 {
	return c.seq.Add(1)
}

// current returns the version without incrementing.
func (c *versionClock) current() int64 {
	return c.seq.Load()
}
