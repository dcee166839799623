package store

import "sync"

// DefaultMaxDepth is the default maximum dispatch nesting depth per
// correlation token. It terminates runaway mutually-recursive action
// chains that would otherwise never return.
const DefaultMaxDepth = 100

// depthQuota tracks in-flight dispatch depth per correlation token.
//
// A token's count increments when a dispatch for it starts and decrements
// when it returns, so the count measures the depth of the live chain, not
// its total length. Sequential dispatches under one token never trip the
// quota.
//
// Thread-safety: safe for concurrent use via internal mutex.
type depthQuota struct {
	mu     sync.Mutex
	max    int
	depths map[string]int
}

func newDepthQuota(max int) *depthQuota {
	return &depthQuota{
		max:    max,
		depths: make(map[string]int),
	}
}

// enter records one more in-flight dispatch for token. Returns a
// RuntimeError when the chain is already at the quota.
func (q *depthQuota) enter(typ, token string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	depth := q.depths[token]
	if depth >= q.max {
		return newDepthError(typ, token, depth, q.max)
	}
	q.depths[token] = depth + 1
	return nil
}

// exit records a dispatch return. The token's entry is removed at zero to
// prevent the map from growing with every token ever seen.
func (q *depthQuota) exit(token string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	depth := q.depths[token]
	if depth <= 1 {
		delete(q.depths, token)
		return
	}
	q.depths[token] = depth - 1
}

// current returns the in-flight depth for token. Used by tests.
func (q *depthQuota) current(token string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.depths[token]
}
