package store

import "github.com/roark/stately/internal/canonical"

// Strict mode is advisory instrumentation, not an enforcement barrier:
// nothing prevents code from writing a live State map directly, so the
// store fingerprints the canonical encoding of the state tree after
// every sanctioned write and complains after the fact when the tree
// changed without one.

// refreshFingerprintLocked records the fingerprint of the root state.
// Caller must hold the state write lock.
func (s *Store) refreshFingerprintLocked() {
	if !s.strict {
		return
	}
	fp, err := canonical.Fingerprint(s.state)

	s.fpMu.Lock()
	defer s.fpMu.Unlock()
	if err != nil {
		// A tree holding non-encodable values cannot be watched; note
		// it once per write rather than failing the commit.
		s.logger.Warn("strict mode: state tree is not fingerprintable",
			"error", err,
		)
		s.fingerprintOK = false
		return
	}
	s.fingerprint = fp
	s.fingerprintOK = true
}

// CheckIntegrity re-fingerprints the state tree and reports an
// InvariantViolation when it changed outside a commit. Advisory only: it
// never rolls back or blocks the mutation, and it adopts the current
// tree as the new baseline so one violation is reported once.
//
// The store runs this on every commit and dispatch entry in strict mode;
// the reactive adapter runs it on reads. Returns false on violation.
func (s *Store) CheckIntegrity() bool {
	if !s.strict {
		return true
	}

	s.stateMu.RLock()
	fp, err := canonical.Fingerprint(s.state)
	s.stateMu.RUnlock()
	if err != nil {
		return true // already reported by refreshFingerprintLocked
	}

	s.fpMu.Lock()
	defer s.fpMu.Unlock()
	if !s.fingerprintOK {
		s.fingerprint = fp
		s.fingerprintOK = true
		return true
	}
	if fp == s.fingerprint {
		return true
	}

	s.logger.Warn("state mutated outside a commit",
		"code", "INVARIANT_VIOLATION",
	)
	s.fingerprint = fp
	return false
}
