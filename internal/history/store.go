// Package history provides the in-memory execution history store: a
// concurrent, append-only, per-device-token log of command outcomes.
package history

import (
	"sync"

	"mdmdispatch/internal/command"
)

// Store records terminal command results keyed by device token.
// Safe for concurrent use; writers only ever append.
type Store struct {
	mu      sync.RWMutex
	results map[string][]command.Result
}

// NewStore creates an empty history store.
func NewStore() *Store {
	return &Store{
		results: make(map[string][]command.Result),
	}
}

// Record appends a result to the device token's history. An empty token or
// nil result is a no-op rather than an error; the engine guarantees both but
// the store does not rely on that.
func (s *Store) Record(deviceToken string, result *command.Result) {
	if deviceToken == "" || result == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[deviceToken] = append(s.results[deviceToken], *result)
}

// Snapshot returns an independent copy of the full history. Appends that
// happen during or after the call are not visible in the returned map, and
// callers may not corrupt internal state through it.
func (s *Store) Snapshot() map[string][]command.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]command.Result, len(s.results))
	for token, results := range s.results {
		copied := make([]command.Result, len(results))
		copy(copied, results)
		out[token] = copied
	}
	return out
}

// Len returns the number of device tokens with recorded history.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}
