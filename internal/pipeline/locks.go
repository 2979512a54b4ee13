package pipeline

import "sync"

// keyedLocks serializes processing per conversation. Events for different
// conversations proceed in parallel; events for the same one queue up, which
// is what makes ticket resolution race-free within a single process. Cross
// process ordering is guaranteed by the storage constraints, not by this.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: make(map[string]*lockEntry)}
}

// Acquire blocks until the key's lock is held and returns the release func.
// Entries are dropped once the last holder releases, so the map stays bounded
// by live conversations.
func (k *keyedLocks) Acquire(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
