package services

import (
	"sync"

	"github.com/google/uuid"
)

// keyedMutex serializes writers per record id. Entries are reference-counted
// and removed once the last holder unlocks, so the map does not grow with
// the number of records ever touched.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*keyedMutexEntry
}

type keyedMutexEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[uuid.UUID]*keyedMutexEntry)}
}

// Lock acquires the mutex for id and returns its unlock function.
func (k *keyedMutex) Lock(id uuid.UUID) func() {
	k.mu.Lock()
	entry, ok := k.entries[id]
	if !ok {
		entry = &keyedMutexEntry{}
		k.entries[id] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, id)
		}
		k.mu.Unlock()
	}
}
