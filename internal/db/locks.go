package db

import (
	"context"
	"sync"
)

// ChecklistsLockKey serializes checklist imports, resets and check marks
const ChecklistsLockKey = "checklists"

// CollectionLockKey returns the writer key for one collection subtree
func CollectionLockKey(id string) string {
	return "collection:" + id
}

// keyLocks hands out one writer slot per key. Writers for different keys
// proceed in parallel.
type keyLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newKeyLocks() *keyLocks {
	return &keyLocks{slots: make(map[string]chan struct{})}
}

func (l *keyLocks) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// TryLock takes the writer slot for key without waiting. It returns false
// if another writer holds it.
func (db *DB) TryLock(key string) (unlock func(), ok bool) {
	ch := db.locks.slot(key)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, true
	default:
		return nil, false
	}
}

// Lock waits for the writer slot for key, or until ctx is done
func (db *DB) Lock(ctx context.Context, key string) (unlock func(), err error) {
	ch := db.locks.slot(key)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
