package attendance

import (
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
)

type recordKey struct {
	identityID int64
	day        database.Day
}

// KeyedMutex serializes work per (identity, day). Entries are dropped once unused.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[recordKey]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[recordKey]*keyedEntry)}
}

// Lock acquires the lock for (identityID, day) and returns its release function.
func (k *KeyedMutex) Lock(identityID int64, day database.Day) func() {
	key := recordKey{identityID: identityID, day: day}

	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
