package ledger

import (
	"sync"
)

// mapLock is used to manage multiple locks for various keys. Locks are dropped once no caller
// holds or waits on them.
type mapLock struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

// newMapLock returns a new mapLock.
func newMapLock() *mapLock {
	return &mapLock{
		locks: map[string]*keyLock{},
	}
}

// lock blocks until key is held by the caller and returns the function that releases it.
func (m *mapLock) lock(key string) func() {
	m.mu.Lock()
	kl, ok := m.locks[key]
	if !ok {
		kl = &keyLock{}
		m.locks[key] = kl
	}
	kl.refs++
	m.mu.Unlock()

	kl.Lock()

	return func() {
		kl.Unlock()

		m.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// size returns the number of keys currently locked or waited on.
func (m *mapLock) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.locks)
}
