package mvs

import "sync"

// universeLocks serializes mutations per universe. Appends, sweeps, forks,
// and metadata updates for one universe hold its lock across the index
// read-modify-write; operations on different universes never contend. Locks
// are never nested, so no ordering discipline is needed.
type universeLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUniverseLocks() *universeLocks {
	return &universeLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for the given universe and returns its unlock
// function. Lock entries are retained for the life of the store; the set of
// universes is small relative to the data they index.
func (l *universeLocks) acquire(universeID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[universeID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[universeID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
