package viewing

import "sync"

// agentLocks serializes calendar mutations per agent. Probes share a read
// lock so they never observe a half-applied confirmation.
type agentLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.RWMutex
}

func newAgentLocks() *agentLocks {
	return &agentLocks{locks: make(map[int64]*sync.RWMutex)}
}

func (a *agentLocks) get(agentID int64) *sync.RWMutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[agentID]
	if !ok {
		l = &sync.RWMutex{}
		a.locks[agentID] = l
	}
	return l
}

// lock takes the agent's write lock and returns its release.
func (a *agentLocks) lock(agentID int64) func() {
	l := a.get(agentID)
	l.Lock()
	return l.Unlock
}

// rlock takes the agent's read lock and returns its release.
func (a *agentLocks) rlock(agentID int64) func() {
	l := a.get(agentID)
	l.RLock()
	return l.RUnlock
}
