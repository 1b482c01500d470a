package rtkernel

import (
	"context"
	"sync/atomic"
)

// FastMutex is a non-recursive, protocol-free lock optimized for the
// uncontended case: TryLock and an uncontended Lock resolve via a single
// atomic CAS with no kernel lock involved at all, only falling back to the
// shared wait queue on actual contention. Unlock always takes the kernel
// lock to wake a waiter, if any. Grounded on the same fast-path/slow-path split as the Go
// runtime's own sync.Mutex; it carries none of Mutex's recursion,
// priority-inheritance, or robustness bookkeeping, trading that
// generality for the cheaper common case.
type FastMutex struct {
	Obj

	locked atomic.Bool
}

// NewFastMutex creates an unlocked FastMutex.
func (k *Kernel) NewFastMutex(opts ...ObjOption) *FastMutex {
	cfg := resolveObjOptions(opts)
	m := &FastMutex{}
	m.Obj.init(k, cfg.tag, cfg.ownership, nil)
	return m
}

// TryLock attempts to acquire the lock without blocking, succeeding only
// if it was free.
func (m *FastMutex) TryLock() bool {
	return m.locked.CompareAndSwap(false, true)
}

// Lock acquires the lock, blocking caller only if it is already held, or
// returning early if ctx's deadline elapses.
func (m *FastMutex) Lock(caller *Task, ctx context.Context) Event {
	if m.locked.CompareAndSwap(false, true) {
		return Success
	}
	k := m.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	for {
		if m.released() {
			return Deleted
		}
		if m.locked.CompareAndSwap(false, true) {
			return Success
		}
		if ev := k.waitFor(caller, &m.Obj.wq, ctx); ev != Success {
			return ev
		}
	}
}

// Unlock releases the lock and wakes the highest-priority waiter, if
// any, to re-attempt the CAS.
func (m *FastMutex) Unlock() {
	m.locked.Store(false)
	k := m.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	k.wakeOne(&m.Obj.wq, Success)
}

// Destroy releases the fast mutex; any blocked Lock caller wakes with
// Deleted.
func (m *FastMutex) Destroy() {
	k := m.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	m.release()
}
