package rtkernel

import "context"

// MutexKind selects the Normal/Recursive/ErrorCheck acquire-by-owner
// behavior.
type MutexKind uint8

const (
	// Normal: recursive Acquire by the owner deadlocks (blocks forever
	// against itself), matching a bare mutex.
	Normal MutexKind = iota
	// Recursive: the owner may Acquire again up to its recursion limit;
	// each Acquire must be matched by a Release.
	Recursive
	// ErrorCheck: recursive Acquire by the owner fails fast with Failure
	// instead of deadlocking or recursing.
	ErrorCheck
)

// MutexProtocol selects the priority-inversion avoidance strategy.
type MutexProtocol uint8

const (
	// ProtocolNone applies no priority protocol.
	ProtocolNone MutexProtocol = iota
	// ProtocolInherit is priority inheritance: the owner's effective
	// priority is boosted to the highest-priority blocked waiter's, and
	// the boost propagates transitively across a chain of held mutexes.
	ProtocolInherit
	// ProtocolProtect is the priority ceiling protocol: acquiring the
	// mutex immediately raises the owner to the configured ceiling.
	ProtocolProtect
)

// Mutex is a single-owner lock with optional recursion and priority
// protocol, and optional robustness. It embeds Obj for
// identity/wait-queue/ownership bookkeeping.
type Mutex struct {
	Obj

	kind     MutexKind
	protocol MutexProtocol
	robust   bool
	ceiling  uint8
	limit    uint32

	owner    *Task
	depth    uint32
	ownerDied bool

	nextHeld *Mutex // next entry in owner.heldMutexes, most-recent-first
}

// NewMutex creates a Mutex bound to this Kernel.
func (k *Kernel) NewMutex(opts ...MutexOption) *Mutex {
	cfg := resolveMutexOptions(opts)
	m := &Mutex{
		kind:     cfg.kind,
		protocol: cfg.protocol,
		robust:   cfg.robust,
		ceiling:  cfg.ceiling,
		limit:    cfg.limit,
	}
	m.Obj.init(k, "", ownDynamic, nil)
	return m
}

// Owner returns the task currently holding the mutex, or nil if free.
func (m *Mutex) Owner() *Task {
	k := m.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	return m.owner
}

// Acquire blocks caller until the mutex is owned, or ctx's deadline
// elapses. A Recursive mutex lets its own owner re-acquire (up to its
// configured limit); an ErrorCheck mutex instead fails such a recursive
// call with Failure; a Normal mutex blocks the owner against itself like
// any bare lock. Under ProtocolProtect, a caller whose priority is above
// the ceiling gets Failure without acquiring or waiting.
func (m *Mutex) Acquire(caller *Task, ctx context.Context) Event {
	k := m.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if m.released() {
		return Deleted
	}
	if m.protocol == ProtocolProtect && caller.prio > m.ceiling {
		return Failure
	}
	if m.owner == nil {
		m.grantLocked(caller)
		if m.ownerDied {
			m.ownerDied = false
			return OwnerDead
		}
		return Success
	}
	if m.owner == caller {
		switch m.kind {
		case Recursive:
			if m.depth >= m.limit {
				return Failure
			}
			m.depth++
			return Success
		case ErrorCheck:
			return Failure
		}
		// Normal: falls through to block against itself, a genuine
		// deadlock if nothing else intervenes -- matches a bare lock.
	}
	caller.waitsOnMutex = m
	if m.protocol == ProtocolInherit && caller.prio > m.owner.prio {
		k.boostChain(m.owner, caller.prio)
	}
	ev := k.waitFor(caller, &m.Obj.wq, ctx)
	caller.waitsOnMutex = nil
	if ev == Success {
		if m.ownerDied {
			m.ownerDied = false
			ev = OwnerDead
		}
	}
	return ev
}

// grantLocked assigns the mutex to t with depth 1, applying the ceiling
// protocol if configured, and threads it onto t.heldMutexes.
func (m *Mutex) grantLocked(t *Task) {
	k := m.Obj.k
	m.owner = t
	m.depth = 1
	m.nextHeld = t.heldMutexes
	t.heldMutexes = m
	if m.protocol == ProtocolProtect && m.ceiling > t.prio {
		k.setEffectivePrioLocked(t, m.ceiling)
	}
}

// boostChain raises holder's effective priority to at least prio, and if
// holder is itself blocked waiting on another mutex, propagates the boost
// transitively to that mutex's owner, and so on -- the transitive
// priority-inheritance chain walk this protocol exists for.
func (k *Kernel) boostChain(holder *Task, prio uint8) {
	for holder != nil && holder.prio < prio {
		k.setEffectivePrioLocked(holder, prio)
		next := holder.waitsOnMutex
		if next == nil || next.owner == nil {
			return
		}
		holder = next.owner
	}
}

// Release hands the mutex to the highest-priority waiter, if any,
// otherwise frees it. Releasing a Recursive mutex decrements its depth
// and only actually hands off at depth zero. Releasing a mutex the
// caller does not own is a contract violation (ErrWrongOwner).
func (m *Mutex) Release(caller *Task) Event {
	k := m.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	return m.releaseLocked(caller)
}

// releaseLocked is Release's body, reused by Cond.Wait which must drop
// caller's mutex and park atomically under a single k.lock section.
func (m *Mutex) releaseLocked(caller *Task) Event {
	k := m.Obj.k
	if m.released() {
		return Deleted
	}
	if m.owner != caller {
		k.lock.Unlock()
		k.assertf("Mutex.Release", ErrWrongOwner)
		k.lock.Lock()
		return Failure
	}
	if m.depth > 1 {
		m.depth--
		return Success
	}
	m.unlinkFromOwnerLocked()
	m.restorePrioLocked(caller)
	m.handOffLocked()
	return Success
}

// unlinkFromOwnerLocked splices m out of owner.heldMutexes.
func (m *Mutex) unlinkFromOwnerLocked() {
	owner := m.owner
	if owner == nil {
		return
	}
	if owner.heldMutexes == m {
		owner.heldMutexes = m.nextHeld
	} else {
		for h := owner.heldMutexes; h != nil; h = h.nextHeld {
			if h.nextHeld == m {
				h.nextHeld = m.nextHeld
				break
			}
		}
	}
	m.nextHeld = nil
}

// restorePrioLocked recomputes owner's effective priority from its basic
// priority and any mutexes it still holds, once m is no longer one of
// them: the highest ceiling/inherited boost still in effect wins, falling
// back to basicPrio if none remain.
func (m *Mutex) restorePrioLocked(owner *Task) {
	k := m.Obj.k
	best := owner.basicPrio
	for h := owner.heldMutexes; h != nil; h = h.nextHeld {
		if h.protocol == ProtocolProtect && h.ceiling > best {
			best = h.ceiling
		}
		if h.protocol == ProtocolInherit {
			if w := h.Obj.wq.peek(); w != nil && w.prio > best {
				best = w.prio
			}
		}
	}
	k.setEffectivePrioLocked(owner, best)
	owner.prio = best
}

// handOffLocked grants the mutex to the next waiter, if any.
func (m *Mutex) handOffLocked() {
	k := m.Obj.k
	next := m.Obj.wq.dequeueHead()
	if next == nil {
		m.owner = nil
		return
	}
	k.timing.remove(&next.Hdr)
	next.event = Success
	next.state = Ready
	k.ready.insert(next)
	m.grantLocked(next)
	k.requestDispatch()
}

// forceReleaseLocked is called when the owning task stops/exits/flips
// while still holding the mutex: if robust, the next acquirer receives
// OwnerDead; otherwise the mutex is simply handed off as if Released
// normally (the non-robust default: silent recovery).
func (m *Mutex) forceReleaseLocked() {
	owner := m.owner
	if owner == nil {
		return
	}
	m.unlinkFromOwnerLocked()
	if m.robust {
		m.ownerDied = true
	}
	m.handOffLocked()
}

// Destroy releases the mutex's identity; blocked Acquire callers wake
// with Deleted. If the mutex is currently held, the owner's bookkeeping
// is cleaned up as part of release.
func (m *Mutex) Destroy() {
	k := m.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if m.released() {
		return
	}
	if m.owner != nil {
		m.unlinkFromOwnerLocked()
		m.owner = nil
	}
	m.release()
}
