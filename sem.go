package rtkernel

import "context"

// Sem is a counting semaphore: Give increments the count (up to limit)
// or wakes the highest-priority waiter; Take decrements it or blocks.
type Sem struct {
	Obj

	count uint32
	limit uint32
}

// NewSem creates a semaphore with the given initial count and limit (a
// limit of 0 means unbounded).
func (k *Kernel) NewSem(initial, limit uint32, opts ...ObjOption) *Sem {
	cfg := resolveObjOptions(opts)
	s := &Sem{count: initial, limit: limit}
	s.Obj.init(k, cfg.tag, cfg.ownership, nil)
	return s
}

// Take blocks caller until the count is positive, then decrements it, or
// until ctx's deadline elapses.
func (s *Sem) Take(caller *Task, ctx context.Context) Event {
	k := s.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if s.released() {
		return Deleted
	}
	if s.count > 0 {
		s.count--
		return Success
	}
	return k.waitFor(caller, &s.Obj.wq, ctx)
}

// Give increments the count, waking the highest-priority waiter if any
// instead of incrementing when one is present. Returns Failure if the
// count is already at limit (limit > 0).
func (s *Sem) Give() Event {
	k := s.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	return s.giveLocked()
}

// GiveISR is Give's ISR-context counterpart: identical behavior, named
// distinctly to flag call sites that run without a current task in
// scope.
func (s *Sem) GiveISR() Event {
	k := s.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	return s.giveLocked()
}

func (s *Sem) giveLocked() Event {
	k := s.Obj.k
	if s.released() {
		return Deleted
	}
	if t := s.Obj.wq.peek(); t != nil {
		k.wakeOne(&s.Obj.wq, Success)
		return Success
	}
	if s.limit > 0 && s.count >= s.limit {
		return Failure
	}
	s.count++
	return Success
}

// Count returns the current count.
func (s *Sem) Count() uint32 {
	k := s.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	return s.count
}

// Destroy releases the semaphore; blocked Take callers wake with Deleted.
func (s *Sem) Destroy() {
	k := s.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	s.release()
}
