package rtkernel

import "context"

// SignalPolicy selects how many waiters a single Give wakes. Signal is
// distinct from Flag in that it carries no bit pattern, just an
// edge-triggered pending/not-pending state.
type SignalPolicy uint8

const (
	// SignalSingle wakes exactly one waiter per Give; if none are
	// waiting, the signal latches pending until the next Wait consumes
	// it.
	SignalSingle SignalPolicy = iota
	// SignalBroadcast wakes every current waiter per Give and does not
	// latch: a Give with nobody waiting is simply lost, matching a
	// condition-variable-style notify rather than a latched event.
	SignalBroadcast
)

// Signal is a lightweight edge-triggered notification, cheaper than Sem
// when no count is needed and cheaper than Flag when a single bit is
// enough.
type Signal struct {
	Obj

	policy  SignalPolicy
	pending bool
}

// NewSignal creates a Signal with the given wake policy.
func (k *Kernel) NewSignal(policy SignalPolicy, opts ...ObjOption) *Signal {
	cfg := resolveObjOptions(opts)
	s := &Signal{policy: policy}
	s.Obj.init(k, cfg.tag, cfg.ownership, nil)
	return s
}

// Wait blocks caller until Give is called (or, for SignalSingle, consumes
// an already-pending Give), or until ctx's deadline elapses.
func (s *Signal) Wait(caller *Task, ctx context.Context) Event {
	k := s.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if s.released() {
		return Deleted
	}
	if s.pending {
		s.pending = false
		return Success
	}
	return k.waitFor(caller, &s.Obj.wq, ctx)
}

// Give signals the object: wakes one or all current waiters per its
// policy, or (SignalSingle only, with nobody waiting) latches pending.
func (s *Signal) Give() Event { return s.giveInternal() }

// GiveISR is Give's ISR-context counterpart.
func (s *Signal) GiveISR() Event { return s.giveInternal() }

func (s *Signal) giveInternal() Event {
	k := s.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if s.released() {
		return Deleted
	}
	if !s.Obj.wq.empty() {
		if s.policy == SignalBroadcast {
			k.wakeAll(&s.Obj.wq, Success)
		} else {
			k.wakeOne(&s.Obj.wq, Success)
		}
		return Success
	}
	if s.policy == SignalSingle {
		s.pending = true
	}
	return Success
}

// Destroy releases the signal; blocked Wait callers wake with Deleted.
func (s *Signal) Destroy() {
	k := s.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	s.release()
}
