package rtkernel

import "context"

// Barrier is a cyclic rendezvous point for a fixed party size: the
// Nth (last) arrival's Wait releases every task parked for that generation
// and starts a fresh generation immediately, so the same Barrier can be
// reused across rounds.
type Barrier struct {
	Obj

	parties   int
	arrived   int
	generation uint64
}

// NewBarrier creates a Barrier for the given party size. parties must be
// at least 1.
func (k *Kernel) NewBarrier(parties int, opts ...ObjOption) *Barrier {
	cfg := resolveObjOptions(opts)
	if parties < 1 {
		parties = 1
	}
	b := &Barrier{parties: parties}
	b.Obj.init(k, cfg.tag, cfg.ownership, nil)
	return b
}

// Wait blocks caller until parties tasks total have called Wait for the
// current generation, then releases all of them together, or returns
// early if ctx's deadline elapses (in which case the caller does not
// count toward the generation it timed out waiting for).
func (b *Barrier) Wait(caller *Task, ctx context.Context) Event {
	k := b.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if b.released() {
		return Deleted
	}
	b.arrived++
	if b.arrived >= b.parties {
		b.arrived = 0
		b.generation++
		k.wakeAll(&b.Obj.wq, Success)
		return Success
	}
	gen := b.generation
	ev := k.waitFor(caller, &b.Obj.wq, ctx)
	if ev == Timeout && b.generation == gen {
		// Caller's own arrival never contributed to a completed
		// generation; withdraw it so a still-pending round isn't
		// permanently short one party.
		b.arrived--
	}
	return ev
}

// Parties returns the configured party size.
func (b *Barrier) Parties() int { return b.parties }

// Destroy releases the barrier; every blocked Wait caller wakes with
// Deleted.
func (b *Barrier) Destroy() {
	k := b.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	b.release()
}
