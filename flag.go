package rtkernel

import "context"

// FlagMode selects whether Take is satisfied by any bit in its mask being
// set, or requires all of them.
type FlagMode uint8

const (
	// FlagAny is satisfied when bits&mask != 0.
	FlagAny FlagMode = iota
	// FlagAll is satisfied only when bits&mask == mask.
	FlagAll
)

type flagWaiter struct {
	mask      uint32
	mode      FlagMode
	autoClear bool
}

// Flag is a group of up to 32 event bits. Multiple tasks may
// wait on independent, overlapping subsets of the bits with independent
// any/all conditions; Give/Set only wakes the waiters whose own condition
// the new bit pattern actually satisfies, not merely whoever is first in
// line -- unlike every other primitive here, wake order is condition-driven
// rather than pop-the-head, so Flag keeps its own waiter table alongside
// the shared Obj wait queue.
type Flag struct {
	Obj

	bits    uint32
	waiters map[*Task]flagWaiter
}

// NewFlag creates a Flag with the given initial bit pattern.
func (k *Kernel) NewFlag(initial uint32, opts ...ObjOption) *Flag {
	cfg := resolveObjOptions(opts)
	f := &Flag{bits: initial, waiters: make(map[*Task]flagWaiter)}
	f.Obj.init(k, cfg.tag, cfg.ownership, nil)
	return f
}

func flagSatisfies(bits, mask uint32, mode FlagMode) bool {
	if mask == 0 {
		return true
	}
	if mode == FlagAll {
		return bits&mask == mask
	}
	return bits&mask != 0
}

// Bits returns the current bit pattern.
func (f *Flag) Bits() uint32 {
	k := f.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	return f.bits
}

// Take blocks caller until the mask/mode condition is satisfied by the
// current bits, or ctx's deadline elapses. On success, if autoClear is
// set, the matched bits (the whole mask for FlagAll, or bits&mask for
// FlagAny) are cleared atomically with the wake.
func (f *Flag) Take(caller *Task, mask uint32, mode FlagMode, autoClear bool, ctx context.Context) Event {
	k := f.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if f.released() {
		return Deleted
	}
	if flagSatisfies(f.bits, mask, mode) {
		f.clearOnTakeLocked(mask, mode, autoClear)
		return Success
	}
	f.waiters[caller] = flagWaiter{mask: mask, mode: mode, autoClear: autoClear}
	ev := k.waitFor(caller, &f.Obj.wq, ctx)
	delete(f.waiters, caller)
	return ev
}

func (f *Flag) clearOnTakeLocked(mask uint32, mode FlagMode, autoClear bool) {
	if !autoClear {
		return
	}
	if mode == FlagAll {
		f.bits &^= mask
	} else {
		f.bits &^= f.bits & mask
	}
}

// Set ORs mask into the bit pattern and wakes every waiter whose own
// condition the result now satisfies.
func (f *Flag) Set(mask uint32) Event { return f.modify(mask, true) }

// SetISR is Set's ISR-context counterpart.
func (f *Flag) SetISR(mask uint32) Event { return f.modify(mask, true) }

// Clear ANDs the complement of mask into the bit pattern. Clearing never
// satisfies a waiter, so no wake scan is needed.
func (f *Flag) Clear(mask uint32) Event { return f.modify(mask, false) }

func (f *Flag) modify(mask uint32, set bool) Event {
	k := f.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if f.released() {
		return Deleted
	}
	if set {
		f.bits |= mask
		f.satisfyAndWakeLocked()
	} else {
		f.bits &^= mask
	}
	return Success
}

// satisfyAndWakeLocked scans every pending waiter (not just the wait
// queue's priority-ordered head) and wakes each one whose own mask/mode
// the current bits now satisfy, applying that waiter's autoClear if set.
func (f *Flag) satisfyAndWakeLocked() {
	k := f.Obj.k
	t := f.Obj.wq.head
	for t != nil {
		next := t.wqNext
		w, ok := f.waiters[t]
		if ok && flagSatisfies(f.bits, w.mask, w.mode) {
			f.Obj.wq.remove(t)
			k.timing.remove(&t.Hdr)
			f.clearOnTakeLocked(w.mask, w.mode, w.autoClear)
			t.event = Success
			t.state = Ready
			k.ready.insert(t)
		}
		t = next
	}
	k.requestDispatch()
}

// Destroy releases the flag; blocked Take callers wake with Deleted.
func (f *Flag) Destroy() {
	k := f.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	f.release()
}
