package rtkernel

import (
	"context"
	"runtime"
	"sync/atomic"
)

// Task is a schedulable thread of control. It embeds Obj (the
// common object header: identity tag, ownership, wait queue of joiners)
// and Hdr (the timing header used while Delayed or Blocked-with-deadline).
//
// Go cannot give a goroutine a real private machine stack to switch onto
// the way a port.Port does on bare metal. Instead, each run of a task's
// entry point gets its own goroutine, started fresh by Start/Flip and
// gated on runSignal: it blocks immediately on creation and only actually
// executes app code once the dispatcher has made this task Kernel.cur and
// signalled it. Self-termination (Exit) and self-restart (Flip) use
// runtime.Goexit after their bookkeeping, the same way a bare-metal
// tsk_stop/tsk_flip never returns to its caller -- the unwound goroutine
// is simply discarded rather than reused, and a fresh one takes over if
// the task is Started again. "The CPU" belongs to whichever Task is
// Kernel.cur; every other Task's goroutine is parked on its own
// runSignal, so at most one is ever actually running application code at
// a time.
type Task struct {
	Obj
	Hdr

	id    uint64
	state TaskState

	entry     func(*Task)
	stackSize uint32
	detached  bool

	basicPrio uint8
	prio      uint8

	slice     uint64
	sliceInit uint64

	event Event

	heldMutexes  *Mutex // singly-linked via Mutex.nextHeld, most-recent first
	waitsOnMutex *Mutex // non-nil while Blocked on a Mutex.Acquire

	// ready-queue intrusive links; valid only while state == Ready.
	rdNext, rdPrev *Task
	// wait-queue intrusive links; valid only while state == Blocked and
	// waitQ != nil.
	wqNext, wqPrev *Task
	waitQ          *waitQueue

	runSignal chan struct{}
	running   bool // a goroutine for this run is alive, parked or executing

	runCount    uint64
	ticksRun    uint64
	lastRunTick uint64
}

var taskIDCounter atomic.Uint64

// NewTask creates a task bound to this Kernel at the given priority,
// running entry once started. It begins Stopped; call Start to make it
// Ready.
func (k *Kernel) NewTask(prio uint8, entry func(*Task), opts ...TaskOption) *Task {
	cfg := resolveTaskOptions(opts)
	t := &Task{
		id:        taskIDCounter.Add(1),
		entry:     entry,
		stackSize: cfg.stackSize,
		detached:  cfg.detached,
		basicPrio: prio,
		prio:      prio,
		sliceInit: k.sliceTicks,
		slice:     k.sliceTicks,
		runSignal: make(chan struct{}, 1),
	}
	t.Obj.init(k, cfg.tag, ownDynamic, nil)
	t.Hdr.owner = t
	return t
}

// ID returns the task's identity, stable for its lifetime.
func (t *Task) ID() uint64 { return t.id }

// Prio returns the task's current (possibly inherited) priority.
func (t *Task) Prio() uint8 { return t.prio }

// BasicPrio returns the task's own priority, ignoring inheritance.
func (t *Task) BasicPrio() uint8 { return t.basicPrio }

// State returns the task's current scheduling state.
func (t *Task) State() TaskState { return t.state }

// LastEvent returns the outcome of the most recently completed blocking
// operation, or, once the task has stopped, the outcome it stopped with
// (Success for Exit or a return from entry, Stopped for Stop, Deleted for
// Destroy).
func (t *Task) LastEvent() Event { return t.event }

// RunCount returns how many times this task has been dispatched, and
// TicksRun how many tick intervals it was Kernel.cur for -- read-only
// diagnostics, not part of any scheduling decision.
func (t *Task) RunCount() uint64 { return t.runCount }

// TicksRun returns the cumulative number of ticks this task has spent as
// the current task.
func (t *Task) TicksRun() uint64 { return t.ticksRun }

// Start transitions a Stopped task to Ready, spawning a fresh goroutine
// for this run.
func (t *Task) Start() {
	k := t.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	k.startTaskLocked(t, t.entry)
}

// startTaskLocked is Start's body, reused by Flip/ForceFlip which already
// hold the lock and supply a possibly-different entry point.
func (k *Kernel) startTaskLocked(t *Task, entry func(*Task)) {
	if t.released() || t.state != Stopped {
		return
	}
	t.entry = entry
	t.state = Ready
	t.slice = t.sliceInit
	k.ready.insert(t)
	if !t.running {
		t.running = true
		go k.runTask(t)
	}
	k.requestDispatch()
}

// runTask is the body of a single run of a task: it parks on runSignal
// until the dispatcher grants it the CPU, executes entry exactly once,
// and then tears the run down (as if the task had called Exit) unless
// entry itself already did so via Exit/Flip/Stop/Destroy.
func (k *Kernel) runTask(t *Task) {
	defer func() {
		k.lock.Lock()
		t.running = false
		k.lock.Unlock()
	}()

	<-t.runSignal

	t.entry(t)

	k.lock.Lock()
	if !t.released() && t.state != Stopped {
		t.stopLocked(Success)
	}
	k.lock.Unlock()
}

// Exit is how a task ends its own run from inside entry, equivalent to
// StateOS's tsk_stop called on the running task itself: it never returns
// to its caller. Joiners wake with Success. Calling Exit on a task other
// than the caller's own is a misuse; use Stop instead.
func (t *Task) Exit() {
	k := t.Obj.k
	k.lock.Lock()
	t.stopLocked(Success)
	k.lock.Unlock()
	runtime.Goexit()
}

// Stop halts a task -- typically a different one than the caller -- that
// is running, ready, delayed, or blocked; joiners wake with Stopped. A
// detached task is destroyed outright (Obj released) as soon as it stops.
// Unlike Exit, Stop returns normally: calling it on the task currently
// executing does not interrupt that goroutine's control flow.
func (t *Task) Stop() {
	k := t.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if t.released() || t.state == Stopped {
		return
	}
	t.stopLocked(Stopped)
}

func (t *Task) stopLocked(ev Event) {
	k := t.Obj.k
	switch t.state {
	case Ready:
		k.ready.remove(t)
	case Blocked, Delayed:
		if t.waitQ != nil {
			t.waitQ.remove(t)
		}
		k.timing.remove(&t.Hdr)
	}
	t.releaseHeldMutexesLocked()
	t.state = Stopped
	t.event = ev
	k.wakeAll(&t.Obj.wq, ev)
	if k.cur == t {
		k.cur = nil
	}
	if t.detached {
		t.release()
	}
	k.requestDispatch()
}

// Destroy releases the task's object identity outright: joiners wake with
// Deleted, and the task may never Start again. Safe to call regardless of
// current state.
func (t *Task) Destroy() {
	k := t.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if t.released() {
		return
	}
	if t.state != Stopped {
		t.stopLocked(Deleted)
	} else {
		k.wakeAll(&t.Obj.wq, Deleted)
	}
	t.release()
}

// Reset returns a Stopped task to its just-created state (basic priority
// restored, no pending outcome) without releasing its identity. Reset
// only applies to an already-Stopped task; resetting a running task
// means Stop then Reset.
func (t *Task) Reset() {
	k := t.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if t.released() || t.state != Stopped {
		return
	}
	t.prio = t.basicPrio
	t.slice = t.sliceInit
	t.event = Success
}

// Suspend removes a task from scheduling without releasing it; modeled as
// a Blocked task parked on its own Obj.wq, so Resume is just a wake.
func (t *Task) Suspend() {
	k := t.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if t.released() || t.state != Ready {
		return
	}
	k.ready.remove(t)
	t.state = Blocked
	t.Obj.wq.enqueue(t)
	if k.cur == t {
		k.cur = nil
	}
	k.requestDispatch()
}

// Resume undoes a prior Suspend. A no-op if the task is not suspended.
func (t *Task) Resume() {
	k := t.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if t.released() || t.state != Blocked || t.waitQ != &t.Obj.wq {
		return
	}
	k.cancel(t, Success)
}

// SetPrio changes the task's basic priority. If the task currently holds
// no mutex, the effective priority changes immediately; otherwise the
// effective priority is recomputed as the highest of the new basic
// priority and the ceilings/inherited boosts of the mutexes it still holds,
// so a lower value takes effect once inheritance stops forcing a higher
// effective priority.
func (t *Task) SetPrio(prio uint8) {
	k := t.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if t.released() {
		return
	}
	t.basicPrio = prio
	if t.heldMutexes == nil {
		k.setEffectivePrioLocked(t, prio)
	} else {
		t.heldMutexes.restorePrioLocked(t)
	}
}

// setEffectivePrioLocked updates prio and re-threads t wherever it is
// currently queued, so ordering stays correct.
func (k *Kernel) setEffectivePrioLocked(t *Task, prio uint8) {
	if t.prio == prio {
		return
	}
	switch t.state {
	case Ready:
		k.ready.remove(t)
		t.prio = prio
		k.ready.insert(t)
		k.requestDispatch()
	case Blocked:
		if t.waitQ != nil {
			t.waitQ.remove(t)
			t.prio = prio
			t.waitQ.enqueue(t)
		} else {
			t.prio = prio
		}
	default:
		t.prio = prio
	}
}

// Flip ends the current run and immediately starts a new one at entry,
// without ever becoming visible to joiners as Stopped -- the caller must
// be the task's own currently-executing goroutine; like Exit, it never
// returns. It is a contract violation to Flip a task that currently holds
// any mutex: that panics via the assertion path instead. Use ForceFlip
// to release held mutexes first.
func (t *Task) Flip(entry func(*Task)) {
	k := t.Obj.k
	k.lock.Lock()
	if t.heldMutexes != nil {
		k.lock.Unlock()
		k.assertf("Task.Flip", ErrTaskHoldsMutexes)
		return
	}
	t.flipLocked(entry)
	k.lock.Unlock()
	runtime.Goexit()
}

// ForceFlip releases any mutexes the task holds (as if its owner died,
// waking the next waiter on each) and then flips it.
func (t *Task) ForceFlip(entry func(*Task)) {
	k := t.Obj.k
	k.lock.Lock()
	t.releaseHeldMutexesLocked()
	t.flipLocked(entry)
	k.lock.Unlock()
	runtime.Goexit()
}

func (t *Task) flipLocked(entry func(*Task)) {
	k := t.Obj.k
	k.ready.remove(t)
	t.state = Stopped
	if k.cur == t {
		k.cur = nil
	}
	k.startTaskLocked(t, entry)
}

// Join blocks the calling task until t exits, is stopped, or is destroyed,
// or until ctx's deadline elapses. Joining a task that is already Stopped
// returns Success at once.
func (t *Task) Join(caller *Task, ctx context.Context) Event {
	k := t.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if t.released() {
		return Deleted
	}
	if t.state == Stopped {
		return Success
	}
	return k.waitFor(caller, &t.Obj.wq, ctx)
}

func (t *Task) releaseHeldMutexesLocked() {
	for t.heldMutexes != nil {
		t.heldMutexes.forceReleaseLocked()
	}
}
