package rtkernel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-rtkernel/port"
)

// Kernel is a single-CPU preemptive scheduler core: one ready queue, one
// timing list shared by delayed tasks and standalone timers, and one
// global critical section standing in for "raise the interrupt mask".
// Every exported operation that touches scheduler state takes
// Kernel.lock for its duration; ISR-suffixed methods are the only ones
// meant to be called without a current task in scope.
type Kernel struct {
	id uint64

	lock sync.Mutex

	port       port.Port
	logger     Logger
	faults     *faultLog
	allocator  Allocator

	ready  readyQueue
	timing *timingList

	tick       uint64
	tickPeriod time.Duration
	roundRobin bool
	sliceTicks uint64
	tickless   bool

	cur  *Task
	idle *Task

	idlePrio uint8
	maxPrio  uint8

	terminated bool
}

var kernelIDCounter atomic.Uint64

// NewKernel constructs a Kernel and its idle task, wires the configured
// Port's tick-less alarm callback (if applicable), and performs
// Port.SysInit. The kernel starts un-terminated with only the idle task
// runnable; callers create and Start their own tasks and then drive
// Kernel.Tick themselves (directly or from a Port's tick source).
func NewKernel(opts ...KernelOption) *Kernel {
	cfg := resolveKernelOptions(opts)
	k := &Kernel{
		id:         kernelIDCounter.Add(1),
		port:       cfg.port,
		logger:     cfg.logger,
		allocator:  cfg.allocator,
		timing:     newTimingList(),
		roundRobin: cfg.roundRobin,
		sliceTicks: cfg.sliceTicks,
		tickless:   cfg.tickless,
		tickPeriod: time.Millisecond,
		idlePrio:   cfg.idlePrio,
		maxPrio:    cfg.maxPrio,
	}
	k.faults = newFaultLog(k.logger, k.id)

	k.idle = k.NewTask(k.idlePrio, func(t *Task) {
		for {
			k.port.WaitForInterrupt()
			k.idleYield(t)
		}
	})

	if setter, ok := k.port.(port.AlarmHandlerSetter); ok && k.tickless {
		setter.SetAlarmHandler(k.onAlarm)
	}

	k.lock.Lock()
	k.startTaskLocked(k.idle, k.idle.entry)
	k.lock.Unlock()

	k.port.SysInit()
	k.logf(LevelInfo, "kernel", 0, "kernel %d initialized (roundRobin=%v tickless=%v)", k.id, k.roundRobin, k.tickless)
	return k
}

// Allocator returns the kernel's configured dynamic-object Allocator.
func (k *Kernel) Allocator() Allocator { return k.allocator }

// Current returns the task the dispatcher currently regards as running.
// Never nil once NewKernel has returned (it is at least the idle task).
func (k *Kernel) Current() *Task {
	k.lock.Lock()
	defer k.lock.Unlock()
	return k.cur
}

// Tick advances the kernel's notion of time by one unit and processes any
// timing-list entries that have reached their deadline. Used in ticked
// mode (the default); in tick-less mode the Port's alarm callback
// (onAlarm) drives this instead and Tick is unused.
func (k *Kernel) Tick() {
	k.lock.Lock()
	defer k.lock.Unlock()
	if k.terminated {
		return
	}
	k.tick++
	if k.cur != nil {
		k.cur.ticksRun++
	}
	k.tmrHandler()
}

// onAlarm is wired as the Port's alarm callback in tick-less mode: it
// resyncs the kernel's tick counter from the Port's free-running counter,
// processes every expired entry, and re-arms the next alarm.
func (k *Kernel) onAlarm() {
	k.lock.Lock()
	defer k.lock.Unlock()
	if k.terminated {
		return
	}
	k.tick = k.port.TickNow()
	k.tmrHandler()
	if h := k.timing.head(); h != nil {
		k.port.AlarmSet(h.deadline)
	} else {
		k.port.AlarmClear()
	}
}

// tmrHandler drains every timing-list entry whose deadline has passed,
// waking delayed/blocked-with-deadline tasks with Timeout and firing (and,
// if periodic, reloading) standalone Timers. Must be called with the lock
// held. Equivalent to the source RTOS's tick ISR handler.
func (k *Kernel) tmrHandler() {
	for {
		h := k.timing.head()
		if h == nil || h.deadline > k.tick {
			break
		}
		k.timing.detachHead()
		switch owner := h.owner.(type) {
		case *Task:
			if owner.waitQ != nil {
				owner.waitQ.remove(owner)
			}
			owner.event = Timeout
			owner.state = Ready
			k.ready.insert(owner)
		case *Timer:
			k.fireTimerLocked(owner)
		}
	}
	if k.roundRobin {
		k.checkSlice()
	}
	k.requestDispatch()
}

// fireTimerLocked runs a due Timer's callback (ISR-equivalent context: a
// panicking callback is contained so one bad timer cannot wedge the tick
// path), wakes its Take waiters, and either reloads it (periodic,
// drift-free: requeued at prevDeadline+period rather than now+period) or
// marks it stopped.
func (k *Kernel) fireTimerLocked(tm *Timer) {
	cb := tm.callback
	if cb != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					k.logf(LevelError, "timer", 0, "timer callback panicked: %v", r)
				}
			}()
			cb()
		}()
	}
	if tm.period > 0 && !tm.released() {
		tm.Hdr.deadline += tm.period
		k.timing.insert(&tm.Hdr)
		k.wakeAll(&tm.Obj.wq, Success)
		return
	}
	tm.running = false
	k.wakeAll(&tm.Obj.wq, Success)
}

// checkSlice implements round-robin fairness: the current task's slice
// counter is decremented once per tick; on reaching zero it is reloaded
// and the ready queue's equal-priority run is rotated, handing the next
// task of the same priority its turn. A single ready task at that
// priority makes rotation a no-op, matching real round-robin behavior
// under no contention.
func (k *Kernel) checkSlice() {
	if k.cur == nil || k.cur == k.idle {
		return
	}
	if k.cur.slice == 0 {
		return
	}
	k.cur.slice--
	if k.cur.slice == 0 {
		k.ready.rotateHead()
		k.cur.slice = k.cur.sliceInit
	}
}

// requestDispatch re-evaluates the ready queue head and hands the token
// to it if it differs from the current task. Must be called with the
// lock held; never blocks.
func (k *Kernel) requestDispatch() {
	head := k.ready.peek()
	if head == nil {
		head = k.idle
	}
	if head == k.cur {
		return
	}
	k.port.RequestSwitch()
	prev := k.cur
	k.cur = head
	head.runCount++
	head.lastRunTick = k.tick
	k.logf(LevelDebug, "dispatch", head.id, "switch from task %d", taskID(prev))
	select {
	case head.runSignal <- struct{}{}:
	default:
	}
}

// idleYield lets the idle task's goroutine check, between sleeps, whether
// a non-idle task became ready in the meantime; if so it hands off and
// parks until redispatched, standing in for hardware preemption of idle.
func (k *Kernel) idleYield(t *Task) {
	k.lock.Lock()
	k.requestDispatch()
	if k.cur != t {
		k.lock.Unlock()
		<-t.runSignal
		k.lock.Lock()
	}
	k.lock.Unlock()
}

func taskID(t *Task) uint64 {
	if t == nil {
		return 0
	}
	return t.id
}

// Yield voluntarily gives up the remainder of the caller's time slice to
// the next ready task of equal priority, if any, then waits its turn to
// resume. Must be called by t's own goroutine while t == Kernel.Current().
func (k *Kernel) Yield(t *Task) {
	k.lock.Lock()
	rotated := k.ready.rotateHead()
	if rotated {
		k.requestDispatch()
	}
	if k.cur == t {
		k.lock.Unlock()
		return
	}
	k.lock.Unlock()
	<-t.runSignal
	k.lock.Lock()
	k.lock.Unlock()
}

// deadlineTicks converts a context.Context's wall-clock deadline, if any,
// into an absolute tick count using the kernel's configured tickPeriod.
// ok is false for a context with no deadline (INFINITE).
func (k *Kernel) deadlineTicks(ctx context.Context) (ticks uint64, ok bool) {
	dl, has := ctx.Deadline()
	if !has {
		return 0, false
	}
	d := time.Until(dl)
	if d <= 0 {
		return k.tick, true
	}
	return k.tick + uint64(d/k.tickPeriod) + 1, true
}

// Immediate returns a context whose deadline has already elapsed: passed
// to any primitive's blocking operation, it selects StateOS's IMMEDIATE
// semantics -- try the fast path, and return Timeout at once rather than
// ever queuing the caller. context.Background() (or any Context with no
// deadline) selects INFINITE instead.
func Immediate() context.Context {
	ctx, cancel := context.WithDeadline(context.Background(), time.Unix(0, 0))
	cancel()
	return ctx
}

// waitFor blocks caller on q until woken or, if ctx carries a deadline,
// until that deadline expires. Must be called with the lock held and
// caller == Kernel.Current(); returns with the lock re-acquired.
func (k *Kernel) waitFor(caller *Task, q *waitQueue, ctx context.Context) Event {
	if ticks, has := k.deadlineTicks(ctx); has {
		if ticks <= k.tick {
			return Timeout
		}
		caller.state = Blocked
		caller.event = Timeout
		k.ready.remove(caller)
		q.enqueue(caller)
		caller.Hdr.owner = caller
		caller.Hdr.deadline = ticks
		k.timing.insert(&caller.Hdr)
	} else {
		caller.state = Blocked
		caller.event = Timeout
		k.ready.remove(caller)
		q.enqueue(caller)
	}
	if k.cur == caller {
		k.cur = nil
	}
	k.requestDispatch()
	k.lock.Unlock()
	<-caller.runSignal
	k.lock.Lock()
	return caller.event
}

// sleepUntil parks caller (Delayed, not on any wait queue) until the given
// absolute tick, or forever if never cancelled -- the primitive behind
// SleepFor/SleepUntil. Must be called with the lock held and
// caller == Kernel.Current().
func (k *Kernel) sleepUntil(caller *Task, deadline uint64) {
	caller.state = Delayed
	k.ready.remove(caller)
	caller.Hdr.owner = caller
	caller.Hdr.deadline = deadline
	k.timing.insert(&caller.Hdr)
	if k.cur == caller {
		k.cur = nil
	}
	k.requestDispatch()
	k.lock.Unlock()
	<-caller.runSignal
	k.lock.Lock()
}

// SleepFor delays the caller for delay ticks.
func (k *Kernel) SleepFor(caller *Task, delay uint64) {
	k.lock.Lock()
	defer k.lock.Unlock()
	k.sleepUntil(caller, k.tick+delay)
}

// SleepUntil delays the caller until the given absolute tick.
func (k *Kernel) SleepUntil(caller *Task, deadline uint64) {
	k.lock.Lock()
	defer k.lock.Unlock()
	k.sleepUntil(caller, deadline)
}

// Shutdown marks the kernel terminated: further Tick/onAlarm calls are
// no-ops. It does not forcibly stop tasks; callers that need a clean
// shutdown should Stop/Destroy their tasks first.
func (k *Kernel) Shutdown() {
	k.lock.Lock()
	defer k.lock.Unlock()
	k.terminated = true
	k.logf(LevelInfo, "kernel", 0, "kernel %d shut down", k.id)
}
