package rtkernel

import "context"

// Hdr is the timing header embedded by every entity that can sit in the
// kernel's deadline-sorted timing list: tasks delayed or blocked-with-
// deadline, and standalone Timer objects. A single list and a
// single tick handler drive both, exactly as in the source RTOS.
type Hdr struct {
	deadline uint64 // absolute tick at which this entry expires
	owner    any    // *Task or *Timer; whoever tmrHandler should act on
	inList   bool
	tlNext, tlPrev *Hdr
}

// timingList is a circular, sentinel-headed, deadline-ordered doubly
// linked list. Ties are broken FIFO by insertion order, matching the
// ready/wait queues' own tie-breaking rule.
type timingList struct {
	sentinel Hdr
}

func newTimingList() *timingList {
	l := &timingList{}
	l.sentinel.tlNext = &l.sentinel
	l.sentinel.tlPrev = &l.sentinel
	return l
}

func (l *timingList) empty() bool { return l.sentinel.tlNext == &l.sentinel }

func (l *timingList) head() *Hdr {
	if l.empty() {
		return nil
	}
	return l.sentinel.tlNext
}

func (l *timingList) insert(h *Hdr) {
	if h.inList {
		l.remove(h)
	}
	cur := l.sentinel.tlNext
	for cur != &l.sentinel && cur.deadline <= h.deadline {
		cur = cur.tlNext
	}
	prev := cur.tlPrev
	h.tlPrev, h.tlNext = prev, cur
	prev.tlNext = h
	cur.tlPrev = h
	h.inList = true
}

func (l *timingList) remove(h *Hdr) {
	if !h.inList {
		return
	}
	h.tlPrev.tlNext = h.tlNext
	h.tlNext.tlPrev = h.tlPrev
	h.tlNext, h.tlPrev = nil, nil
	h.inList = false
}

func (l *timingList) detachHead() *Hdr {
	h := l.head()
	if h == nil {
		return nil
	}
	l.remove(h)
	return h
}

// Timer is a standalone one-shot or periodic alarm, independent of any
// task -- a first-class handle the way the source RTOS's tmr_t is a
// peer of tsk_t rather than a detail buried inside it.
type Timer struct {
	Obj
	Hdr

	period   uint64
	callback func()
	running  bool
}

// NewTimer allocates a Timer. The returned handle starts idle; call Start
// or StartUntil to arm it.
func (k *Kernel) NewTimer(opts ...ObjOption) *Timer {
	cfg := resolveObjOptions(opts)
	t := &Timer{}
	t.Obj.init(k, cfg.tag, cfg.ownership, nil)
	t.Hdr.owner = t
	return t
}

// Start arms the timer delay ticks from now, then (if period is nonzero)
// reloads it every period ticks thereafter until Stop. callback runs on
// the kernel's tick-processing path (ISR-equivalent context) with the
// kernel lock held: keep it short and non-blocking, and do not call back
// into Kernel or object methods from it.
func (t *Timer) Start(delay, period uint64, callback func()) {
	k := t.Obj.k
	k.lock.Lock()
	deadline := k.tick + delay
	k.lock.Unlock()
	t.StartUntil(deadline, period, callback)
}

// StartUntil arms the timer for the given absolute tick.
func (t *Timer) StartUntil(deadline uint64, period uint64, callback func()) {
	k := t.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if t.released() {
		return
	}
	t.period = period
	t.callback = callback
	t.running = true
	t.Hdr.deadline = deadline
	k.timing.insert(&t.Hdr)
}

// Stop disarms the timer and wakes any task parked in Take with Stopped.
func (t *Timer) Stop() {
	k := t.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	t.stopLocked(Stopped)
}

func (t *Timer) stopLocked(ev Event) {
	k := t.Obj.k
	k.timing.remove(&t.Hdr)
	t.running = false
	k.wakeAll(&t.Obj.wq, ev)
}

// Take blocks the calling task until the timer next fires or is stopped,
// or ctx's deadline elapses. One-shot timers resolve every Take waiter on
// expiry; periodic timers resolve the waiters present at each reload.
func (t *Timer) Take(caller *Task, ctx context.Context) Event {
	k := t.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if t.released() {
		return Deleted
	}
	if !t.running {
		return Success
	}
	return k.waitFor(caller, &t.Obj.wq, ctx)
}

// Destroy releases the timer: pending Take callers wake with Deleted.
func (t *Timer) Destroy() {
	k := t.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	k.timing.remove(&t.Hdr)
	t.release()
}
