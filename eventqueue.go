package rtkernel

import "context"

// EventQueue is a fixed-capacity FIFO of discrete events, distinguished
// from Mailbox by its ISR-safe non-blocking producer side
// (TrySend): event sources are commonly interrupt handlers that cannot
// block, whereas Mailbox models task-to-task handoff where both ends are
// expected to be ordinary tasks.
type EventQueue struct {
	Obj

	senders waitQueue
	buf     []any
	head    int
	count   int
}

// NewEventQueue creates an EventQueue holding up to capacity events.
func (k *Kernel) NewEventQueue(capacity int, opts ...ObjOption) *EventQueue {
	cfg := resolveObjOptions(opts)
	q := &EventQueue{buf: make([]any, capacity)}
	q.Obj.init(k, cfg.tag, cfg.ownership, nil)
	return q
}

// Len returns the number of events currently queued.
func (q *EventQueue) Len() int {
	k := q.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	return q.count
}

// Send blocks caller while the queue is full, then enqueues ev, or
// returns early if ctx's deadline elapses.
func (q *EventQueue) Send(caller *Task, ev any, ctx context.Context) Event {
	k := q.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	for {
		if q.released() {
			return Deleted
		}
		if q.count < len(q.buf) {
			q.pushLocked(ev)
			k.wakeOne(&q.Obj.wq, Success)
			return Success
		}
		if outcome := k.waitFor(caller, &q.senders, ctx); outcome != Success {
			return outcome
		}
	}
}

// TrySend is the ISR-safe, never-blocking producer path: it enqueues ev
// and reports true, or reports false immediately if the queue is full.
func (q *EventQueue) TrySend(ev any) bool {
	k := q.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if q.released() || q.count == len(q.buf) {
		return false
	}
	q.pushLocked(ev)
	k.wakeOne(&q.Obj.wq, Success)
	return true
}

// Receive blocks caller while the queue is empty, then dequeues the
// oldest event, or returns early if ctx's deadline elapses.
func (q *EventQueue) Receive(caller *Task, ctx context.Context) (any, Event) {
	k := q.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	for {
		if q.count > 0 {
			ev := q.popLocked()
			k.wakeOne(&q.senders, Success)
			return ev, Success
		}
		if q.released() {
			return nil, Deleted
		}
		if outcome := k.waitFor(caller, &q.Obj.wq, ctx); outcome != Success {
			return nil, outcome
		}
	}
}

func (q *EventQueue) pushLocked(ev any) {
	tail := (q.head + q.count) % len(q.buf)
	q.buf[tail] = ev
	q.count++
}

func (q *EventQueue) popLocked() any {
	ev := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return ev
}

// Destroy releases the queue; blocked Send and Receive callers both wake
// with Deleted.
func (q *EventQueue) Destroy() {
	k := q.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if q.released() {
		return
	}
	k.wakeAll(&q.senders, Deleted)
	q.release()
}
