package rtkernel

import "context"

// JobQueue is a fixed-capacity FIFO of callables, grounded in the source
// RTOS's job-queue-as-thread-pool pattern: Submit hands work to whichever
// worker task next calls RunOne, rather than a value needing to be
// unpacked/dispatched by the consumer itself as with EventQueue.
type JobQueue struct {
	Obj

	senders waitQueue
	buf     []func()
	head    int
	count   int
}

// NewJobQueue creates a JobQueue holding up to capacity pending jobs.
func (k *Kernel) NewJobQueue(capacity int, opts ...ObjOption) *JobQueue {
	cfg := resolveObjOptions(opts)
	q := &JobQueue{buf: make([]func(), capacity)}
	q.Obj.init(k, cfg.tag, cfg.ownership, nil)
	return q
}

// Len returns the number of jobs currently queued.
func (q *JobQueue) Len() int {
	k := q.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	return q.count
}

// Submit blocks caller while the queue is full, then enqueues job, or
// returns early if ctx's deadline elapses.
func (q *JobQueue) Submit(caller *Task, job func(), ctx context.Context) Event {
	k := q.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	for {
		if q.released() {
			return Deleted
		}
		if q.count < len(q.buf) {
			q.pushLocked(job)
			k.wakeOne(&q.Obj.wq, Success)
			return Success
		}
		if ev := k.waitFor(caller, &q.senders, ctx); ev != Success {
			return ev
		}
	}
}

// RunOne blocks caller (a worker task) while the queue is empty, then
// dequeues and executes exactly one job, recovering a panicking job
// rather than letting it take the worker task down. Returns early if
// ctx's deadline elapses before a job is available.
func (q *JobQueue) RunOne(caller *Task, ctx context.Context) Event {
	k := q.Obj.k
	k.lock.Lock()
	for {
		if q.count > 0 {
			job := q.popLocked()
			k.wakeOne(&q.senders, Success)
			k.lock.Unlock()
			runJobSafely(job)
			return Success
		}
		if q.released() {
			k.lock.Unlock()
			return Deleted
		}
		if ev := k.waitFor(caller, &q.Obj.wq, ctx); ev != Success {
			k.lock.Unlock()
			return ev
		}
	}
}

func runJobSafely(job func()) {
	if job == nil {
		return
	}
	defer func() { recover() }()
	job()
}

func (q *JobQueue) pushLocked(job func()) {
	tail := (q.head + q.count) % len(q.buf)
	q.buf[tail] = job
	q.count++
}

func (q *JobQueue) popLocked() func() {
	job := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return job
}

// Destroy releases the queue; blocked Submit and RunOne callers both
// wake with Deleted.
func (q *JobQueue) Destroy() {
	k := q.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if q.released() {
		return
	}
	k.wakeAll(&q.senders, Deleted)
	q.release()
}
