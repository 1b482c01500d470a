package rtkernel

import "context"

// Once ensures a single initialization action runs exactly once across
// any number of tasks that call Do concurrently, grounded in sync.Once's
// contract, reworked to block on the kernel's own
// wait queue instead of a raw futex so ordering stays priority-aware like
// every other primitive here).
type Once struct {
	Obj

	state   onceState
	fn      func()
	outcome Event
}

type onceState uint8

const (
	onceIdle onceState = iota
	onceRunning
	onceDone
)

// NewOnce creates a Once ready for its first Do call.
func (k *Kernel) NewOnce(opts ...ObjOption) *Once {
	cfg := resolveObjOptions(opts)
	o := &Once{}
	o.Obj.init(k, cfg.tag, cfg.ownership, nil)
	return o
}

// Do runs fn exactly once across the lifetime of o, regardless of which
// or how many tasks call Do, and regardless of the fn passed on any call
// after the first (only the first caller's fn ever runs, matching
// sync.Once). Every caller blocks until that single run completes, or
// until ctx's deadline elapses -- a caller that times out waiting still
// leaves the run in progress for everyone else.
func (o *Once) Do(caller *Task, fn func(), ctx context.Context) Event {
	k := o.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if o.released() {
		return Deleted
	}
	switch o.state {
	case onceDone:
		return Success
	case onceRunning:
		return k.waitFor(caller, &o.Obj.wq, ctx)
	}
	o.state = onceRunning
	o.fn = fn
	k.lock.Unlock()
	runOnceSafely(fn)
	k.lock.Lock()
	o.state = onceDone
	o.fn = nil
	k.wakeAll(&o.Obj.wq, Success)
	return Success
}

func runOnceSafely(fn func()) {
	if fn == nil {
		return
	}
	fn()
}

// Done reports whether the guarded action has completed.
func (o *Once) Done() bool {
	k := o.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	return o.state == onceDone
}

// Destroy releases the Once; any caller still blocked in Do wakes with
// Deleted.
func (o *Once) Destroy() {
	k := o.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	o.release()
}
