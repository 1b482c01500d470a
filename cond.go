package rtkernel

import "context"

// Cond is a condition variable bound at each Wait call to an externally
// held Mutex, grounded in sync.Cond's own shape: Wait atomically releases
// the mutex and parks caller, then reacquires the mutex before
// returning, exactly as sync.Cond.Wait does.
type Cond struct {
	Obj
}

// NewCond creates a Cond with no associated mutex; callers pass whichever
// Mutex is protecting their predicate to each Wait call, the same way
// POSIX condition variables are rebindable across calls (unlike
// sync.Cond, which fixes the lock at construction).
func (k *Kernel) NewCond(opts ...ObjOption) *Cond {
	cfg := resolveObjOptions(opts)
	c := &Cond{}
	c.Obj.init(k, cfg.tag, cfg.ownership, nil)
	return c
}

// Wait releases m, blocks caller until Signal/Broadcast or ctx's deadline,
// then reacquires m before returning. The reacquire is unconditional and
// blocking -- spurious wakes must be safe to loop on, as with any
// condition variable -- so even a Timeout/Stopped/Deleted outcome still
// reacquires m first, leaving the caller holding the lock it started
// with.
func (c *Cond) Wait(caller *Task, m *Mutex, ctx context.Context) Event {
	k := c.Obj.k
	k.lock.Lock()
	m.releaseLocked(caller)
	ev := k.waitFor(caller, &c.Obj.wq, ctx)
	k.lock.Unlock()

	if aev := m.Acquire(caller, context.Background()); aev != Success && ev == Success {
		ev = aev
	}
	return ev
}

// Signal wakes the highest-priority waiter, if any.
func (c *Cond) Signal() {
	k := c.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	k.wakeOne(&c.Obj.wq, Success)
}

// Broadcast wakes every current waiter.
func (c *Cond) Broadcast() {
	k := c.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	k.wakeAll(&c.Obj.wq, Success)
}

// Destroy releases the condition variable; every blocked Wait caller
// wakes with Deleted (still reacquiring its mutex before returning).
func (c *Cond) Destroy() {
	k := c.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	c.release()
}
