package rtkernel

// ownership describes how an object's memory was obtained, mirroring the
// STATIC/DYNAMIC split every StateOS object header carries: it governs
// whether Destroy/Delete may free the backing memory, and whether a
// RELEASED object is safe to reuse.
type ownership uint8

const (
	ownStatic ownership = iota
	ownDynamic
	ownReleased
)

// Obj is the common header embedded by every kernel object: tasks, timers,
// and every synchronization primitive. It carries the identity tag used in
// log lines and the wait queue of tasks parked on this object.
//
// Obj is not safe for use outside of its owning Kernel's lock.
type Obj struct {
	k    *Kernel
	tag  string
	own  ownership
	wq   waitQueue
	freed func()
}

func (o *Obj) init(k *Kernel, tag string, own ownership, free func()) {
	o.k = k
	o.tag = tag
	o.own = own
	o.freed = free
}

// Tag returns the object's identity, used only for logging/diagnostics.
func (o *Obj) Tag() string { return o.tag }

// released reports whether Destroy/Delete already tore this object down;
// further operations on it must return Deleted rather than touch state.
func (o *Obj) released() bool { return o.own == ownReleased }

// release marks the object released and wakes every waiter with Deleted.
// Must be called with the owning Kernel's lock held.
func (o *Obj) release() {
	if o.released() {
		return
	}
	o.own = ownReleased
	o.k.wakeAll(&o.wq, Deleted)
	if o.freed != nil {
		o.freed()
	}
}
