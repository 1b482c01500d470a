package rtkernel

import "context"

// RWLock is a reader-writer lock: any number of
// readers may hold it concurrently, but a writer requires exclusive
// access. Writer-preferring: once a writer is waiting, new readers queue
// behind it too, so a steady stream of readers cannot starve a writer.
// Obj's wait queue holds blocked writers; readers get their own queue.
type RWLock struct {
	Obj

	readers        waitQueue
	activeReaders  int
	writerActive   bool
	waitingWriters int
}

// NewRWLock creates an unlocked RWLock.
func (k *Kernel) NewRWLock(opts ...ObjOption) *RWLock {
	cfg := resolveObjOptions(opts)
	rw := &RWLock{}
	rw.Obj.init(k, cfg.tag, cfg.ownership, nil)
	return rw
}

// RLock blocks caller while a writer holds or is waiting for the lock,
// then registers caller as an active reader, or returns early if ctx's
// deadline elapses.
func (rw *RWLock) RLock(caller *Task, ctx context.Context) Event {
	k := rw.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	for {
		if rw.released() {
			return Deleted
		}
		if !rw.writerActive && rw.waitingWriters == 0 {
			rw.activeReaders++
			return Success
		}
		if ev := k.waitFor(caller, &rw.readers, ctx); ev != Success {
			return ev
		}
	}
}

// RUnlock releases one reader's hold; if it was the last active reader,
// a waiting writer (if any) is woken to re-check and take the lock.
func (rw *RWLock) RUnlock() {
	k := rw.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if rw.activeReaders > 0 {
		rw.activeReaders--
	}
	if rw.activeReaders == 0 {
		k.wakeOne(&rw.Obj.wq, Success)
	}
}

// Lock blocks caller until no reader or writer holds the lock, then
// takes it exclusively, or returns early if ctx's deadline elapses.
func (rw *RWLock) Lock(caller *Task, ctx context.Context) Event {
	k := rw.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	rw.waitingWriters++
	for {
		if rw.released() {
			rw.waitingWriters--
			return Deleted
		}
		if !rw.writerActive && rw.activeReaders == 0 {
			rw.waitingWriters--
			rw.writerActive = true
			return Success
		}
		if ev := k.waitFor(caller, &rw.Obj.wq, ctx); ev != Success {
			rw.waitingWriters--
			return ev
		}
	}
}

// Unlock releases exclusive ownership, preferring to wake the next
// waiting writer; with none waiting, every blocked reader is woken.
func (rw *RWLock) Unlock() {
	k := rw.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	rw.writerActive = false
	if !rw.Obj.wq.empty() {
		k.wakeOne(&rw.Obj.wq, Success)
		return
	}
	k.wakeAll(&rw.readers, Success)
}

// Destroy releases the lock; every blocked RLock/Lock caller wakes with
// Deleted.
func (rw *RWLock) Destroy() {
	k := rw.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if rw.released() {
		return
	}
	k.wakeAll(&rw.readers, Deleted)
	rw.release()
}
