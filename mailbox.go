package rtkernel

import "context"

// Mailbox is a fixed-capacity FIFO of whole messages passed by reference
// (generalized from the source RTOS's fixed-size byte mailbox to an
// `any` payload -- idiomatic Go has no use for manual byte packing when
// the channel-like queue already only ever holds one well-typed message
// at a time per slot). Send blocks while full;
// Receive blocks while empty. Obj's wait queue holds blocked receivers;
// blocked senders get their own queue since the two conditions are
// independent.
type Mailbox struct {
	Obj

	senders waitQueue
	buf     []any
	head    int
	count   int
}

// NewMailbox creates a Mailbox holding up to capacity messages.
func (k *Kernel) NewMailbox(capacity int, opts ...ObjOption) *Mailbox {
	cfg := resolveObjOptions(opts)
	m := &Mailbox{buf: make([]any, capacity)}
	m.Obj.init(k, cfg.tag, cfg.ownership, nil)
	return m
}

// Len returns the number of messages currently queued.
func (m *Mailbox) Len() int {
	k := m.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	return m.count
}

// Send blocks caller while the mailbox is full, then enqueues msg, or
// returns early if ctx's deadline elapses.
func (m *Mailbox) Send(caller *Task, msg any, ctx context.Context) Event {
	k := m.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	for {
		if m.released() {
			return Deleted
		}
		if m.count < len(m.buf) {
			m.pushLocked(msg)
			k.wakeOne(&m.Obj.wq, Success)
			return Success
		}
		if ev := k.waitFor(caller, &m.senders, ctx); ev != Success {
			return ev
		}
	}
}

// Receive blocks caller while the mailbox is empty, then dequeues the
// oldest message, or returns early if ctx's deadline elapses.
func (m *Mailbox) Receive(caller *Task, ctx context.Context) (any, Event) {
	k := m.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	for {
		if m.count > 0 {
			msg := m.popLocked()
			k.wakeOne(&m.senders, Success)
			return msg, Success
		}
		if m.released() {
			return nil, Deleted
		}
		if ev := k.waitFor(caller, &m.Obj.wq, ctx); ev != Success {
			return nil, ev
		}
	}
}

func (m *Mailbox) pushLocked(msg any) {
	tail := (m.head + m.count) % len(m.buf)
	m.buf[tail] = msg
	m.count++
}

func (m *Mailbox) popLocked() any {
	msg := m.buf[m.head]
	m.buf[m.head] = nil
	m.head = (m.head + 1) % len(m.buf)
	m.count--
	return msg
}

// Destroy releases the mailbox; blocked Send and Receive callers both
// wake with Deleted.
func (m *Mailbox) Destroy() {
	k := m.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if m.released() {
		return
	}
	k.wakeAll(&m.senders, Deleted)
	m.release()
}
