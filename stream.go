package rtkernel

import "context"

// Stream is a byte-oriented ring buffer with no message boundaries:
// Receive may return fewer bytes than requested if that's all that's
// available, but Send is all-or-nothing -- it blocks until the whole
// payload fits, rather than silently partial-writing a caller's buffer.
// Push is the ISR-context, never-blocks counterpart: it writes as many
// bytes as currently fit and reports how many, but never queues the
// caller or disturbs the ready/wait queues.
//
// Push never satisfies a blocked Send -- only a Receive freeing space
// does. Calling Push while a task is already blocked in Send is
// therefore a contract violation (the producer side should be
// exclusively ISR-push XOR task-send, never both) and is reported via
// the assertion path, which panics.
type Stream struct {
	Obj

	senders waitQueue
	buf     []byte
	head    int
	count   int
}

// NewStream creates a Stream with the given byte capacity.
func (k *Kernel) NewStream(capacity int, opts ...ObjOption) *Stream {
	cfg := resolveObjOptions(opts)
	s := &Stream{buf: make([]byte, capacity)}
	s.Obj.init(k, cfg.tag, cfg.ownership, nil)
	return s
}

// Avail returns the number of bytes currently queued.
func (s *Stream) Avail() int {
	k := s.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	return s.count
}

func (s *Stream) free() int { return len(s.buf) - s.count }

// Send blocks caller until the whole of data fits, then writes it, or
// returns early if ctx's deadline elapses.
func (s *Stream) Send(caller *Task, data []byte, ctx context.Context) Event {
	k := s.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	for {
		if s.released() {
			return Deleted
		}
		if s.free() >= len(data) {
			s.writeLocked(data)
			k.wakeOne(&s.Obj.wq, Success)
			return Success
		}
		if ev := k.waitFor(caller, &s.senders, ctx); ev != Success {
			return ev
		}
	}
}

// Push writes as many bytes of data as currently fit without blocking,
// for use from ISR context. It is a contract violation to call Push while
// any task is blocked in Send on this stream.
func (s *Stream) Push(data []byte) int {
	k := s.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if s.released() {
		return 0
	}
	if !s.senders.empty() {
		k.lock.Unlock()
		k.assertf("Stream.Push", WrapError("push with a blocked sender pending", ErrWrongOwner))
		k.lock.Lock()
		return 0
	}
	n := s.free()
	if n > len(data) {
		n = len(data)
	}
	if n == 0 {
		return 0
	}
	s.writeLocked(data[:n])
	k.wakeOne(&s.Obj.wq, Success)
	return n
}

// Receive blocks caller while the stream is empty, then reads up to
// len(dst) bytes (possibly fewer), or returns early if ctx's deadline
// elapses.
func (s *Stream) Receive(caller *Task, dst []byte, ctx context.Context) (int, Event) {
	k := s.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	for {
		if s.count > 0 {
			n := s.readLocked(dst)
			k.wakeOne(&s.senders, Success)
			return n, Success
		}
		if s.released() {
			return 0, Deleted
		}
		if ev := k.waitFor(caller, &s.Obj.wq, ctx); ev != Success {
			return 0, ev
		}
	}
}

func (s *Stream) writeLocked(data []byte) {
	for _, b := range data {
		tail := (s.head + s.count) % len(s.buf)
		s.buf[tail] = b
		s.count++
	}
}

func (s *Stream) readLocked(dst []byte) int {
	n := len(dst)
	if n > s.count {
		n = s.count
	}
	for i := 0; i < n; i++ {
		dst[i] = s.buf[s.head]
		s.head = (s.head + 1) % len(s.buf)
		s.count--
	}
	return n
}

// Destroy releases the stream; blocked Send and Receive callers both wake
// with Deleted.
func (s *Stream) Destroy() {
	k := s.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if s.released() {
		return
	}
	k.wakeAll(&s.senders, Deleted)
	s.release()
}
