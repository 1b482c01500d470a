package rtkernel

import (
	"context"
	"encoding/binary"
)

// MsgBuf is a fixed-capacity byte ring buffer that preserves message
// boundaries (distinct from Mailbox which
// queues already-boxed `any` references rather than raw bytes, and from
// Stream which has no boundaries at all): each Send enqueues one
// length-prefixed frame atomically; each Receive dequeues exactly one
// whole frame.
type MsgBuf struct {
	Obj

	senders    waitQueue
	buf        []byte
	head       int
	count      int // bytes currently used, including framing overhead
	maxMsgSize int
}

const msgBufFrameOverhead = 4 // uint32 big-endian length prefix per frame

// NewMsgBuf creates a MsgBuf with capacity total bytes of storage
// (framing included), rejecting any single message over maxMsgSize.
func (k *Kernel) NewMsgBuf(capacity, maxMsgSize int, opts ...ObjOption) *MsgBuf {
	cfg := resolveObjOptions(opts)
	b := &MsgBuf{buf: make([]byte, capacity), maxMsgSize: maxMsgSize}
	b.Obj.init(k, cfg.tag, cfg.ownership, nil)
	return b
}

func (b *MsgBuf) free() int { return len(b.buf) - b.count }

// Send blocks caller until there is room for the whole framed message, or
// returns early if ctx's deadline elapses. Returns Failure immediately
// (no blocking) if msg exceeds the configured maxMsgSize.
func (b *MsgBuf) Send(caller *Task, msg []byte, ctx context.Context) Event {
	if len(msg) > b.maxMsgSize {
		return Failure
	}
	k := b.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	need := msgBufFrameOverhead + len(msg)
	for {
		if b.released() {
			return Deleted
		}
		if b.free() >= need {
			b.writeFrameLocked(msg)
			k.wakeOne(&b.Obj.wq, Success)
			return Success
		}
		if ev := k.waitFor(caller, &b.senders, ctx); ev != Success {
			return ev
		}
	}
}

// Receive blocks caller while the buffer is empty, then dequeues exactly
// one frame, or returns early if ctx's deadline elapses.
func (b *MsgBuf) Receive(caller *Task, ctx context.Context) ([]byte, Event) {
	k := b.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	for {
		if b.count > 0 {
			msg := b.readFrameLocked()
			k.wakeOne(&b.senders, Success)
			return msg, Success
		}
		if b.released() {
			return nil, Deleted
		}
		if ev := k.waitFor(caller, &b.Obj.wq, ctx); ev != Success {
			return nil, ev
		}
	}
}

func (b *MsgBuf) writeFrameLocked(msg []byte) {
	var lenBuf [msgBufFrameOverhead]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(msg)))
	tail := (b.head + b.count) % len(b.buf)
	for _, by := range lenBuf {
		b.buf[tail] = by
		tail = (tail + 1) % len(b.buf)
	}
	for _, by := range msg {
		b.buf[tail] = by
		tail = (tail + 1) % len(b.buf)
	}
	b.count += msgBufFrameOverhead + len(msg)
}

func (b *MsgBuf) readFrameLocked() []byte {
	var lenBuf [msgBufFrameOverhead]byte
	for i := range lenBuf {
		lenBuf[i] = b.buf[b.head]
		b.head = (b.head + 1) % len(b.buf)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	msg := make([]byte, n)
	for i := range msg {
		msg[i] = b.buf[b.head]
		b.head = (b.head + 1) % len(b.buf)
	}
	b.count -= msgBufFrameOverhead + int(n)
	return msg
}

// Destroy releases the message buffer; blocked Send and Receive callers
// both wake with Deleted.
func (b *MsgBuf) Destroy() {
	k := b.Obj.k
	k.lock.Lock()
	defer k.lock.Unlock()
	if b.released() {
		return
	}
	k.wakeAll(&b.senders, Deleted)
	b.release()
}
