// Package rtkernel implements the core of a small preemptive real-time
// kernel: a priority-driven scheduler, a monotonic tick/timer wheel, and a
// family of synchronization primitives (mutex with priority inheritance,
// semaphore, flag, signal, mailbox, stream buffer, message buffer, event
// queue, job queue, barrier, rwlock, condition variable, once-flag and
// fast-mutex) built on a single shared wait-queue abstraction.
//
// # Architecture
//
// A [Kernel] owns the ready queue, the timing list and the critical
// section that serializes every mutation of kernel state. Tasks ([Task])
// are goroutines gated by the kernel so that, from the kernel's point of
// view, exactly one task is ever the "current" running task -- mirroring
// the single-CPU, one-running-task-at-a-time model the kernel is designed
// around. Blocking primitives park the calling task on an object's wait
// queue ([Obj]) and, optionally, on the kernel's timing list ([Hdr]) for a
// deadline.
//
// The CPU itself (context switch, interrupt mask, monotonic tick source)
// is abstracted behind the [github.com/joeycumines/go-rtkernel/port] package
// boundary; [Kernel] never assumes anything about how a switch or a tick is
// actually delivered.
//
// # Priority inheritance
//
// Mutexes ([Mutex]) created with inheritance enabled raise an owner's
// effective priority to that of its highest waiter, walking transitively
// across chains of owned/waited-on mutexes, and restore it on release.
//
// # Thread safety
//
// Every exported operation is safe to call from any goroutine; state
// mutation is always performed under the kernel's single critical section.
// Methods with an ISR suffix (e.g. [Sem.GiveISR]) are additionally safe to
// call from a context with no "current task" (an interrupt handler
// analogue) and never block the caller.
package rtkernel
