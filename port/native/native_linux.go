//go:build linux

// Package native provides a Port implementation that drives its ticked
// mode from a real OS timer instead of a simulated one, and pins the
// goroutine driving the tick to a dedicated, elevated-priority OS thread
// via golang.org/x/sys/unix -- the closest a userspace Go process can get
// to a "hardware tick fires at a fixed frequency" port contract without
// actual bare-metal access.
package native

import (
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-rtkernel/port/sim"
)

// Port wraps port/sim (for the IRQ-mask bookkeeping and tick-less alarm
// path, which are identical regardless of tick source) and adds a
// real-time ticked driver on Linux.
type Port struct {
	*sim.Port

	hz       int
	onTick   func()
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a native Linux Port ticking at hz ticks/second once Start is
// called. onTick is invoked once per tick (typically a func that calls
// Kernel.Tick).
func New(hz int, onTick func()) *Port {
	return &Port{
		Port:   sim.New(),
		hz:     hz,
		onTick: onTick,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// SysInit pins the tick driver to a dedicated OS thread and raises its
// scheduling priority via setpriority(2), then starts the ticker. Priority
// elevation is best-effort: insufficient privilege (no CAP_SYS_NICE) is
// tolerated, matching how a real board's tick ISR priority is a ceiling,
// not a promise, when the host refuses it.
func (p *Port) SysInit() {
	go p.driveTicks()
}

func (p *Port) driveTicks() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.doneCh)

	// Best-effort: raise this thread's "nice" priority so tick delivery
	// jitter is minimized relative to ordinary goroutines' host threads.
	// PRIO_PROCESS against tid 0 (caller) mirrors setpriority(2)'s usual
	// "current thread" usage; errors are intentionally ignored -- this
	// is a best-effort ambient concern, not a contract the port promises.
	_ = unix.Setpriority(unix.PRIO_PROCESS, 0, -10)

	period := time.Second / time.Duration(p.hz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case now := <-ticker.C:
			_ = now
			p.Port.AdvanceTick(1)
			if p.onTick != nil {
				p.onTick()
			}
		}
	}
}

// Stop halts the tick driver goroutine, for clean shutdown in tests.
func (p *Port) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
}
