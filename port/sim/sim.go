// Package sim provides the portable, goroutine-based default Port
// implementation. It simulates a single CPU purely in terms of Go's
// runtime: there is no real context switch, no real interrupt mask, and
// no real hardware tick -- just enough bookkeeping for the kernel core to
// drive a deterministic, testable scheduler. Production ports targeting
// actual bare-metal hardware replace this package; the kernel core itself
// never imports it directly (callers wire it, or another Port, in).
package sim

import (
	"sync"
	"sync/atomic"
	"time"
)

// Port is the default, portable port.Port implementation.
type Port struct {
	irqDepth       atomic.Int32
	switchRequests atomic.Uint64
	start          time.Time
	tick           atomic.Uint64

	mu         sync.Mutex
	alarmTimer *time.Timer
	onAlarm    func()

	// IdleSleep is how long WaitForInterrupt parks for per call; small
	// enough to keep idle-task tests responsive, large enough not to
	// busy-spin. Exported so tests can tighten it.
	IdleSleep time.Duration
}

// New creates a ready-to-use simulated Port.
func New() *Port {
	return &Port{start: time.Now(), IdleSleep: time.Millisecond}
}

// SysInit is a no-op for the simulated port: there is no hardware to
// program.
func (p *Port) SysInit() {}

// RequestSwitch records that a switch was requested; the kernel performs
// the actual goroutine handoff itself; this exists so tests/metrics can
// observe how often dispatch was requested.
func (p *Port) RequestSwitch() { p.switchRequests.Add(1) }

// SwitchRequests returns the number of RequestSwitch calls observed,
// for diagnostics and tests.
func (p *Port) SwitchRequests() uint64 { return p.switchRequests.Load() }

// IRQSave increments a nesting depth counter and returns the depth prior
// to this call.
func (p *Port) IRQSave() uint32 {
	return uint32(p.irqDepth.Add(1) - 1)
}

// IRQRestore decrements the nesting depth counter.
func (p *Port) IRQRestore(uint32) {
	p.irqDepth.Add(-1)
}

// TickNow reports elapsed nanoseconds since the port was created, used
// as the free-running counter in tick-less mode, and advanced explicitly
// via AdvanceTick in ticked-mode tests.
func (p *Port) TickNow() uint64 {
	if v := p.tick.Load(); v != 0 {
		return v
	}
	return uint64(time.Since(p.start))
}

// AdvanceTick lets a ticked-mode driver (a test, or a real timer) push
// the free-running counter forward explicitly instead of relying on wall
// clock, which keeps scheduler tests deterministic.
func (p *Port) AdvanceTick(n uint64) uint64 {
	return p.tick.Add(n)
}

// SetAlarmHandler implements port.AlarmHandlerSetter.
func (p *Port) SetAlarmHandler(f func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onAlarm = f
}

// AlarmSet arms a one-shot wall-clock timer for deadline nanoseconds
// since this port's creation (tick-less mode).
func (p *Port) AlarmSet(deadline uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.alarmTimer != nil {
		p.alarmTimer.Stop()
	}
	d := time.Duration(deadline) - time.Since(p.start)
	if d < 0 {
		d = 0
	}
	handler := p.onAlarm
	p.alarmTimer = time.AfterFunc(d, func() {
		if handler != nil {
			handler()
		}
	})
}

// AlarmClear disarms the pending alarm, if any.
func (p *Port) AlarmClear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.alarmTimer != nil {
		p.alarmTimer.Stop()
		p.alarmTimer = nil
	}
}

// WaitForInterrupt parks briefly, standing in for a real WFI/WFE
// instruction blocking until the next tick or I/O interrupt.
func (p *Port) WaitForInterrupt() {
	time.Sleep(p.IdleSleep)
}
