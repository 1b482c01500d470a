//go:build !linux

package native

import (
	"time"

	"github.com/joeycumines/go-rtkernel/port/sim"
)

// Port on non-Linux hosts falls back to a plain wall-clock ticker; the
// thread-priority pinning in native_linux.go is a Linux-only ambient
// enhancement, not part of the port's functional contract.
type Port struct {
	*sim.Port
	hz     int
	onTick func()
	ticker *time.Ticker
	stopCh chan struct{}
}

// New creates a fallback native Port.
func New(hz int, onTick func()) *Port {
	return &Port{Port: sim.New(), hz: hz, onTick: onTick, stopCh: make(chan struct{})}
}

// SysInit starts the wall-clock ticker.
func (p *Port) SysInit() {
	p.ticker = time.NewTicker(time.Second / time.Duration(p.hz))
	go func() {
		for {
			select {
			case <-p.stopCh:
				return
			case <-p.ticker.C:
				p.Port.AdvanceTick(1)
				if p.onTick != nil {
					p.onTick()
				}
			}
		}
	}()
}

// Stop halts the tick driver.
func (p *Port) Stop() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
	close(p.stopCh)
}
