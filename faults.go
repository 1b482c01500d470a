package rtkernel

import (
	"time"

	catrate "github.com/joeycumines/go-catrate"
)

// faultLog rate-limits repeated contract-violation reports so a caller
// that hammers a bad operation (e.g. an ISR looping on a released object)
// cannot flood the log before the process notices and stops it.
// Contract violations are always fatal assertions; rate limiting only
// bounds the *logging* of the assertion, never the assertion itself.
type faultLog struct {
	limiter *catrate.Limiter
	logger  Logger
	kernel  uint64
}

// newFaultLog builds a faultLog allowing at most 5 reports per site per
// second, and at most 20 per site per minute, matching the sliding-window
// shape go-catrate is designed around.
func newFaultLog(logger Logger, kernelID uint64) *faultLog {
	return &faultLog{
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 5,
			time.Minute: 20,
		}),
		logger: logger,
		kernel: kernelID,
	}
}

// report logs a contract violation under site, suppressing duplicates once
// the category's rate is exceeded.
func (f *faultLog) report(site string, err error) {
	if f == nil {
		return
	}
	if _, ok := f.limiter.Allow(site); !ok {
		return
	}
	f.logger.Log(LogEntry{
		Level:    LevelError,
		Category: "fault",
		KernelID: f.kernel,
		Message:  site,
		Err:      err,
	})
}

// assertf reports a contract violation and panics with an *AssertionError.
// Assertions are fatal in debug and undefined in release in the embedded
// tradition this kernel follows; this implementation always panics, the
// conservative, always-safe behavior for a library (a release build can
// recover() at the boundary it controls if it wants undefined-but-not-
// crashing semantics).
func (k *Kernel) assertf(site string, cause error) {
	k.faults.report(site, cause)
	panic(&AssertionError{Site: site, Cause: cause})
}
