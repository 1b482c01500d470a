package rtkernel

import (
	"github.com/joeycumines/go-rtkernel/port"
	"github.com/joeycumines/go-rtkernel/port/sim"
)

// kernelOptions holds configuration resolved from KernelOption values.
type kernelOptions struct {
	port        port.Port
	roundRobin  bool
	sliceTicks  uint64
	tickless    bool
	logger      Logger
	allocator   Allocator
	idlePrio    uint8
	maxPrio     uint8
}

// KernelOption configures a Kernel at construction time.
type KernelOption interface{ applyKernel(*kernelOptions) }

type kernelOptionFunc func(*kernelOptions)

func (f kernelOptionFunc) applyKernel(o *kernelOptions) { f(o) }

// WithPort supplies the CPU port implementation. Required unless the
// caller is happy with the portable goroutine-based port/sim default,
// which NewKernel uses if this option is omitted.
func WithPort(p port.Port) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.port = p })
}

// WithRoundRobin enables time-slice rotation among ready tasks of equal
// priority, with the given slice length in ticks.
func WithRoundRobin(sliceTicks uint64) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) {
		o.roundRobin = true
		o.sliceTicks = sliceTicks
	})
}

// WithTicklessMode selects the tick-less timer wheel: the kernel arms
// Port.AlarmSet for the next deadline instead of expecting a steady tick.
func WithTicklessMode() KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.tickless = true })
}

// WithLogger installs a Logger for this Kernel instance only, overriding
// the process-wide default installed via SetStructuredLogger.
func WithLogger(l Logger) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.logger = l })
}

// WithAllocator supplies the Allocator the kernel stores and returns from
// Kernel.Allocator. Defaults to a general heap-backed allocator (see
// alloc.go). The object constructors (NewTask, NewSem, ...) do not consult
// it.
func WithAllocator(a Allocator) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.allocator = a })
}

// WithPriorityLevels sets the number of distinct priority levels, and
// therefore the idle task's fixed priority (always the lowest, i.e. 0)
// and the highest legal priority (maxPrio). Default is 32 levels (0..31).
func WithPriorityLevels(levels uint8) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) {
		if levels == 0 {
			levels = 1
		}
		o.idlePrio = 0
		o.maxPrio = levels - 1
	})
}

func resolveKernelOptions(opts []KernelOption) *kernelOptions {
	cfg := &kernelOptions{
		maxPrio: 31,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyKernel(cfg)
	}
	if cfg.port == nil {
		cfg.port = sim.New()
	}
	if cfg.logger == nil {
		cfg.logger = getGlobalLogger()
	}
	if cfg.allocator == nil {
		cfg.allocator = NewHeapAllocator()
	}
	return cfg
}

// taskOptions holds configuration resolved from TaskOption values.
type taskOptions struct {
	tag       string
	stackSize uint32
	detached  bool
}

// TaskOption configures a Task at construction time.
type TaskOption interface{ applyTask(*taskOptions) }

type taskOptionFunc func(*taskOptions)

func (f taskOptionFunc) applyTask(o *taskOptions) { f(o) }

// WithStackSize sets the purely informational stack size metadata
// recorded on the task -- Go goroutines grow their own stacks, so this
// exists only for parity with embedded targets that size a real one.
func WithStackSize(bytes uint32) TaskOption {
	return taskOptionFunc(func(o *taskOptions) { o.stackSize = bytes })
}

// Detached marks the task as detached: Stop/Exit destroys it immediately
// instead of leaving it joinable.
func Detached() TaskOption {
	return taskOptionFunc(func(o *taskOptions) { o.detached = true })
}

// WithTaskTag sets the task's diagnostic tag, used only in log lines.
func WithTaskTag(tag string) TaskOption {
	return taskOptionFunc(func(o *taskOptions) { o.tag = tag })
}

func resolveTaskOptions(opts []TaskOption) *taskOptions {
	cfg := &taskOptions{stackSize: 4096}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyTask(cfg)
	}
	return cfg
}

// mutexOptions holds configuration resolved from MutexOption values.
type mutexOptions struct {
	kind     MutexKind
	protocol MutexProtocol
	robust   bool
	ceiling  uint8
	limit    uint32
}

// MutexOption configures a Mutex at construction time.
type MutexOption interface{ applyMutex(*mutexOptions) }

type mutexOptionFunc func(*mutexOptions)

func (f mutexOptionFunc) applyMutex(o *mutexOptions) { f(o) }

// WithMutexKind sets the Normal/Recursive/ErrorCheck behavior.
func WithMutexKind(k MutexKind) MutexOption {
	return mutexOptionFunc(func(o *mutexOptions) { o.kind = k })
}

// WithMutexProtocol sets the None/Inherit/Protect priority protocol.
func WithMutexProtocol(p MutexProtocol) MutexOption {
	return mutexOptionFunc(func(o *mutexOptions) { o.protocol = p })
}

// WithCeiling sets the priority ceiling used by the Protect protocol.
func WithCeiling(prio uint8) MutexOption {
	return mutexOptionFunc(func(o *mutexOptions) { o.ceiling = prio })
}

// Robust marks the mutex robust: the next acquirer after an abnormal
// owner death receives OwnerDead instead of the lock silently wedging.
func Robust() MutexOption {
	return mutexOptionFunc(func(o *mutexOptions) { o.robust = true })
}

// WithRecursionLimit caps the recursion depth for a Recursive mutex.
func WithRecursionLimit(limit uint32) MutexOption {
	return mutexOptionFunc(func(o *mutexOptions) { o.limit = limit })
}

func resolveMutexOptions(opts []MutexOption) *mutexOptions {
	cfg := &mutexOptions{limit: 1 << 16}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyMutex(cfg)
	}
	return cfg
}
