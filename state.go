package rtkernel

import "fmt"

// TaskState is shared between tasks and timers (both embed Hdr, every
// schedulable entity's common header): {Stopped, Ready, Delayed, Blocked}.
//
// Transitions:
//
//	Stopped -> Ready    on Start
//	Ready   -> Blocked  on a failed fast-path op with a deadline
//	Ready   -> Delayed  on SleepFor/SleepUntil
//	Blocked/Delayed -> Ready on wake (satisfied / signal / timeout / reset / delete)
//	any -> Stopped on Stop/Exit/Reset/Destroy
type TaskState uint32

const (
	// Stopped: just-created, just-exited, or reset.
	Stopped TaskState = iota
	// Ready: in the ready queue, eligible to be dispatched.
	Ready
	// Delayed: sleeping, present only in the timing list.
	Delayed
	// Blocked: parked on exactly one wait queue, optionally also in the
	// timing list if the block carries a deadline.
	Blocked
)

// String implements fmt.Stringer.
func (s TaskState) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Ready:
		return "Ready"
	case Delayed:
		return "Delayed"
	case Blocked:
		return "Blocked"
	default:
		return fmt.Sprintf("TaskState(%d)", uint32(s))
	}
}
