package rtkernel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKernelDefaults(t *testing.T) {
	k := NewKernel()
	require.NotNil(t, k)
	require.NotNil(t, k.Current())
	assert.Equal(t, k.idle, k.Current(), "only the idle task exists, so it must be current")
	assert.False(t, k.roundRobin)
	assert.Equal(t, uint8(0), k.idlePrio)
	assert.Equal(t, uint8(31), k.maxPrio)
}

func TestKernelTickAdvancesAndWakesDelayed(t *testing.T) {
	k := NewKernel()
	caller := k.NewTask(5, nil)

	done := make(chan Event, 1)
	go func() {
		k.lock.Lock()
		k.sleepUntil(caller, k.tick+3)
		k.lock.Unlock()
		done <- caller.event
	}()

	waitUntilState(t, k, caller, Delayed)

	for i := 0; i < 3; i++ {
		k.Tick()
	}

	select {
	case ev := <-done:
		assert.Equal(t, Timeout, ev, "a plain sleep resolves as Timeout, the delay-expires outcome")
	case <-time.After(time.Second):
		t.Fatal("sleeping task never woke")
	}
}

func TestImmediateContextIsAlreadyExpired(t *testing.T) {
	ctx := Immediate()
	dl, ok := ctx.Deadline()
	require.True(t, ok)
	assert.True(t, time.Now().After(dl) || time.Now().Equal(dl))
	assert.Error(t, ctx.Err())
}

func TestDeadlineTicksNoDeadlineIsInfinite(t *testing.T) {
	k := NewKernel()
	k.lock.Lock()
	_, ok := k.deadlineTicks(context.Background())
	k.lock.Unlock()
	assert.False(t, ok)
}

func TestShutdownStopsTickProcessing(t *testing.T) {
	k := NewKernel()
	k.Shutdown()
	before := k.tick
	k.Tick()
	assert.Equal(t, before, k.tick, "Tick is a no-op once the kernel is terminated")
}

// waitUntilState polls (the test's own goroutine, not a kernel-scheduled
// task) until tsk reaches the given state or the deadline elapses.
func waitUntilState(t *testing.T, k *Kernel, tsk *Task, want TaskState) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		k.lock.Lock()
		got := tsk.state
		k.lock.Unlock()
		if got == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("task never reached state %s", want)
}
