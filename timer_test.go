package rtkernel

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerOneShotFiresOnceAtDeadline(t *testing.T) {
	k := NewKernel()
	var fired atomic.Int32
	tm := k.NewTimer()
	tm.Start(3, 0, func() { fired.Add(1) })

	for i := 0; i < 2; i++ {
		k.Tick()
	}
	assert.Equal(t, int32(0), fired.Load(), "must not fire before its deadline")

	k.Tick()
	assert.Equal(t, int32(1), fired.Load())

	for i := 0; i < 5; i++ {
		k.Tick()
	}
	assert.Equal(t, int32(1), fired.Load(), "a one-shot timer must never fire twice")
}

// TestTimerPeriodicReloadIsDriftFree is the periodic-timer scenario: each
// reload is computed as prevDeadline+period, not now+period, so a late tick
// (e.g. tmrHandler momentarily behind) never accumulates drift across
// reloads.
func TestTimerPeriodicReloadIsDriftFree(t *testing.T) {
	k := NewKernel()
	var fireTicks []uint64
	tm := k.NewTimer()
	tm.Start(2, 3, func() {
		// The callback runs inside Tick with k.lock already held, so it
		// reads k.tick directly rather than locking again.
		fireTicks = append(fireTicks, k.tick)
	})

	for i := 0; i < 11; i++ {
		k.Tick()
	}

	require.GreaterOrEqual(t, len(fireTicks), 3)
	assert.Equal(t, []uint64{2, 5, 8}, fireTicks[:3], "reloads land on exact period multiples from the original deadline")
}

func TestTimerStopWakesTakeWaiters(t *testing.T) {
	k := NewKernel()
	tm := k.NewTimer()
	tm.Start(1000, 0, nil)

	caller := k.NewTask(5, nil)
	done := make(chan Event, 1)
	go func() { done <- tm.Take(caller, context.Background()) }()
	waitUntilState(t, k, caller, Blocked)

	tm.Stop()
	select {
	case ev := <-done:
		assert.Equal(t, Stopped, ev)
	case <-time.After(time.Second):
		t.Fatal("Take never woke on Stop")
	}
}

func TestTimerTakeResolvesOnExpiry(t *testing.T) {
	k := NewKernel()
	tm := k.NewTimer()
	tm.Start(3, 0, nil)

	caller := k.NewTask(5, nil)
	done := make(chan Event, 1)
	go func() { done <- tm.Take(caller, context.Background()) }()
	waitUntilState(t, k, caller, Blocked)

	for i := 0; i < 3; i++ {
		k.Tick()
	}

	select {
	case ev := <-done:
		assert.Equal(t, Success, ev)
	case <-time.After(time.Second):
		t.Fatal("Take never woke at expiry")
	}
}

func TestTimerCallbackPanicIsContained(t *testing.T) {
	k := NewKernel()
	var after atomic.Bool
	tm := k.NewTimer()
	tm.Start(1, 0, func() { panic("boom") })
	other := k.NewTimer()
	other.Start(1, 0, func() { after.Store(true) })

	assert.NotPanics(t, func() { k.Tick() })
	assert.True(t, after.Load(), "a panicking timer callback must not prevent others from firing on the same tick")
}
