package rtkernel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFlagWakesOnlyWaitersWhoseConditionIsSatisfied is the flag scenario:
// Set must wake each waiter according to that waiter's own mask/mode, not
// simply pop the wait queue's head the way every other primitive here does.
func TestFlagWakesOnlyWaitersWhoseConditionIsSatisfied(t *testing.T) {
	k := NewKernel()
	f := k.NewFlag(0)

	anyBit1 := k.NewTask(5, nil)
	allBits12 := k.NewTask(5, nil)

	anyDone := make(chan Event, 1)
	allDone := make(chan Event, 1)
	go func() { anyDone <- f.Take(anyBit1, 0b001, FlagAny, false, context.Background()) }()
	waitUntilState(t, k, anyBit1, Blocked)
	go func() { allDone <- f.Take(allBits12, 0b011, FlagAll, false, context.Background()) }()
	waitUntilState(t, k, allBits12, Blocked)

	// Setting only bit 0b010 satisfies neither waiter.
	f.Set(0b010)
	select {
	case <-anyDone:
		t.Fatal("FlagAny waiter on bit 0 must not wake when only bit 1 is set")
	case <-allDone:
		t.Fatal("FlagAll waiter must not wake with only one of its two required bits set")
	case <-time.After(20 * time.Millisecond):
	}

	// Setting bit 0b001 now satisfies the FlagAny waiter (mask 0b001) and
	// completes the FlagAll waiter's mask (0b011 now fully set), so both
	// must wake from this single Set.
	f.Set(0b001)

	select {
	case ev := <-anyDone:
		assert.Equal(t, Success, ev)
	case <-time.After(time.Second):
		t.Fatal("FlagAny waiter never woke once its bit was set")
	}
	select {
	case ev := <-allDone:
		assert.Equal(t, Success, ev)
	case <-time.After(time.Second):
		t.Fatal("FlagAll waiter never woke once both required bits were set")
	}
}

func TestFlagTakeSatisfiedImmediatelyByCurrentBits(t *testing.T) {
	k := NewKernel()
	f := k.NewFlag(0b101)
	caller := k.NewTask(5, nil)

	ev := f.Take(caller, 0b100, FlagAny, false, Immediate())
	assert.Equal(t, Success, ev)
}

func TestFlagAutoClearRemovesOnlyMatchedBits(t *testing.T) {
	k := NewKernel()
	f := k.NewFlag(0b110)
	caller := k.NewTask(5, nil)

	ev := f.Take(caller, 0b100, FlagAny, true, Immediate())
	require.Equal(t, Success, ev)
	assert.Equal(t, uint32(0b010), f.Bits(), "autoClear for FlagAny only clears bits&mask, leaving unrelated bits set")
}

func TestFlagClearNeverWakesAWaiter(t *testing.T) {
	k := NewKernel()
	f := k.NewFlag(0)
	caller := k.NewTask(5, nil)

	done := make(chan Event, 1)
	go func() { done <- f.Take(caller, 0b1, FlagAny, false, context.Background()) }()
	waitUntilState(t, k, caller, Blocked)

	f.Clear(0b1)
	select {
	case <-done:
		t.Fatal("Clear must never satisfy a waiter")
	case <-time.After(20 * time.Millisecond):
	}
	f.Destroy()
	select {
	case ev := <-done:
		assert.Equal(t, Deleted, ev)
	case <-time.After(time.Second):
		t.Fatal("Destroy must still wake a pending waiter")
	}
}
