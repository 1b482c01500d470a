package rtkernel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPriorityInheritanceChainPropagatesTransitively is the scenario this
// kernel's priority-inheritance support exists for: a high-priority task
// blocked on a mutex must boost not just that mutex's owner, but every
// owner further down a chain of held-and-waited-on mutexes, so a long
// dependency chain can't bury a high-priority waiter behind a sequence of
// low-priority holders each only boosted one link deep.
func TestPriorityInheritanceChainPropagatesTransitively(t *testing.T) {
	k := NewKernel()
	mutex1 := k.NewMutex(WithMutexProtocol(ProtocolInherit))
	mutex2 := k.NewMutex(WithMutexProtocol(ProtocolInherit))

	low1 := k.NewTask(1, nil)
	low2 := k.NewTask(2, nil)
	high := k.NewTask(9, nil)

	// low2 holds mutex2 outright.
	require.Equal(t, Success, mutex2.Acquire(low2, context.Background()))

	// low1 holds mutex1, then blocks trying to also take mutex2 (held by
	// low2) -- low1 now depends on low2 via mutex2.
	require.Equal(t, Success, mutex1.Acquire(low1, context.Background()))
	low1Done := make(chan Event, 1)
	go func() { low1Done <- mutex2.Acquire(low1, context.Background()) }()
	waitUntilState(t, k, low1, Blocked)

	// high blocks trying to take mutex1 (held by low1): this must boost
	// low1 to high's priority, and since low1 is itself blocked waiting on
	// mutex2 owned by low2, the boost must propagate to low2 as well.
	highDone := make(chan Event, 1)
	go func() { highDone <- mutex1.Acquire(high, context.Background()) }()
	waitUntilState(t, k, high, Blocked)

	k.lock.Lock()
	low1Prio := low1.prio
	low2Prio := low2.prio
	k.lock.Unlock()
	assert.Equal(t, uint8(9), low1Prio, "low1 must inherit high's priority directly")
	assert.Equal(t, uint8(9), low2Prio, "low2 must inherit high's priority transitively through low1's chain")

	// Unwinding the chain: low2 releases mutex2, handing it to low1 (the
	// only waiter), which lets low1 proceed to release mutex1 to high.
	require.Equal(t, Success, mutex2.Release(low2))
	select {
	case ev := <-low1Done:
		require.Equal(t, Success, ev)
	case <-time.After(time.Second):
		t.Fatal("low1 never acquired mutex2")
	}

	require.Equal(t, Success, mutex1.Release(low1))
	select {
	case ev := <-highDone:
		require.Equal(t, Success, ev)
	case <-time.After(time.Second):
		t.Fatal("high never acquired mutex1")
	}

	k.lock.Lock()
	low1PrioAfter := low1.prio
	low2PrioAfter := low2.prio
	k.lock.Unlock()
	assert.Equal(t, uint8(1), low1PrioAfter, "low1's boost must be restored to its basic priority once no waiter on a mutex it still holds outranks it")
	assert.Equal(t, uint8(2), low2PrioAfter, "low2's boost must be restored to its basic priority once it releases mutex2")
}
