package rtkernel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexNormalSelfAcquireDeadlocksAgainstItself(t *testing.T) {
	k := NewKernel()
	m := k.NewMutex()
	owner := k.NewTask(3, nil)

	require.Equal(t, Success, m.Acquire(owner, context.Background()))

	blocked := make(chan Event, 1)
	go func() { blocked <- m.Acquire(owner, Immediate()) }()

	select {
	case ev := <-blocked:
		assert.Equal(t, Timeout, ev, "Normal mutex: recursive self-acquire blocks like any bare lock")
	case <-time.After(time.Second):
		t.Fatal("self-acquire under Normal never resolved")
	}
}

func TestMutexRecursiveAllowsReentry(t *testing.T) {
	k := NewKernel()
	m := k.NewMutex(WithMutexKind(Recursive), WithRecursionLimit(2))
	owner := k.NewTask(3, nil)

	require.Equal(t, Success, m.Acquire(owner, context.Background()))
	require.Equal(t, Success, m.Acquire(owner, context.Background()))
	assert.Equal(t, Failure, m.Acquire(owner, context.Background()), "recursion limit of 2 exhausted")

	require.Equal(t, Success, m.Release(owner))
	require.Equal(t, Success, m.Release(owner))
}

func TestMutexErrorCheckRejectsReentry(t *testing.T) {
	k := NewKernel()
	m := k.NewMutex(WithMutexKind(ErrorCheck))
	owner := k.NewTask(3, nil)

	require.Equal(t, Success, m.Acquire(owner, context.Background()))
	assert.Equal(t, Failure, m.Acquire(owner, context.Background()))
}

func TestMutexReleaseByNonOwnerPanics(t *testing.T) {
	k := NewKernel()
	m := k.NewMutex()
	owner := k.NewTask(3, nil)
	other := k.NewTask(3, nil)
	require.Equal(t, Success, m.Acquire(owner, context.Background()))

	assert.Panics(t, func() { m.Release(other) })
}

func TestMutexHandsOffToHighestPriorityWaiter(t *testing.T) {
	k := NewKernel()
	m := k.NewMutex()
	owner := k.NewTask(1, nil)
	require.Equal(t, Success, m.Acquire(owner, context.Background()))

	low := k.NewTask(2, nil)
	high := k.NewTask(9, nil)

	lowDone := make(chan Event, 1)
	highDone := make(chan Event, 1)
	go func() { lowDone <- m.Acquire(low, context.Background()) }()
	waitUntilState(t, k, low, Blocked)
	go func() { highDone <- m.Acquire(high, context.Background()) }()
	waitUntilState(t, k, high, Blocked)

	require.Equal(t, Success, m.Release(owner))

	select {
	case ev := <-highDone:
		assert.Equal(t, Success, ev, "the higher-priority waiter must be granted the mutex first")
	case <-time.After(time.Second):
		t.Fatal("high-priority waiter never granted the mutex")
	}

	require.Equal(t, Success, m.Release(high))
	select {
	case ev := <-lowDone:
		assert.Equal(t, Success, ev)
	case <-time.After(time.Second):
		t.Fatal("low-priority waiter never granted the mutex")
	}
}

func TestMutexRobustReportsOwnerDead(t *testing.T) {
	k := NewKernel()
	m := k.NewMutex(Robust())

	dying := k.NewTask(5, func(t *Task) {
		m.Acquire(t, context.Background())
		t.Exit()
	})
	dying.Start()
	waitUntilState(t, k, dying, Stopped)

	acquirer := k.NewTask(4, nil)
	ev := m.Acquire(acquirer, context.Background())
	assert.Equal(t, OwnerDead, ev, "a robust mutex reports OwnerDead to the next acquirer after its owner dies holding it")

	// Clearing OwnerDead (a normal release) must leave the mutex usable.
	require.Equal(t, Success, m.Release(acquirer))
}

func TestMutexNonRobustSilentlyRecoversFromOwnerDeath(t *testing.T) {
	k := NewKernel()
	m := k.NewMutex()

	dying := k.NewTask(5, func(t *Task) {
		m.Acquire(t, context.Background())
		t.Exit()
	})
	dying.Start()
	waitUntilState(t, k, dying, Stopped)

	acquirer := k.NewTask(4, nil)
	assert.Equal(t, Success, m.Acquire(acquirer, context.Background()))
}
