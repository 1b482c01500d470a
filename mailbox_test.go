package rtkernel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMailboxSendBlocksWhileFullThenWakesOnReceive is the mailbox scenario:
// a producer blocks once the mailbox is at capacity, and a consumer's
// Receive both frees a slot and wakes the blocked producer in the same
// step.
func TestMailboxSendBlocksWhileFullThenWakesOnReceive(t *testing.T) {
	k := NewKernel()
	mb := k.NewMailbox(1)

	producer := k.NewTask(5, nil)
	consumer := k.NewTask(5, nil)

	require.Equal(t, Success, mb.Send(producer, "first", context.Background()))

	secondSendDone := make(chan Event, 1)
	go func() { secondSendDone <- mb.Send(producer, "second", context.Background()) }()
	waitUntilState(t, k, producer, Blocked)
	assert.Equal(t, 1, mb.Len())

	msg, ev := mb.Receive(consumer, context.Background())
	require.Equal(t, Success, ev)
	assert.Equal(t, "first", msg)

	select {
	case ev := <-secondSendDone:
		assert.Equal(t, Success, ev, "Receive must free a slot and wake the blocked Send")
	case <-time.After(time.Second):
		t.Fatal("blocked Send was never woken by Receive")
	}

	msg, ev = mb.Receive(consumer, Immediate())
	require.Equal(t, Success, ev)
	assert.Equal(t, "second", msg)
}

func TestMailboxReceiveTimesOutWhileEmpty(t *testing.T) {
	k := NewKernel()
	mb := k.NewMailbox(4)
	receiver := k.NewTask(5, nil)

	_, ev := mb.Receive(receiver, Immediate())
	assert.Equal(t, Timeout, ev)
}

func TestMailboxDestroyWakesBlockedSend(t *testing.T) {
	k := NewKernel()
	mb := k.NewMailbox(1)
	producer := k.NewTask(5, nil)

	require.Equal(t, Success, mb.Send(producer, 1, context.Background()))

	sendDone := make(chan Event, 1)
	go func() { sendDone <- mb.Send(producer, 2, context.Background()) }()
	waitUntilState(t, k, producer, Blocked)

	mb.Destroy()
	select {
	case ev := <-sendDone:
		assert.Equal(t, Deleted, ev)
	case <-time.After(time.Second):
		t.Fatal("blocked Send never woke on Destroy")
	}
}
