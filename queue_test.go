package automaton

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_EnqueueDequeue(t *testing.T) {
	q := newEventQueue[string]()

	require.True(t, q.Enqueue("login"), "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, "login", got)
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue[int]()

	for i := 1; i <= 3; i++ {
		q.Enqueue(i)
	}

	for want := 1; want <= 3; want++ {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestEventQueue_TryDequeue_Empty(t *testing.T) {
	q := newEventQueue[int]()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_Wait_SignalsOnEnqueue(t *testing.T) {
	q := newEventQueue[int]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(7)
	}()

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("Wait was not signalled")
	}

	got, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, 7, got)
}

func TestEventQueue_Close_WakesWaiters(t *testing.T) {
	q := newEventQueue[int]()

	woke := make(chan struct{})
	go func() {
		<-q.Wait()
		close(woke)
	}()

	q.Close()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the waiter")
	}
	assert.True(t, q.Closed())
}

func TestEventQueue_Enqueue_AfterClose(t *testing.T) {
	q := newEventQueue[int]()
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(1), "enqueue after close should fail")
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_Drained(t *testing.T) {
	q := newEventQueue[int]()
	q.Enqueue(1)
	assert.False(t, q.Drained(), "open queue is never drained")

	q.Close()
	assert.False(t, q.Drained(), "items remain after close")

	_, ok := q.TryDequeue()
	require.True(t, ok, "items queued before close stay available")
	assert.True(t, q.Drained())
}

func TestEventQueue_Len(t *testing.T) {
	q := newEventQueue[int]()
	assert.Equal(t, 0, q.Len())

	q.Enqueue(1)
	q.Enqueue(2)
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue[int]()
	const producers, perProducer = 8, 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(i)
			}
		}()
	}
	wg.Wait()

	count := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		count++
	}
	assert.Equal(t, producers*perProducer, count)
}
