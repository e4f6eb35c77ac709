package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	e := NewEvent[string](false)
	require.NotNil(t, e)
	assert.Equal(t, 0, e.ListenerCount())
	assert.False(t, e.replayLast)

	_, ok := e.Last()
	assert.False(t, ok)
}

func TestEvent_ChannelListener(t *testing.T) {
	e := NewEvent[int](false)
	ch := make(chan int, 4)
	stop := e.Listen(ch)
	assert.Equal(t, 1, e.ListenerCount())

	e.Notify(1)
	e.Notify(2)

	select {
	case v := <-ch:
		assert.Equal(t, 1, v)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for first value")
	}
	assert.Equal(t, 2, <-ch)

	stop()
	assert.Equal(t, 0, e.ListenerCount())
	e.Notify(3)
	select {
	case v := <-ch:
		t.Errorf("value received after deregistration: %d", v)
	default:
	}
}

func TestEvent_FullChannelDoesNotBlock(t *testing.T) {
	e := NewEvent[int](false)
	ch := make(chan int, 1)
	e.Listen(ch)

	done := make(chan struct{})
	go func() {
		e.Notify(1)
		e.Notify(2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full channel")
	}
	assert.Equal(t, 1, <-ch)
}

func TestEvent_Callback(t *testing.T) {
	e := NewEvent[string](false)
	var got []string
	stop := e.Subscribe(func(s string) { got = append(got, s) })

	e.Notify("a")
	e.Notify("b")
	assert.Equal(t, []string{"a", "b"}, got)

	stop()
	stop()
	e.Notify("c")
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestEvent_ReplayLast(t *testing.T) {
	e := NewEvent[int](true)

	var early int32
	e.Subscribe(func(int) { atomic.AddInt32(&early, 1) })
	assert.Equal(t, int32(0), atomic.LoadInt32(&early))

	e.Notify(7)
	e.Notify(9)

	var replayed []int
	e.Subscribe(func(v int) { replayed = append(replayed, v) })
	assert.Equal(t, []int{9}, replayed)

	ch := make(chan int, 1)
	e.Listen(ch)
	assert.Equal(t, 9, <-ch)

	last, ok := e.Last()
	assert.True(t, ok)
	assert.Equal(t, 9, last)
}

func TestEvent_CallbackMayDeregister(t *testing.T) {
	e := NewEvent[int](false)
	var stop func()
	calls := 0
	stop = e.Subscribe(func(int) {
		calls++
		stop()
	})

	e.Notify(1)
	e.Notify(2)
	assert.Equal(t, 1, calls)
}

func TestEvent_ConcurrentNotify(t *testing.T) {
	e := NewEvent[int](true)
	var total int64
	e.Subscribe(func(v int) { atomic.AddInt64(&total, int64(v)) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Notify(2)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), atomic.LoadInt64(&total))
}

func TestEvent_NilListenerPanics(t *testing.T) {
	e := NewEvent[int](false)
	assert.Panics(t, func() { e.Listen(nil) })
	assert.Panics(t, func() { e.Subscribe(nil) })
}
