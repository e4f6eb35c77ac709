package events

import "sync"

type listener[T any] struct {
	ch chan<- T
	fn func(T)
}

func (l listener[T]) deliver(value T) {
	if l.fn != nil {
		l.fn(value)
		return
	}
	select {
	case l.ch <- value:
	default:
		// slow consumer, drop
	}
}

// Event is a typed fan-out point. Listeners are either channels (non-blocking sends,
// full channels miss the value) or callbacks (called synchronously from Notify).
type Event[T any] struct {
	mu         sync.RWMutex
	listeners  map[uint64]listener[T]
	nextID     uint64
	replayLast bool
	last       T
	hasLast    bool
}

// NewEvent creates an Event. With replayLast set, a new listener immediately
// receives the most recent value if one has been published.
func NewEvent[T any](replayLast bool) *Event[T] {
	return &Event[T]{
		listeners:  make(map[uint64]listener[T]),
		replayLast: replayLast,
	}
}

// Listen registers a channel and returns its deregistration func.
func (e *Event[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("events: nil channel")
	}
	return e.add(listener[T]{ch: ch})
}

// Subscribe registers a callback and returns its deregistration func.
func (e *Event[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		panic("events: nil callback")
	}
	return e.add(listener[T]{fn: fn})
}

func (e *Event[T]) add(l listener[T]) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = l
	replay, value := e.replayLast && e.hasLast, e.last
	e.mu.Unlock()

	if replay {
		l.deliver(value)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.listeners, id)
			e.mu.Unlock()
		})
	}
}

// Notify publishes value to every registered listener. Delivery happens outside the lock,
// so callbacks may register or deregister listeners.
func (e *Event[T]) Notify(value T) {
	e.mu.Lock()
	if e.replayLast {
		e.last = value
		e.hasLast = true
	}
	targets := make([]listener[T], 0, len(e.listeners))
	for _, l := range e.listeners {
		targets = append(targets, l)
	}
	e.mu.Unlock()

	for _, l := range targets {
		l.deliver(value)
	}
}

// Last returns the most recently published value when replay is enabled.
func (e *Event[T]) Last() (T, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last, e.hasLast
}

func (e *Event[T]) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}
