package statemachine

// event is a plain observer list. It is not safe for concurrent use; a
// machine and its states are driven by a single goroutine.
type event struct {
	nextID    uint64
	listeners []subscription
}

type subscription struct {
	id       uint64
	listener Listener
}

// subscribe registers a listener and returns a func that removes it.
// Calling the returned func more than once is harmless.
func (e *event) subscribe(listener Listener) func() {
	if listener == nil {
		return func() {}
	}

	e.nextID++
	id := e.nextID

	e.listeners = append(e.listeners, subscription{id: id, listener: listener})

	return func() {
		for i, sub := range e.listeners {
			if sub.id == id {
				// Copy instead of reslicing in place: fire may be iterating
				// over the old backing array.
				listeners := make([]subscription, 0, len(e.listeners)-1)
				listeners = append(listeners, e.listeners[:i]...)
				e.listeners = append(listeners, e.listeners[i+1:]...)

				return
			}
		}
	}
}

// fire calls every listener registered at the moment fire starts, in
// registration order.
func (e *event) fire() {
	for _, sub := range e.listeners {
		sub.listener()
	}
}

func (e *event) len() int {
	return len(e.listeners)
}
