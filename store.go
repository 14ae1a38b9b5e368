package intentpay

import "sync"

// Transition is what store subscribers receive on every dispatch. Prev and
// Next are equal (same value) when the event did not apply; subscribers
// observing attempted-but-ignored events is deliberate so that logging and
// telemetry can see them.
type Transition struct {
	Prev  PaymentState
	Next  PaymentState
	Event PaymentEvent
}

// Listener receives every transition in registration order.
type Listener func(Transition)

type storeListener struct {
	id int
	fn Listener
}

// Store holds the current PaymentState and is its only mutator. Dispatch is
// reentrant-safe: events dispatched from inside a listener are queued and
// applied after the current notification pass, so subscribers never observe
// a half-applied transition.
type Store struct {
	mu         sync.Mutex
	state      PaymentState
	listeners  []storeListener
	queue      []PaymentEvent
	processing bool
	nextID     int
	logger     Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used for invalid-transition diagnostics.
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store starting in the idle state.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{state: IdleState{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	return s
}

// GetState returns the current state snapshot. State values are immutable;
// callers never mutate what they receive.
func (s *Store) GetState() PaymentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a listener and returns its unsubscribe function.
// Listeners are invoked in registration order.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, storeListener{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// Dispatch applies an event against the transition table and notifies
// subscribers. An event that does not apply to the current state is logged
// and ignored: subscribers still see a Transition with Prev == Next.
func (s *Store) Dispatch(ev PaymentEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	if s.processing {
		// A listener dispatched during notification; the draining pass
		// below will pick it up in FIFO order.
		s.mu.Unlock()
		return
	}
	s.processing = true

	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]

		prev := s.state
		nextState, err := reduce(prev, next)
		if err != nil {
			s.logger.Printf("ignoring event: %v", err)
			nextState = prev
		}
		s.state = nextState
		listeners := make([]storeListener, len(s.listeners))
		copy(listeners, s.listeners)
		s.mu.Unlock()

		t := Transition{Prev: prev, Next: nextState, Event: next}
		for _, l := range listeners {
			l.fn(t)
		}

		s.mu.Lock()
	}
	s.processing = false
	s.mu.Unlock()
}
