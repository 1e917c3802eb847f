package store

import (
	"log/slog"
	"sync"

	"github.com/noot-app/food-explorer/internal/config"
)

// Listener is notified after every applied dispatch with the states before
// and after it
type Listener func(prev, next State)

// Store owns the session state. All mutations go through Dispatch, which
// runs the actions through Reduce under a single lock.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners map[uint64]Listener
	nextID    uint64
	log       *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithState starts the store from a given state instead of InitialState
func WithState(state State) Option {
	return func(s *Store) {
		s.state = state
	}
}

// WithLogger sets the logger used for dispatch tracing
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.log = config.Component(logger, "store")
	}
}

// New creates a store holding InitialState
func New(opts ...Option) *Store {
	s := &Store{
		state:     InitialState(),
		listeners: make(map[uint64]Listener),
		log:       config.Component(nil, "store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the current state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies actions in order as one transition and notifies
// listeners once with the states before and after
func (s *Store) Dispatch(actions ...Action) {
	s.DispatchIf(nil, actions...)
}

// DispatchIf applies actions only when cond holds for the current state.
// The check and the transition happen under the same lock. A nil cond
// always holds. It reports whether the actions were applied.
func (s *Store) DispatchIf(cond func(State) bool, actions ...Action) bool {
	s.mu.Lock()
	if cond != nil && !cond(s.state) {
		s.mu.Unlock()
		return false
	}

	prev := s.state
	next := prev
	for _, action := range actions {
		next = Reduce(next, action)
	}
	s.state = next

	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	s.log.Debug("Dispatched", "actions", len(actions), "listeners", len(listeners))

	// Listeners run outside the lock so they may dispatch themselves
	for _, l := range listeners {
		l(prev, next)
	}
	return true
}

// Subscribe registers a listener and returns a function that removes it
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}
