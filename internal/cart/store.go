package cart

import (
	"sync"

	"github.com/google/uuid"
)

// Listener is notified with every snapshot a dispatch produces
type Listener func(State)

// Store owns one cart. It is the only writer of its State.
type Store struct {
	mu        sync.Mutex
	state     State
	newID     func() string
	listeners []Listener
}

// Option configures a Store
type Option func(*Store)

// WithIDGenerator overrides how item ids are minted
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// NewStore creates a store seeded with an initial snapshot
func NewStore(initial State, opts ...Option) *Store {
	s := &Store{
		state: initial,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers a listener
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Dispatch applies an action and returns the resulting snapshot
func (s *Store) Dispatch(action Action) State {
	s.mu.Lock()
	if add, ok := action.(AddItem); ok && add.ItemID == "" {
		add.ItemID = s.newID()
		action = add
	}
	s.state = Reduce(s.state, action)
	next := s.state
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return next
}

// Snapshot returns the current state
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
