package report

import "sync"

// Observer is notified with every new state a Session publishes.
type Observer interface {
	StateChanged(State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(State)

// StateChanged calls f.
func (f ObserverFunc) StateChanged(s State) { f(s) }

// Session owns the current State of one report and publishes each
// transition to its observers.
type Session struct {
	mu        sync.Mutex
	state     State
	nextID    int
	observers map[int]Observer
	order     []int
	tracker   Tracker
}

// NewSession starts a session at initial.
func NewSession(initial State) *Session {
	return &Session{state: initial, observers: make(map[int]Observer)}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Tracker returns the request tracker for this session.
func (s *Session) Tracker() *Tracker {
	return &s.tracker
}

// Subscribe registers o and returns a function that removes it. Observers are
// called in subscription order, outside the session lock.
func (s *Session) Subscribe(o Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.observers[id] = o
	s.order = append(s.order, id)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Update applies fn to the current state, stores the result and publishes
// it.
func (s *Session) Update(fn func(State) State) State {
	next, _ := s.TryUpdate(func(cur State) (State, error) { return fn(cur), nil })
	return next
}

// TryUpdate is Update for transitions that can fail. On error nothing is
// stored or published and the current state is returned.
func (s *Session) TryUpdate(fn func(State) (State, error)) (State, error) {
	s.mu.Lock()
	next, err := fn(s.state)
	if err != nil {
		cur := s.state
		s.mu.Unlock()
		return cur, err
	}
	s.state = next
	obs := make([]Observer, 0, len(s.order))
	for _, id := range s.order {
		obs = append(obs, s.observers[id])
	}
	s.mu.Unlock()

	for _, o := range obs {
		o.StateChanged(next)
	}
	return next, nil
}
