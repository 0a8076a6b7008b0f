// ABOUTME: Append-only in-memory store of the turns in one session
// ABOUTME: Hydrated once at bootstrap; no operation removes or reorders turns

package conversation

import "sync"

// Store holds the ordered turns of a session.
type Store struct {
	mu          sync.RWMutex
	turns       []Turn
	initialized bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Initialize hydrates the store from bootstrap history. It succeeds once,
// and only before any append.
func (s *Store) Initialize(turns []Turn) error {
	for _, t := range turns {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized || len(s.turns) > 0 {
		return &StateError{Message: "store already initialized"}
	}
	s.turns = make([]Turn, 0, len(turns))
	for _, t := range turns {
		s.turns = append(s.turns, normalize(t))
	}
	s.initialized = true
	return nil
}

// Append adds a committed turn at the tail. CreatedAt is kept in UTC.
func (s *Store) Append(turn Turn) error {
	if err := turn.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, normalize(turn))
	return nil
}

// normalize stores timestamps in UTC.
func normalize(t Turn) Turn {
	t.CreatedAt = t.CreatedAt.UTC()
	return t
}

// Turns returns a copy of the turns, oldest first.
func (s *Store) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Last returns the most recent turn.
func (s *Store) Last() (Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// Len returns the number of turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// IsEmpty reports whether the store holds no turns.
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}
