// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu        sync.RWMutex
	users     map[string]*User  // keyed by user ID
	usernames map[string]string // username -> user ID
	turns     map[string][]*Turn
	nextTurn  int64

	// AppendErr, when set, is returned by AppendTurn.
	AppendErr error
}

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:     make(map[string]*User),
		usernames: make(map[string]string),
		turns:     make(map[string][]*Turn),
	}
}

// CreateUser stores a new user.
func (m *MockStore) CreateUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.usernames[user.Username]; ok {
		return ErrDuplicateUser
	}

	// Make a copy to avoid external modification
	u := *user
	m.users[u.ID] = &u
	m.usernames[u.Username] = u.ID
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByUsername retrieves a user by username.
func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	id, ok := m.usernames[username]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.GetUser(ctx, id)
}

// CountUsers returns the number of users.
func (m *MockStore) CountUsers(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// ListUsersWithTurnCounts returns users teachers first, then by username.
func (m *MockStore) ListUsersWithTurnCounts(_ context.Context) ([]*UserSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*UserSummary, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, &UserSummary{User: *u, TurnCount: len(m.turns[u.ID])})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsTeacher != out[j].IsTeacher {
			return out[i].IsTeacher
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

// AppendTurn stores a turn and assigns the next ID.
func (m *MockStore) AppendTurn(_ context.Context, turn *Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AppendErr != nil {
		return m.AppendErr
	}
	if _, ok := m.users[turn.UserID]; !ok {
		return fmt.Errorf("inserting turn: unknown user %q", turn.UserID)
	}

	m.nextTurn++
	turn.ID = m.nextTurn
	t := *turn
	m.turns[t.UserID] = append(m.turns[t.UserID], &t)
	return nil
}

// ListTurns returns a user's turns oldest first.
func (m *MockStore) ListTurns(_ context.Context, userID string) ([]*Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Turn, 0, len(m.turns[userID]))
	for _, t := range m.turns[userID] {
		cp := *t
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Close is a no-op for the mock.
func (m *MockStore) Close() error {
	return nil
}
