// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers user creation and lookup, turn persistence, and history ordering

package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createUser(t *testing.T, s Store, id, username string, teacher bool) *User {
	t.Helper()
	u := &User{
		ID:           id,
		Username:     username,
		PasswordHash: "hash-" + username,
		IsTeacher:    teacher,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%q) failed: %v", username, err)
	}
	return u
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	createUser(t, s, "u1", "ada", true)
	s.Close()

	s, err = NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopening store failed: %v", err)
	}
	defer s.Close()

	got, err := s.GetUserByUsername(context.Background(), "ada")
	if err != nil {
		t.Fatalf("GetUserByUsername after reopen failed: %v", err)
	}
	if !got.IsTeacher {
		t.Error("IsTeacher lost across reopen")
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := createUser(t, s, "u1", "ada", true)

	byID, err := s.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	byName, err := s.GetUserByUsername(ctx, "ada")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}

	for _, got := range []*User{byID, byName} {
		if got.ID != created.ID || got.Username != created.Username {
			t.Errorf("user mismatch: got %+v, want %+v", got, created)
		}
		if got.PasswordHash != created.PasswordHash {
			t.Errorf("PasswordHash mismatch: got %q, want %q", got.PasswordHash, created.PasswordHash)
		}
		if !got.IsTeacher {
			t.Error("IsTeacher = false, want true")
		}
		if !got.CreatedAt.Equal(created.CreatedAt) {
			t.Errorf("CreatedAt mismatch: got %v, want %v", got.CreatedAt, created.CreatedAt)
		}
	}
}

func TestGetUser_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetUserByUsername(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByUsername error = %v, want ErrNotFound", err)
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	s := newTestStore(t)
	createUser(t, s, "u1", "ada", false)

	err := s.CreateUser(context.Background(), &User{ID: "u2", Username: "ada", PasswordHash: "x", CreatedAt: time.Now()})
	if !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("CreateUser error = %v, want ErrDuplicateUser", err)
	}
}

func TestCountUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.CountUsers(ctx)
	if err != nil || n != 0 {
		t.Fatalf("CountUsers = %d, %v; want 0, nil", n, err)
	}

	createUser(t, s, "u1", "ada", true)
	createUser(t, s, "u2", "bob", false)

	n, err = s.CountUsers(ctx)
	if err != nil || n != 2 {
		t.Errorf("CountUsers = %d, %v; want 2, nil", n, err)
	}
}

func TestAppendAndListTurns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, "u1", "ada", false)
	createUser(t, s, "u2", "bob", false)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 3; i++ {
		turn := &Turn{
			UserID:            "u1",
			Prompt:            fmt.Sprintf("prompt %d", i),
			InputImage:        "data:image/png;base64,aW4=",
			OutputImage:       "data:image/png;base64,b3V0",
			ModelResponseText: fmt.Sprintf("text %d", i),
			CreatedAt:         base.Add(time.Duration(i) * 1500 * time.Microsecond),
		}
		if err := s.AppendTurn(ctx, turn); err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
		if turn.ID == 0 {
			t.Fatal("AppendTurn did not assign an ID")
		}
		ids = append(ids, turn.ID)
	}
	if err := s.AppendTurn(ctx, &Turn{UserID: "u2", Prompt: "other", OutputImage: "x", CreatedAt: base}); err != nil {
		t.Fatalf("AppendTurn for second user failed: %v", err)
	}

	turns, err := s.ListTurns(ctx, "u1")
	if err != nil {
		t.Fatalf("ListTurns failed: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("ListTurns returned %d turns, want 3", len(turns))
	}
	for i, turn := range turns {
		if turn.ID != ids[i] {
			t.Errorf("turn %d ID = %d, want %d", i, turn.ID, ids[i])
		}
		if turn.Prompt != fmt.Sprintf("prompt %d", i) {
			t.Errorf("turn %d Prompt = %q", i, turn.Prompt)
		}
		want := base.Add(time.Duration(i) * 1500 * time.Microsecond)
		if !turn.CreatedAt.Equal(want) {
			t.Errorf("turn %d CreatedAt = %v, want %v", i, turn.CreatedAt, want)
		}
	}
}

func TestListTurns_OrderedByCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, "u1", "ada", false)

	late := time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC)
	early := time.Date(2024, 5, 1, 12, 0, 9, 999_000_000, time.UTC)

	for _, turn := range []*Turn{
		{UserID: "u1", Prompt: "late", OutputImage: "x", CreatedAt: late},
		{UserID: "u1", Prompt: "early", OutputImage: "x", CreatedAt: early},
	} {
		if err := s.AppendTurn(ctx, turn); err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
	}

	turns, err := s.ListTurns(ctx, "u1")
	if err != nil {
		t.Fatalf("ListTurns failed: %v", err)
	}
	if turns[0].Prompt != "early" || turns[1].Prompt != "late" {
		t.Errorf("order = [%q %q], want [early late]", turns[0].Prompt, turns[1].Prompt)
	}
}

func TestListTurns_Empty(t *testing.T) {
	s := newTestStore(t)

	turns, err := s.ListTurns(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ListTurns failed: %v", err)
	}
	if turns == nil || len(turns) != 0 {
		t.Errorf("ListTurns = %v, want empty non-nil slice", turns)
	}
}

func TestAppendTurn_Rejects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, "u1", "ada", false)

	if err := s.AppendTurn(ctx, &Turn{UserID: "u1", OutputImage: "x"}); err == nil {
		t.Error("AppendTurn without created_at: expected error")
	}
	if err := s.AppendTurn(ctx, &Turn{UserID: "ghost", OutputImage: "x", CreatedAt: time.Now()}); err == nil {
		t.Error("AppendTurn for unknown user: expected foreign key error")
	}
}

func TestListUsersWithTurnCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, "u1", "zed", false)
	createUser(t, s, "u2", "amy", false)
	createUser(t, s, "u3", "teach", true)

	for i := 0; i < 2; i++ {
		if err := s.AppendTurn(ctx, &Turn{UserID: "u1", Prompt: "p", OutputImage: "x", CreatedAt: time.Now()}); err != nil {
			t.Fatalf("AppendTurn failed: %v", err)
		}
	}

	users, err := s.ListUsersWithTurnCounts(ctx)
	if err != nil {
		t.Fatalf("ListUsersWithTurnCounts failed: %v", err)
	}

	want := []struct {
		name  string
		count int
	}{{"teach", 0}, {"amy", 0}, {"zed", 2}}
	if len(users) != len(want) {
		t.Fatalf("got %d users, want %d", len(users), len(want))
	}
	for i, w := range want {
		if users[i].Username != w.name || users[i].TurnCount != w.count {
			t.Errorf("users[%d] = %s/%d, want %s/%d", i, users[i].Username, users[i].TurnCount, w.name, w.count)
		}
	}
}

func TestAppendTurn_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, "u1", "ada", false)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.AppendTurn(ctx, &Turn{UserID: "u1", Prompt: fmt.Sprint(i), OutputImage: "x", CreatedAt: time.Now()})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent AppendTurn failed: %v", err)
		}
	}

	turns, err := s.ListTurns(ctx, "u1")
	if err != nil {
		t.Fatalf("ListTurns failed: %v", err)
	}
	if len(turns) != 20 {
		t.Errorf("got %d turns, want 20", len(turns))
	}
}
