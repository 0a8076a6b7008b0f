// ABOUTME: User store methods for the SQLite store
// ABOUTME: Creates, looks up, counts, and lists users with their turn counts

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateUser creates a new user. Returns ErrDuplicateUser if the username is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, username, password_hash, is_teacher, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		boolToInt(user.IsTeacher),
		formatTime(user.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Info("created user", "id", user.ID, "username", user.Username, "teacher", user.IsTeacher)
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, username, password_hash, is_teacher, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT id, username, password_hash, is_teacher, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*User, error) {
	var user User
	var isTeacher int
	var createdAtStr string

	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &isTeacher, &createdAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.IsTeacher = isTeacher != 0
	user.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &user, nil
}

// CountUsers returns the number of users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// ListUsersWithTurnCounts returns every user with their turn count,
// teachers first, then by username.
func (s *SQLiteStore) ListUsersWithTurnCounts(ctx context.Context) ([]*UserSummary, error) {
	query := `
		SELECT u.id, u.username, u.password_hash, u.is_teacher, u.created_at,
		       COUNT(t.id) AS turn_count
		FROM users u
		LEFT JOIN turns t ON t.user_id = u.id
		GROUP BY u.id, u.username, u.password_hash, u.is_teacher, u.created_at
		ORDER BY u.is_teacher DESC, u.username ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*UserSummary
	for rows.Next() {
		var sum UserSummary
		var isTeacher int
		var createdAtStr string

		if err := rows.Scan(&sum.ID, &sum.Username, &sum.PasswordHash, &isTeacher, &createdAtStr, &sum.TurnCount); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}

		sum.IsTeacher = isTeacher != 0
		sum.CreatedAt, err = parseTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		users = append(users, &sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}

	return users, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
