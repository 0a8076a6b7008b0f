// ABOUTME: Store interface and data types for gateway persistence
// ABOUTME: Defines users and their generated turns

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateUser is returned when trying to create a user whose username is taken
var ErrDuplicateUser = errors.New("username already exists")

// User is an account that can generate images. Teachers can manage and
// review other accounts.
type User struct {
	ID           string
	Username     string
	PasswordHash string // bcrypt hash
	IsTeacher    bool
	CreatedAt    time.Time
}

// UserSummary is a user with the number of turns they have generated.
type UserSummary struct {
	User
	TurnCount int
}

// Turn is one persisted generation for a user.
type Turn struct {
	ID                int64
	UserID            string
	Prompt            string
	InputImage        string // data URL
	OutputImage       string // data URL
	ModelResponseText string
	CreatedAt         time.Time
}

// Store defines the interface for gateway persistence.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CountUsers(ctx context.Context) (int, error)
	ListUsersWithTurnCounts(ctx context.Context) ([]*UserSummary, error)

	// Turns
	AppendTurn(ctx context.Context, turn *Turn) error
	ListTurns(ctx context.Context, userID string) ([]*Turn, error)

	Close() error
}
