// Package store provides persistent storage for the gateway using SQLite.
//
// # Data Models
//
//   - User: an account with a bcrypt password hash; teachers manage others
//   - Turn: one generation (prompt, input and output image data URLs,
//     model text, creation time) owned by a user
//
// SQLiteStore implements Store on modernc.org/sqlite. MockStore is an
// in-memory implementation for tests.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//	PRAGMA busy_timeout=5000;
//
// Timestamps are stored as fixed-width UTC text so history can be ordered
// by created_at directly. Turn IDs are SQLite row IDs and increase with
// every append.
//
// # Errors
//
//   - ErrNotFound: the requested user does not exist
//   - ErrDuplicateUser: the username is already taken
package store
