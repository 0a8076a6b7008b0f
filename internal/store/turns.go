// ABOUTME: Turn store methods for the SQLite store
// ABOUTME: Appends generated turns and lists a user's history oldest first

package store

import (
	"context"
	"fmt"
)

// AppendTurn persists turn and sets its ID. A zero CreatedAt is an error.
func (s *SQLiteStore) AppendTurn(ctx context.Context, turn *Turn) error {
	if turn.CreatedAt.IsZero() {
		return fmt.Errorf("turn created_at is required")
	}

	query := `
		INSERT INTO turns (user_id, prompt, input_image, output_image, model_response_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		turn.UserID,
		turn.Prompt,
		turn.InputImage,
		turn.OutputImage,
		turn.ModelResponseText,
		formatTime(turn.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting turn: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting turn id: %w", err)
	}
	turn.ID = id

	s.logger.Debug("appended turn", "id", id, "user_id", turn.UserID)
	return nil
}

// ListTurns returns every turn for userID, oldest first.
func (s *SQLiteStore) ListTurns(ctx context.Context, userID string) ([]*Turn, error) {
	query := `
		SELECT id, user_id, prompt, input_image, output_image, model_response_text, created_at
		FROM turns
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	turns := []*Turn{}
	for rows.Next() {
		var t Turn
		var createdAtStr string

		if err := rows.Scan(&t.ID, &t.UserID, &t.Prompt, &t.InputImage, &t.OutputImage, &t.ModelResponseText, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}

		t.CreatedAt, err = parseTime(createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		turns = append(turns, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}

	return turns, nil
}
