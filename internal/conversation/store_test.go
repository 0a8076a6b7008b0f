// ABOUTME: Tests for the append-only conversation Store
// ABOUTME: Covers one-shot hydration, append validation, ordering, and copy semantics

package conversation

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_NewIsEmpty(t *testing.T) {
	s := NewStore()

	assert.True(t, s.IsEmpty())
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Turns())

	_, ok := s.Last()
	assert.False(t, ok)
}

func TestStore_InitializeOnce(t *testing.T) {
	s := NewStore()

	history := []Turn{
		{ID: "1", Prompt: "a", OutputImage: "img1"},
		{ID: "2", Prompt: "b", OutputImage: "img2"},
	}
	require.NoError(t, s.Initialize(history))
	assert.Equal(t, history, s.Turns())

	err := s.Initialize([]Turn{{ID: "3", Prompt: "p", OutputImage: "img3"}})
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Len(t, s.Turns(), 2, "second Initialize must not replace contents")
}

func TestStore_InitializeAfterAppendFails(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(Turn{ID: "1", Prompt: "p", OutputImage: "img1"}))

	err := s.Initialize(nil)
	var stateErr *StateError
	assert.ErrorAs(t, err, &stateErr)
	assert.Equal(t, 1, s.Len())
}

func TestStore_InitializeRejectsInvalidTurns(t *testing.T) {
	s := NewStore()

	err := s.Initialize([]Turn{{ID: "1", Prompt: "p", OutputImage: "img1"}, {ID: "2"}})
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, []string{"outputImage"}, malformed.Missing)
	assert.True(t, s.IsEmpty())

	// A rejected batch does not consume the one-shot hydration.
	require.NoError(t, s.Initialize([]Turn{{ID: "1", Prompt: "p", OutputImage: "img1"}}))
}

func TestStore_AppendPreservesOrder(t *testing.T) {
	s := NewStore()

	for i := range 5 {
		require.NoError(t, s.Append(Turn{ID: fmt.Sprint(i), Prompt: "p", OutputImage: "img"}))
	}

	turns := s.Turns()
	require.Len(t, turns, 5)
	for i, turn := range turns {
		assert.Equal(t, fmt.Sprint(i), turn.ID)
	}

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "4", last.ID)
}

func TestStore_AppendRejectsUncommittedTurn(t *testing.T) {
	tests := []struct {
		name    string
		turn    Turn
		missing []string
	}{
		{"missing output image", Turn{ID: "1", Prompt: "p"}, []string{"outputImage"}},
		{"missing id", Turn{Prompt: "p", OutputImage: "img"}, []string{"id"}},
		{"missing prompt", Turn{ID: "1", OutputImage: "img"}, []string{"prompt"}},
		{"missing both", Turn{Prompt: "p"}, []string{"id", "outputImage"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			err := s.Append(tt.turn)

			var malformed *MalformedResponseError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, tt.missing, malformed.Missing)
			assert.True(t, s.IsEmpty())
		})
	}
}

func TestStore_TurnsReturnsCopy(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Append(Turn{ID: "1", Prompt: "original", OutputImage: "img"}))

	turns := s.Turns()
	turns[0].Prompt = "mutated"

	assert.Equal(t, "original", s.Turns()[0].Prompt)
}

func TestStore_KeepsCreatedAtInUTC(t *testing.T) {
	zone := time.FixedZone("CEST", 2*60*60)
	created := time.Date(2024, 5, 1, 14, 0, 0, 0, zone)

	s := NewStore()
	require.NoError(t, s.Initialize([]Turn{{ID: "1", Prompt: "p", OutputImage: "img1", CreatedAt: created}}))
	require.NoError(t, s.Append(Turn{ID: "2", Prompt: "p", OutputImage: "img2", CreatedAt: created}))
	require.NoError(t, s.Append(Turn{ID: "3", Prompt: "p", OutputImage: "img3"}))

	turns := s.Turns()
	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, want, turns[0].CreatedAt)
	assert.Equal(t, want, turns[1].CreatedAt)
	assert.True(t, turns[2].CreatedAt.IsZero())
	assert.Equal(t, time.Time{}, turns[2].CreatedAt)
}
