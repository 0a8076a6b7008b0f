// ABOUTME: Tests for the terminal view's rendering of session events
// ABOUTME: Checks loading transitions, error slots, turn formatting, and size formatting

package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/2389/sketchbook/internal/conversation"
)

func TestView_LoadingTransitionsPrintOnce(t *testing.T) {
	var out bytes.Buffer
	v := newView(&out)

	loading := conversation.State{StartLoading: true}
	v.render(conversation.Event{Kind: conversation.EventStateChanged, State: loading})
	v.render(conversation.Event{Kind: conversation.EventStateChanged, State: loading})
	v.render(conversation.Event{Kind: conversation.EventStateChanged, State: conversation.State{ContinueLoading: true}})

	assert.Equal(t, "Generating from sketch...\nContinuing conversation...\n", out.String())
}

func TestView_ErrorSlots(t *testing.T) {
	var out bytes.Buffer
	v := newView(&out)

	failed := conversation.State{ContinueError: "Image generation failed", TurnCount: 1}
	v.render(conversation.Event{Kind: conversation.EventStateChanged, State: failed})
	v.render(conversation.Event{Kind: conversation.EventStateChanged, State: failed})

	assert.Equal(t, "continue failed: Image generation failed\n", out.String())
}

func TestView_TurnAppended(t *testing.T) {
	var out bytes.Buffer
	v := newView(&out)

	turn := conversation.Turn{
		ID:                "7",
		Prompt:            "a bus",
		OutputImage:       conversation.EncodeDataURL("image/png", make([]byte, 2048)),
		ModelResponseText: "line one\nline two",
	}
	v.render(conversation.Event{
		Kind:  conversation.EventTurnAppended,
		Turn:  &turn,
		State: conversation.State{TurnCount: 3},
	})

	assert.Equal(t, "#3 a bus\n   line one\n   line two\n   output: image/png, 2.0 KB\n", out.String())
}

func TestView_TurnsWithTimestamp(t *testing.T) {
	var out bytes.Buffer
	v := newView(&out)

	v.turns(nil)
	assert.Equal(t, "No turns yet.\n", out.String())

	out.Reset()
	created := time.Date(2024, 5, 1, 12, 30, 0, 0, time.Local)
	v.turns([]conversation.Turn{{ID: "1", Prompt: "p", CreatedAt: created}})
	assert.Contains(t, out.String(), "output: none · May 01 12:30")
}

func TestView_Prompt(t *testing.T) {
	var out bytes.Buffer
	v := newView(&out)

	v.prompt(conversation.State{})
	v.prompt(conversation.State{TurnCount: 1})

	assert.Equal(t, "sketch> > ", out.String())
}

func TestDescribeImage(t *testing.T) {
	assert.Equal(t, "none", describeImage(""))
	assert.Equal(t, "unreadable image", describeImage("not a data url"))
	assert.Equal(t, "image/jpeg, 12 B", describeImage(conversation.EncodeDataURL("image/jpeg", make([]byte, 12))))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "3.0 MB", formatBytes(3<<20))
}
