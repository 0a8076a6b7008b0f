// ABOUTME: Terminal view that renders session events as colored text
// ABOUTME: Prints turns, loading transitions, and error slot changes

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/sketchbook/internal/conversation"
)

var (
	dim     = color.New(color.FgHiBlack)
	accent  = color.New(color.FgCyan)
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
	failure = color.New(color.FgRed, color.Bold)
)

// view renders a session for a terminal. Writes are serialized so event
// rendering and command output do not interleave mid-line.
type view struct {
	mu   sync.Mutex
	out  io.Writer
	last conversation.State
}

func newView(out io.Writer) *view {
	return &view{out: out}
}

// render applies one session event.
func (v *view) render(ev conversation.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Kind {
	case conversation.EventHistoryLoaded:
		if ev.State.TurnCount > 0 {
			dim.Fprintf(v.out, "Loaded %d earlier turn(s). /history to list them.\n", ev.State.TurnCount)
		}
	case conversation.EventTurnAppended:
		if ev.Turn != nil {
			v.writeTurn(ev.State.TurnCount, *ev.Turn)
		}
	case conversation.EventStateChanged:
		v.writeTransitions(ev.State)
	}
	v.last = ev.State
}

// writeTransitions reports loading flags that switched on and error slots
// that received a new message.
func (v *view) writeTransitions(st conversation.State) {
	if st.StartLoading && !v.last.StartLoading {
		dim.Fprintln(v.out, "Generating from sketch...")
	}
	if st.ContinueLoading && !v.last.ContinueLoading {
		dim.Fprintln(v.out, "Continuing conversation...")
	}
	if st.StartError != "" && st.StartError != v.last.StartError {
		failure.Fprint(v.out, "start failed: ")
		fmt.Fprintln(v.out, st.StartError)
	}
	if st.ContinueError != "" && st.ContinueError != v.last.ContinueError {
		failure.Fprint(v.out, "continue failed: ")
		fmt.Fprintln(v.out, st.ContinueError)
	}
}

// writeTurn prints one turn. Must be called with mu held.
func (v *view) writeTurn(n int, t conversation.Turn) {
	accent.Fprintf(v.out, "#%d ", n)
	fmt.Fprintln(v.out, t.Prompt)
	if text := strings.TrimSpace(t.ModelResponseText); text != "" {
		for _, line := range strings.Split(text, "\n") {
			fmt.Fprintf(v.out, "   %s\n", line)
		}
	}
	dim.Fprintf(v.out, "   output: %s", describeImage(t.OutputImage))
	if !t.CreatedAt.IsZero() {
		dim.Fprintf(v.out, " · %s", t.CreatedAt.Local().Format("Jan 02 15:04"))
	}
	fmt.Fprintln(v.out)
}

// turns prints a list of turns numbered from 1.
func (v *view) turns(turns []conversation.Turn) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(turns) == 0 {
		dim.Fprintln(v.out, "No turns yet.")
		return
	}
	for i, t := range turns {
		v.writeTurn(i+1, t)
	}
}

func (v *view) prompt(st conversation.State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if st.TurnCount == 0 {
		fmt.Fprint(v.out, "sketch> ")
		return
	}
	fmt.Fprint(v.out, "> ")
}

func (v *view) info(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, format+"\n", args...)
}

func (v *view) ok(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	success.Fprint(v.out, "✓ ")
	fmt.Fprintf(v.out, format+"\n", args...)
}

func (v *view) warn(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	warning.Fprintln(v.out, msg)
}

func (v *view) fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	failure.Fprint(v.out, "error: ")
	fmt.Fprintln(v.out, err)
}

func (v *view) help() {
	v.info(`Commands:
  /start <file> <description>  Start a conversation from a sketch image
  <text>                       Continue from the last generated image
  /history                     List the turns so far
  /save <n>                    Save turn n's generated image
  /export json|snapshot        Export the conversation
  /dismiss                     Clear error messages
  /help                        Show this help
  /quit                        Leave`)
}

// describeImage summarizes a data URL as its MIME type and size.
func describeImage(dataURL string) string {
	if dataURL == "" {
		return "none"
	}
	mimeType, data, err := conversation.DecodeDataURL(dataURL)
	if err != nil {
		return "unreadable image"
	}
	return fmt.Sprintf("%s, %s", mimeType, formatBytes(len(data)))
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
