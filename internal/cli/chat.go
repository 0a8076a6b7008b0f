// ABOUTME: Interactive chat loop driving a conversation session from the terminal
// ABOUTME: Parses slash commands, forwards text as continuations, and renders session events

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/2389/sketchbook/internal/conversation"
	"github.com/2389/sketchbook/internal/export"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive sketch conversation",
	Long: `Open an interactive conversation with the generation service.

Start from a sketch with /start <file> <description>, then type a line of
text to refine the last generated image.`,
	RunE: runChat,
}

// errQuit ends the chat loop normally.
var errQuit = errors.New("quit")

func runChat(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	v := newView(out)
	session := conversation.NewSession(a.client, conversation.WithLogger(a.logger))
	defer session.Close()

	sink := export.NewDirSink(a.cfg.Export.Dir)
	c := &chat{
		session:  session,
		exporter: a.newExporter(session, sink, v),
		sink:     sink,
		view:     v,
		in:       cmd.InOrStdin(),
	}

	accent.Fprintf(out, "sketchbook connected to %s\n", a.cfg.Gateway.URL)
	if a.cfg.Gateway.Token == "" {
		warning.Fprintln(out, "No token configured. Run: sketchbook login --username <name>")
	}
	fmt.Fprintln(out, "Type /help for commands. Ctrl+C to quit.")
	fmt.Fprintln(out)

	return c.run(cmd.Context())
}

// chat is one interactive session bound to a terminal.
type chat struct {
	session  *conversation.Session
	exporter *export.Exporter
	sink     export.Sink
	view     *view
	in       io.Reader

	// ops tracks generations started from the input loop.
	ops sync.WaitGroup
}

// run loads history and reads commands until EOF, /quit, or ctx ends.
// Generations run in the background; EOF waits for them, /quit cancels them.
func (c *chat) run(ctx context.Context) error {
	opCtx, cancelOps := context.WithCancel(ctx)
	defer cancelOps()
	stop := c.watch(ctx)
	defer stop()

	if err := c.session.Bootstrap(ctx); err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	quit := make(chan struct{})
	defer close(quit)
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-quit:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			readErr <- err
			return
		}
		readErr <- io.EOF
	}()

	for {
		c.view.prompt(c.session.State())

		var line string
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case line = <-lines:
		}

		if err := c.handle(opCtx, strings.TrimSpace(line)); err != nil {
			if errors.Is(err, errQuit) {
				cancelOps()
				return nil
			}
			return err
		}
	}
}

// watch renders session events until stop is called. stop waits for
// in-flight generations so their outcome is rendered before it returns.
func (c *chat) watch(ctx context.Context) (stop func()) {
	subCtx, cancel := context.WithCancel(ctx)
	events, _ := c.session.Subscribe(subCtx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			c.view.render(ev)
		}
	}()
	return func() {
		c.ops.Wait()
		cancel()
		<-done
	}
}

// spawn runs a generation off the input loop. Local errors, including the
// session's in-flight rejections, are shown directly; service failures
// arrive through the error slots.
func (c *chat) spawn(generate func() error) {
	c.ops.Add(1)
	go func() {
		defer c.ops.Done()
		if err := generate(); err != nil && conversation.IsLocal(err) {
			c.view.fail(err)
		}
	}()
}

// handle executes one input line. Only errQuit is returned; everything else
// is reported through the view.
func (c *chat) handle(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		c.continueWith(ctx, line)
		return nil
	}

	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch name {
	case "/quit", "/exit":
		return errQuit
	case "/help":
		c.view.help()
	case "/start":
		c.start(ctx, rest)
	case "/history":
		c.view.turns(c.session.Turns())
	case "/save":
		c.save(ctx, rest)
	case "/export":
		c.export(ctx, rest)
	case "/dismiss":
		c.session.DismissStartError()
		c.session.DismissContinueError()
	default:
		c.view.warn(fmt.Sprintf("Unknown command %s. Type /help for commands.", name))
	}
	return nil
}

// start parses "<file> <description>" and opens a conversation.
func (c *chat) start(ctx context.Context, args string) {
	path, description, _ := strings.Cut(args, " ")
	if path == "" {
		c.view.warn("Usage: /start <file> <description>")
		return
	}

	sketch, err := loadSketch(path)
	if err != nil {
		c.view.fail(err)
		return
	}

	c.spawn(func() error {
		_, err := c.session.StartSession(ctx, sketch, description)
		return err
	})
}

func (c *chat) continueWith(ctx context.Context, text string) {
	if c.session.State().TurnCount == 0 {
		c.view.warn("Start with /start <file> <description> first.")
		return
	}
	c.session.SetContinueDraft(text)
	c.spawn(func() error {
		_, err := c.session.ContinueSession(ctx, text)
		return err
	})
}

// save writes turn n's output image through the sink.
func (c *chat) save(ctx context.Context, arg string) {
	turns := c.session.Turns()
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(turns) {
		c.view.warn(fmt.Sprintf("Usage: /save <n> with n between 1 and %d", len(turns)))
		return
	}

	mimeType, data, err := conversation.DecodeDataURL(turns[n-1].OutputImage)
	if err != nil {
		c.view.fail(err)
		return
	}
	loc, err := c.sink.Save(ctx, fmt.Sprintf("sketch-turn-%d%s", n, extensionFor(mimeType)), data)
	if err != nil {
		c.view.fail(err)
		return
	}
	c.view.ok("Saved %s", loc)
}

func (c *chat) export(ctx context.Context, format string) {
	var (
		art *export.Artifact
		err error
	)
	switch format {
	case "json":
		art, err = c.exporter.ExportJSON(ctx)
	case "snapshot", "pdf":
		art, err = c.exporter.ExportSnapshot(ctx)
		if errors.Is(err, export.ErrSnapshotFailed) {
			// The notifier already told the user.
			return
		}
	default:
		c.view.warn("Usage: /export json|snapshot")
		return
	}

	switch {
	case err != nil:
		c.view.fail(err)
	case art == nil:
		c.view.info("Nothing to export yet.")
	default:
		c.view.ok("Exported %s", art.Location)
	}
}

// loadSketch reads an image file for /start.
func loadSketch(path string) (conversation.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return conversation.Image{}, fmt.Errorf("reading sketch: %w", err)
	}
	return conversation.Image{
		Data:     data,
		MIMEType: mime.TypeByExtension(strings.ToLower(filepath.Ext(path))),
		Filename: filepath.Base(path),
	}, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

// notifierFor routes exporter notices to the view.
func notifierFor(v *view) export.Notifier {
	return export.NotifierFunc(func(_ context.Context, message string) {
		v.warn(message)
	})
}
