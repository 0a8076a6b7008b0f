// ABOUTME: Session controller for a sketch conversation: validation, in-flight guards, loading/error state
// ABOUTME: Calls the GenerationClient outside the lock and commits results to the Store in completion order

package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// State is a snapshot of the session's per-operation state.
type State struct {
	StartLoading    bool
	ContinueLoading bool
	StartError      string
	ContinueError   string
	ContinueDraft   string
	TurnCount       int
}

// Busy reports whether any generation is in flight.
func (s State) Busy() bool {
	return s.StartLoading || s.ContinueLoading
}

// operation identifies which loading flag and error slot an operation owns.
type operation int

const (
	opStart operation = iota
	opContinue
)

func (op operation) String() string {
	if op == opStart {
		return "start"
	}
	return "continue"
}

func (op operation) setLoading(st *State, v bool) {
	if op == opStart {
		st.StartLoading = v
	} else {
		st.ContinueLoading = v
	}
}

func (op operation) setError(st *State, msg string) {
	if op == opStart {
		st.StartError = msg
	} else {
		st.ContinueError = msg
	}
}

func (op operation) fallback() string {
	if op == opStart {
		return FallbackStartError
	}
	return FallbackContinueError
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session is the conversation controller. It owns its Store; views observe
// it through Subscribe. All methods are safe for concurrent use.
type Session struct {
	gen    GenerationClient
	store  *Store
	events *Broadcaster
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	closed bool

	// pubMu orders event delivery to match snapshot order. Taken while mu is
	// held, so it is always acquired after mu.
	pubMu sync.Mutex
}

// NewSession creates a session with an empty Store.
func NewSession(gen GenerationClient, opts ...Option) *Session {
	s := &Session{
		gen:    gen,
		store:  NewStore(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")
	s.events = NewBroadcaster(s.logger)
	return s
}

// Bootstrap hydrates the Store from the service's history. A fetch failure
// is logged and treated as an empty history. Turns that cannot be committed
// are skipped.
func (s *Session) Bootstrap(ctx context.Context) error {
	if s.isClosed() {
		return &StateError{Message: MsgSessionClosed}
	}

	history, err := s.gen.FetchHistory(ctx)
	if err != nil {
		s.logger.Warn("history fetch failed, starting empty", "error", err)
		history = nil
	}

	valid := make([]Turn, 0, len(history))
	for _, t := range history {
		if missing := t.MissingFields(); len(missing) > 0 {
			s.logger.Warn("skipping history turn", "id", t.ID, "missing", missing)
			continue
		}
		valid = append(valid, t)
	}

	if err := s.store.Initialize(valid); err != nil {
		return err
	}
	s.logger.Info("history loaded", "turns", len(valid))

	s.mu.Lock()
	s.unlockAndPublish(Event{Kind: EventHistoryLoaded, State: s.snapshotLocked()})
	return nil
}

// StartSession generates the first turn from a sketch and a description.
func (s *Session) StartSession(ctx context.Context, sketch Image, prompt string) (*Turn, error) {
	if !sketch.IsImage() {
		return nil, &ValidationError{Message: MsgMissingImage}
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, &ValidationError{Message: MsgMissingDescription}
	}

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, &StateError{Message: MsgSessionClosed}
	case s.state.StartLoading:
		s.mu.Unlock()
		return nil, &StateError{Message: MsgStartInFlight}
	}
	s.unlockAndPublish(Event{Kind: EventStateChanged, State: s.beginLocked(opStart)})

	req := StartRequest{Sketch: sketch, Prompt: prompt}
	return s.run(opStart, func() (*Turn, error) {
		return s.gen.Start(ctx, req)
	})
}

// ContinueSession generates a turn from the previous turn's output image.
func (s *Session) ContinueSession(ctx context.Context, prompt string) (*Turn, error) {
	last, ok := s.store.Last()
	if !ok {
		return nil, &StateError{Message: MsgNoPriorTurn}
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, &ValidationError{Message: MsgMissingDescription}
	}

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return nil, &StateError{Message: MsgSessionClosed}
	case s.state.StartLoading || s.state.ContinueLoading:
		s.mu.Unlock()
		return nil, &StateError{Message: MsgGenerationInFlight}
	}
	// Re-read under the lock: a start may have committed since the check above.
	last, _ = s.store.Last()
	s.unlockAndPublish(Event{Kind: EventStateChanged, State: s.beginLocked(opContinue)})

	req := ContinueRequest{Prompt: prompt, LastImage: last.OutputImage}
	return s.run(opContinue, func() (*Turn, error) {
		return s.gen.Continue(ctx, req)
	})
}

// beginLocked marks op in flight and clears its error slot. Must be called with mu held.
func (s *Session) beginLocked(op operation) State {
	op.setLoading(&s.state, true)
	op.setError(&s.state, "")
	return s.snapshotLocked()
}

// run performs the remote call and commits its outcome. The loading flag is
// released on every exit path, including a panicking client.
func (s *Session) run(op operation, call func() (*Turn, error)) (*Turn, error) {
	committed := false
	defer func() {
		if committed {
			return
		}
		s.mu.Lock()
		op.setLoading(&s.state, false)
		s.unlockAndPublish(Event{Kind: EventStateChanged, State: s.snapshotLocked()})
	}()

	turn, err := call()
	if err == nil {
		err = checkResponse(turn)
	}

	err = s.complete(op, turn, err)
	committed = true

	if err != nil {
		s.logger.Warn("generation failed", "op", op.String(), "error", err)
		return nil, err
	}
	s.logger.Info("turn committed", "op", op.String(), "id", turn.ID)
	out := *turn
	return &out, nil
}

// complete releases op's loading flag and either records the failure or
// appends the turn, all under one lock so appends follow completion order.
func (s *Session) complete(op operation, turn *Turn, err error) error {
	s.mu.Lock()

	op.setLoading(&s.state, false)

	if err == nil {
		err = s.store.Append(*turn)
	}
	if err != nil {
		op.setError(&s.state, failureMessage(err, op.fallback()))
		s.unlockAndPublish(Event{Kind: EventStateChanged, State: s.snapshotLocked()})
		return err
	}

	if op == opContinue {
		s.state.ContinueDraft = ""
	}
	st := s.snapshotLocked()
	appended := *turn
	events := []Event{{Kind: EventTurnAppended, Turn: &appended, State: st}}
	if op == opContinue {
		events = append(events, Event{Kind: EventContinueInputReset, State: st})
	}
	events = append(events, Event{Kind: EventStateChanged, State: st})
	s.unlockAndPublish(events...)
	return nil
}

// unlockAndPublish releases mu and publishes events before any later
// snapshot can be published. Must be called with mu held.
func (s *Session) unlockAndPublish(events ...Event) {
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()
	for _, ev := range events {
		s.events.Publish(ev)
	}
}

// checkResponse rejects a success response that cannot be committed.
func checkResponse(turn *Turn) error {
	if turn == nil {
		return &MalformedResponseError{Err: errors.New("empty response")}
	}
	return turn.Validate()
}

// SetContinueDraft records the continuation prompt input value.
func (s *Session) SetContinueDraft(text string) {
	s.mu.Lock()
	s.state.ContinueDraft = text
	s.unlockAndPublish(Event{Kind: EventStateChanged, State: s.snapshotLocked()})
}

// DismissStartError clears the start error slot.
func (s *Session) DismissStartError() {
	s.dismiss(opStart)
}

// DismissContinueError clears the continue error slot.
func (s *Session) DismissContinueError() {
	s.dismiss(opContinue)
}

func (s *Session) dismiss(op operation) {
	s.mu.Lock()
	op.setError(&s.state, "")
	s.unlockAndPublish(Event{Kind: EventStateChanged, State: s.snapshotLocked()})
}

// State returns a snapshot of the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	st := s.state
	st.TurnCount = s.store.Len()
	return st
}

// Turns returns the committed turns, oldest first.
func (s *Session) Turns() []Turn {
	return s.store.Turns()
}

// Subscribe registers a view for session events; see Broadcaster.Subscribe.
func (s *Session) Subscribe(ctx context.Context) (<-chan Event, string) {
	return s.events.Subscribe(ctx)
}

// Unsubscribe removes a view subscription.
func (s *Session) Unsubscribe(subID string) {
	s.events.Unsubscribe(subID)
}

// Close ends the session. In-flight operations still complete; new ones
// fail with a StateError.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.events.Close()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
