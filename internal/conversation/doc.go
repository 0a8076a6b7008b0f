// Package conversation provides the client-side conversation controller for
// multi-turn sketch-to-image sessions.
//
// # Overview
//
// A session is an ordered, append-only list of turns. Each turn pairs a
// prompt with the image the generation service produced for it. The first
// turn starts from a user sketch; every later turn continues from the output
// image of the turn before it.
//
// # Components
//
//   - Store: owns the ordered turns. Hydrated once at bootstrap, grows only by
//     append, never shrinks or reorders.
//   - GenerationClient: the remote boundary (fetch history, start, continue).
//     internal/client provides the HTTP implementation.
//   - Session: validates input, guards against overlapping operations, calls
//     the GenerationClient, appends to the Store, and tracks per-operation
//     loading and error state.
//   - Broadcaster: fan-out of session events to views.
//
// # Usage
//
//	sess := conversation.NewSession(genClient, conversation.WithLogger(logger))
//	defer sess.Close()
//
//	sess.Bootstrap(ctx)
//	events, _ := sess.Subscribe(ctx)
//
//	turn, err := sess.StartSession(ctx, sketch, "a cozy cabin")
//	turn, err = sess.ContinueSession(ctx, "add snow")
//
// # Errors
//
// ValidationError and StateError are returned before any network call and
// never touch the loading flags. NetworkError, ServerError and
// MalformedResponseError come from the GenerationClient; the Session records
// their message in the error slot of the operation that failed and leaves
// the Store untouched.
//
// # Events
//
// Subscribers receive:
//
//   - history_loaded: bootstrap finished (possibly with an empty history)
//   - state_changed: loading or error state changed
//   - turn_appended: a new turn was committed
//   - continue_input_reset: the continuation prompt input was cleared
package conversation
