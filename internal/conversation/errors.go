// ABOUTME: Error taxonomy for session operations
// ABOUTME: Validation/State errors short-circuit locally; Network/Server/Malformed come from the generation service

package conversation

import (
	"errors"
	"fmt"
	"strings"
)

// Messages used by local precondition failures.
const (
	MsgMissingImage       = "missing or invalid image"
	MsgMissingDescription = "missing description"
	MsgNoPriorTurn        = "no prior turn"
	MsgStartInFlight      = "start already in flight"
	MsgGenerationInFlight = "generation already in flight"
	MsgSessionClosed      = "session closed"
)

// Fallback messages recorded when the service gives no usable message.
const (
	FallbackStartError    = "failed to generate image"
	FallbackContinueError = "failed to continue conversation"
)

// ValidationError is a local precondition failure on caller input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// StateError means the operation is not allowed in the current session state.
type StateError struct {
	Message string
}

func (e *StateError) Error() string { return e.Message }

// NetworkError is a transport-level failure: no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-success response. Message is the server-supplied
// message and may be empty.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return e.Message
}

// MalformedResponseError is a success response that cannot be turned into a
// committed Turn.
type MalformedResponseError struct {
	Missing []string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("malformed response: %v", e.Err)
	case len(e.Missing) > 0:
		return "malformed response: missing " + strings.Join(e.Missing, ", ")
	default:
		return "malformed response"
	}
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// failureMessage picks the text recorded in an operation's error slot.
func failureMessage(err error, fallback string) string {
	var serverErr *ServerError
	if errors.As(err, &serverErr) && strings.TrimSpace(serverErr.Message) != "" {
		return serverErr.Message
	}
	return fallback
}

// IsLocal reports whether err was raised before any network call.
func IsLocal(err error) bool {
	var validationErr *ValidationError
	var stateErr *StateError
	return errors.As(err, &validationErr) || errors.As(err, &stateErr)
}
