// ABOUTME: GenerationClient contract between the Session and the remote generation service
// ABOUTME: Implemented over HTTP by internal/client; faked in tests

package conversation

import "context"

// StartRequest opens a conversation from a sketch.
type StartRequest struct {
	Sketch Image
	Prompt string
}

// ContinueRequest continues from the previous turn's output image.
type ContinueRequest struct {
	Prompt    string
	LastImage string
}

// GenerationClient performs the remote operations a Session needs.
//
// Implementations report failures as *NetworkError (no response),
// *ServerError (non-success response) or *MalformedResponseError (success
// response missing required fields).
type GenerationClient interface {
	FetchHistory(ctx context.Context) ([]Turn, error)
	Start(ctx context.Context, req StartRequest) (*Turn, error)
	Continue(ctx context.Context, req ContinueRequest) (*Turn, error)
}
