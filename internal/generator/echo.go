// ABOUTME: Stub generator that returns the input image unchanged
// ABOUTME: Lets the gateway run end to end without a model provider

package generator

import (
	"context"
	"net/http"
)

// EchoTextPrefix starts the text of every echo result.
const EchoTextPrefix = "(Stub) Model response for prompt: "

// Echo returns the input image with a stub response text.
type Echo struct{}

// NewEcho creates the stub generator.
func NewEcho() *Echo {
	return &Echo{}
}

// Generate returns a copy of the input image.
func (e *Echo) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Image) == 0 {
		return nil, ErrEmptyResult
	}

	mime := req.MIMEType
	if mime == "" {
		mime = http.DetectContentType(req.Image)
	}
	img := make([]byte, len(req.Image))
	copy(img, req.Image)

	return &Result{
		Image:    img,
		MIMEType: mime,
		Text:     EchoTextPrefix + req.Prompt,
	}, nil
}
