// ABOUTME: Image generator interface used by the gateway's generation endpoints
// ABOUTME: Selects the echo stub or the OpenAI backend from configuration

package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/sketchbook/internal/config"
)

// ErrEmptyResult is returned when a backend produces no image.
var ErrEmptyResult = errors.New("generator returned no image")

// Request is one generation: an input image and the instruction for it.
type Request struct {
	Image    []byte
	MIMEType string
	Prompt   string
}

// Result is a generated image with optional model text.
type Result struct {
	Image    []byte
	MIMEType string
	Text     string
}

// Generator turns an image and a prompt into a new image.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// New builds the generator named by cfg.Backend.
func New(cfg config.GeneratorConfig, logger *slog.Logger) (Generator, error) {
	switch cfg.Backend {
	case "", config.BackendEcho:
		return NewEcho(), nil
	case config.BackendOpenAI:
		return NewOpenAI(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown generator backend %q", cfg.Backend)
	}
}
