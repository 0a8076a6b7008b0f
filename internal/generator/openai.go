// ABOUTME: OpenAI image-edit generator built on openai-go
// ABOUTME: Sends the sketch and prompt to the images/edits endpoint and decodes base64 output

package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/2389/sketchbook/internal/config"
)

// OpenAI generates images with the OpenAI image edit API.
type OpenAI struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI generator. Extra request options are applied
// after the ones derived from cfg.
func NewOpenAI(cfg config.GeneratorConfig, logger *slog.Logger, extra ...option.RequestOption) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai generator requires an api key")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)

	model := cfg.Model
	if model == "" {
		model = openai.ImageModelGPTImage1
	}

	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger.With("component", "generator", "backend", "openai"),
	}, nil
}

// Generate sends one edit request and returns the first image.
func (g *OpenAI) Generate(ctx context.Context, req Request) (*Result, error) {
	if len(req.Image) == 0 {
		return nil, ErrEmptyResult
	}

	mime := req.MIMEType
	if mime == "" {
		mime = "image/png"
	}

	resp, err := g.client.Images.Edit(ctx, openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(req.Image), "sketch"+extensionFor(mime), mime),
		},
		Prompt:       req.Prompt,
		Model:        g.model,
		N:            openai.Int(1),
		OutputFormat: openai.ImageEditParamsOutputFormatPNG,
	})
	if err != nil {
		return nil, fmt.Errorf("openai image edit: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, ErrEmptyResult
	}

	img, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decoding openai image: %w", err)
	}

	g.logger.Debug("generated image", "model", g.model, "bytes", len(img))
	return &Result{
		Image:    img,
		MIMEType: "image/png",
		Text:     resp.Data[0].RevisedPrompt,
	}, nil
}

func extensionFor(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
