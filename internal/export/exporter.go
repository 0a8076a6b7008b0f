// ABOUTME: Exports a conversation as a JSON artifact or a single-page PDF snapshot
// ABOUTME: Reads committed turns from a Source and hands finished artifacts to a Sink

package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/draw"

	"github.com/2389/sketchbook/internal/conversation"
	"github.com/2389/sketchbook/internal/render"
)

const (
	// JSONName is the file name of the JSON artifact.
	JSONName = "sketch-conversation.json"
	// SnapshotName is the file name of the snapshot document.
	SnapshotName = "sketch-conversation.pdf"

	// SnapshotNotice is shown to the user when a snapshot cannot be produced.
	SnapshotNotice = "Could not export a snapshot of the conversation."

	snapshotImageName = "conversation"
)

// ErrSnapshotFailed wraps every snapshot failure.
var ErrSnapshotFailed = errors.New("snapshot export failed")

// Source supplies the committed turns. *conversation.Session and
// *conversation.Store both satisfy it.
type Source interface {
	Turns() []conversation.Turn
}

// Renderer captures a conversation region as a raster.
type Renderer interface {
	Capture(ctx context.Context, region render.Region) (image.Image, error)
}

// Artifact is a produced export.
type Artifact struct {
	Name     string
	MIMEType string
	Data     []byte
	// Location is where the Sink put it, e.g. a file path.
	Location string
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithRenderer sets the snapshot renderer. Without one, snapshots fail.
func WithRenderer(r Renderer) Option {
	return func(e *Exporter) { e.renderer = r }
}

// WithNotifier sets where user-facing notices go.
func WithNotifier(n Notifier) Option {
	return func(e *Exporter) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithWidth sets the capture column width in pixels.
func WithWidth(px int) Option {
	return func(e *Exporter) { e.width = px }
}

// WithLogger sets the exporter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Exporter produces conversation artifacts. It only reads from its Source.
type Exporter struct {
	src      Source
	sink     Sink
	renderer Renderer
	notifier Notifier
	width    int
	logger   *slog.Logger
}

// New creates an Exporter reading from src and writing to sink.
func New(src Source, sink Sink, opts ...Option) *Exporter {
	e := &Exporter{
		src:    src,
		sink:   sink,
		width:  render.DefaultWidth,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "export")
	if e.notifier == nil {
		e.notifier = NewLogNotifier(e.logger)
	}
	return e
}

// ExportJSON writes every turn, in order, as an indented JSON array. With no
// turns it does nothing and returns nil, nil.
func (e *Exporter) ExportJSON(ctx context.Context) (*Artifact, error) {
	turns := e.src.Turns()
	if len(turns) == 0 {
		e.logger.Info("nothing to export", "format", "json")
		return nil, nil
	}

	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding turns: %w", err)
	}

	art := &Artifact{Name: JSONName, MIMEType: "application/json", Data: data}
	if err := e.save(ctx, art); err != nil {
		return nil, err
	}
	e.logger.Info("exported conversation", "format", "json", "turns", len(turns), "location", art.Location)
	return art, nil
}

// ParseJSON decodes an artifact produced by ExportJSON.
func ParseJSON(data []byte) ([]conversation.Turn, error) {
	var turns []conversation.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("decoding turns: %w", err)
	}
	return turns, nil
}

// ExportSnapshot captures the conversation and writes it as a single A4
// portrait PDF page. With no turns it does nothing. Any failure is reported
// to the Notifier and returned wrapped in ErrSnapshotFailed.
func (e *Exporter) ExportSnapshot(ctx context.Context) (*Artifact, error) {
	turns := e.src.Turns()
	if len(turns) == 0 {
		e.logger.Info("nothing to export", "format", "pdf")
		return nil, nil
	}

	art, err := e.snapshot(ctx, turns)
	if err != nil {
		e.logger.Error("snapshot export failed", "error", err)
		e.notifier.Notify(ctx, SnapshotNotice)
		return nil, fmt.Errorf("%w: %w", ErrSnapshotFailed, err)
	}
	e.logger.Info("exported conversation", "format", "pdf", "turns", len(turns), "location", art.Location)
	return art, nil
}

func (e *Exporter) snapshot(ctx context.Context, turns []conversation.Turn) (*Artifact, error) {
	if e.renderer == nil {
		return nil, errors.New("no renderer configured")
	}

	raster, err := e.capture(ctx, render.Region{Turns: turns, Width: e.width})
	if err != nil {
		return nil, fmt.Errorf("capturing conversation: %w", err)
	}
	if raster == nil || raster.Bounds().Empty() {
		return nil, errors.New("renderer returned an empty raster")
	}

	data, err := composePDF(raster)
	if err != nil {
		return nil, err
	}

	art := &Artifact{Name: SnapshotName, MIMEType: "application/pdf", Data: data}
	if err := e.save(ctx, art); err != nil {
		return nil, err
	}
	return art, nil
}

// capture runs the renderer. A panicking renderer is reported as an error.
func (e *Exporter) capture(ctx context.Context, region render.Region) (raster image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panicked: %v", r)
		}
	}()
	return e.renderer.Capture(ctx, region)
}

func (e *Exporter) save(ctx context.Context, art *Artifact) error {
	loc, err := e.sink.Save(ctx, art.Name, art.Data)
	if err != nil {
		return fmt.Errorf("saving %s: %w", art.Name, err)
	}
	art.Location = loc
	return nil
}

// composePDF places raster on one A4 portrait page at full page width. The
// raster is cropped to the page's aspect ratio so nothing spills past the
// bottom edge.
func composePDF(raster image.Image) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Sketch conversation", true)
	pdf.SetCreator("sketchbook", true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()

	cropped := cropToAspect(raster, pageW/pageH)
	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("encoding raster: %w", err)
	}

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(snapshotImageName, opts, &buf)
	b := cropped.Bounds()
	h := pageW * float64(b.Dy()) / float64(b.Dx())
	pdf.ImageOptions(snapshotImageName, 0, 0, pageW, h, false, opts, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	return out.Bytes(), nil
}

// cropToAspect keeps the top of img so that width/height is at least aspect.
func cropToAspect(img image.Image, aspect float64) image.Image {
	b := img.Bounds()
	maxH := int(math.Round(float64(b.Dx()) / aspect))
	if b.Dy() <= maxH {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), maxH))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
