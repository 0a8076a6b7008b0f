// ABOUTME: Rasterizes a conversation into a single image for snapshots
// ABOUTME: Draws prompt captions, scaled output images, and wrapped model text in one column

package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"log/slog"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/2389/sketchbook/internal/conversation"
)

const (
	// DefaultWidth is the column width in pixels when Region.Width is unset.
	DefaultWidth = 720

	// DefaultMaxHeight bounds the raster height.
	DefaultMaxHeight = 16000

	padding    = 16
	lineGap    = 4
	turnGap    = 24
	blockGap   = 8
	minWidth   = 160
	placeRatio = 3.0 / 4.0
)

// ErrEmptyRegion is returned when there is nothing to draw.
var ErrEmptyRegion = errors.New("render: empty region")

var (
	background  = color.White
	promptColor = color.RGBA{R: 0x1f, G: 0x3a, B: 0x93, A: 0xff}
	textColor   = color.RGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xff}
	placeFill   = color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
	placeText   = color.RGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xff}
	ruleColor   = color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
)

// Region is the content to capture: the ordered turns laid out in a column.
type Region struct {
	Turns []conversation.Turn
	Width int
}

// Rasterizer draws conversation regions. The zero value is not usable; use New.
type Rasterizer struct {
	maxHeight int
	face      font.Face
	logger    *slog.Logger
}

// New creates a Rasterizer. Pass nil logger for default.
func New(logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{
		maxHeight: DefaultMaxHeight,
		face:      basicfont.Face7x13,
		logger:    logger.With("component", "render"),
	}
}

type blockKind int

const (
	kindText blockKind = iota
	kindImage
	kindPlaceholder
	kindRule
)

// block is one laid-out element of a turn. advance is the vertical space it
// takes including the gap after it.
type block struct {
	kind    blockKind
	lines   []string
	color   color.Color
	img     image.Image
	height  int
	advance int
}

// Capture renders r as a single raster. Images that cannot be decoded are
// drawn as placeholders. Cancelling ctx aborts the capture.
func (rz *Rasterizer) Capture(ctx context.Context, r Region) (image.Image, error) {
	if len(r.Turns) == 0 {
		return nil, ErrEmptyRegion
	}
	width := r.Width
	if width <= 0 {
		width = DefaultWidth
	}
	if width < minWidth {
		width = minWidth
	}
	inner := width - 2*padding
	lineHeight := rz.face.Metrics().Height.Ceil() + lineGap
	maxChars := max(inner/rz.charWidth(), 1)

	var blocks []block
	for i, t := range r.Turns {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		if i > 0 {
			blocks = append(blocks, block{kind: kindRule, height: 1, advance: turnGap})
		}

		caption := wrap("> "+t.Prompt, maxChars)
		blocks = append(blocks, block{
			kind:    kindText,
			lines:   caption,
			color:   promptColor,
			height:  len(caption) * lineHeight,
			advance: len(caption)*lineHeight + blockGap,
		})

		if img := rz.decode(t); img != nil {
			b := img.Bounds()
			h := max(b.Dy()*inner/max(b.Dx(), 1), 1)
			blocks = append(blocks, block{kind: kindImage, img: img, height: h, advance: h + blockGap})
		} else {
			h := int(float64(inner) * placeRatio)
			blocks = append(blocks, block{kind: kindPlaceholder, height: h, advance: h + blockGap})
		}

		if text := strings.TrimSpace(t.ModelResponseText); text != "" {
			lines := wrap(text, maxChars)
			blocks = append(blocks, block{
				kind:    kindText,
				lines:   lines,
				color:   textColor,
				height:  len(lines) * lineHeight,
				advance: len(lines) * lineHeight,
			})
		}
	}

	height := 2 * padding
	for _, b := range blocks {
		height += b.advance
	}
	if height > rz.maxHeight {
		rz.logger.Debug("clipping capture", "height", height, "max", rz.maxHeight)
		height = rz.maxHeight
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	y := padding
	for _, b := range blocks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
		if y >= height {
			break
		}
		switch b.kind {
		case kindText:
			rz.drawLines(dst, b.lines, b.color, y, lineHeight)
		case kindImage:
			rect := image.Rect(padding, y, padding+inner, y+b.height)
			draw.CatmullRom.Scale(dst, rect, b.img, b.img.Bounds(), draw.Over, nil)
		case kindPlaceholder:
			rz.drawPlaceholder(dst, image.Rect(padding, y, padding+inner, y+b.height))
		case kindRule:
			mid := y + b.advance/2
			draw.Draw(dst, image.Rect(padding, mid, width-padding, mid+b.height), image.NewUniform(ruleColor), image.Point{}, draw.Src)
		}
		y += b.advance
	}

	rz.logger.Debug("captured region", "turns", len(r.Turns), "width", width, "height", height)
	return dst, nil
}

// decode returns the turn's output image, or nil if it cannot be decoded.
func (rz *Rasterizer) decode(t conversation.Turn) image.Image {
	_, data, err := conversation.DecodeDataURL(t.OutputImage)
	if err != nil {
		rz.logger.Debug("output image is not a data URL", "id", t.ID, "error", err)
		return nil
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		rz.logger.Debug("undecodable output image", "id", t.ID, "error", err)
		return nil
	}
	rz.logger.Debug("decoded output image", "id", t.ID, "format", format)
	return img
}

func (rz *Rasterizer) charWidth() int {
	adv, ok := rz.face.GlyphAdvance('m')
	if !ok || adv.Ceil() <= 0 {
		return 7
	}
	return adv.Ceil()
}

func (rz *Rasterizer) drawLines(dst *image.RGBA, lines []string, c color.Color, top, lineHeight int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: rz.face,
	}
	ascent := rz.face.Metrics().Ascent.Ceil()
	for i, line := range lines {
		d.Dot = fixed.P(padding, top+i*lineHeight+ascent)
		d.DrawString(line)
	}
}

func (rz *Rasterizer) drawPlaceholder(dst *image.RGBA, rect image.Rectangle) {
	draw.Draw(dst, rect, image.NewUniform(placeFill), image.Point{}, draw.Src)

	const label = "image unavailable"
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(placeText),
		Face: rz.face,
	}
	w := d.MeasureString(label).Ceil()
	x := rect.Min.X + (rect.Dx()-w)/2
	y := rect.Min.Y + rect.Dy()/2
	d.Dot = fixed.P(x, y)
	d.DrawString(label)
}

// wrap breaks text into lines of at most width characters, splitting on
// whitespace and hard-breaking words longer than a line.
func wrap(text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		var cur []rune
		for _, w := range words {
			word := []rune(w)
			for len(word) > width {
				if len(cur) > 0 {
					lines = append(lines, string(cur))
					cur = nil
				}
				lines = append(lines, string(word[:width]))
				word = word[width:]
			}
			switch {
			case len(cur) == 0:
				cur = word
			case len(cur)+1+len(word) <= width:
				cur = append(append(cur, ' '), word...)
			default:
				lines = append(lines, string(cur))
				cur = word
			}
		}
		if len(cur) > 0 {
			lines = append(lines, string(cur))
		}
	}
	return lines
}
