package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultAnnotationColor is the outline colour used when none is configured.
const DefaultAnnotationColor = "#0000FF"

// AnnotateResult contains an annotated frame encoded as base64 PNG.
type AnnotateResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// ParseColor parses a "#RRGGBB" or "#RGB" colour string into an opaque RGBA colour.
func ParseColor(hex string) (color.RGBA, error) {
	if hex == "" {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// DrawAnnotation copies frame and draws a one-pixel rectangle outline for box,
// with an optional text label placed just above the box (or inside it when the
// box touches the top of the frame). Parts outside the frame are clipped.
func DrawAnnotation(frame image.Image, box image.Rectangle, label string, c color.Color) *image.RGBA {
	bounds := frame.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, frame, bounds.Min, draw.Src)

	box = box.Canon()
	if box.Empty() {
		return out
	}

	// Outline is drawn on the inclusive corners Min and Max-1
	x0, y0, x1, y1 := box.Min.X, box.Min.Y, box.Max.X-1, box.Max.Y-1
	for x := x0; x <= x1; x++ {
		setClipped(out, x, y0, c)
		setClipped(out, x, y1, c)
	}
	for y := y0; y <= y1; y++ {
		setClipped(out, x0, y, c)
		setClipped(out, x1, y, c)
	}

	if label != "" {
		drawLabel(out, box, label, c)
	}
	return out
}

// Annotate draws the annotation and encodes the result as base64 PNG.
// An unparseable colour falls back to DefaultAnnotationColor.
func Annotate(frame image.Image, box image.Rectangle, label, colorHex string) (*AnnotateResult, error) {
	c, err := ParseColor(colorHex)
	if err != nil {
		c, _ = ParseColor(DefaultAnnotationColor)
	}

	out := DrawAnnotation(frame, box, label, c)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}

	return &AnnotateResult{
		Width:       out.Bounds().Dx(),
		Height:      out.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

func setClipped(img *image.RGBA, x, y int, c color.Color) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.Set(x, y, c)
	}
}

// drawLabel renders text with the 7x13 basic font on a black backing strip.
func drawLabel(img *image.RGBA, box image.Rectangle, text string, c color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	top := box.Min.Y - height - 1
	if top < img.Bounds().Min.Y {
		top = box.Min.Y + 1
	}
	backing := image.Rect(box.Min.X, top, box.Min.X+width+2, top+height).Intersect(img.Bounds())
	draw.Draw(img, backing, image.NewUniform(color.RGBA{0, 0, 0, 180}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(box.Min.X+1, top+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}
