// Package distance turns a located pattern into a distance from the camera.
//
// It applies the pinhole camera relation D = W * F / P, where W is the
// pattern's real width, F the camera's focal length in pixels and P the
// pattern's perceived width in pixels at the winning scale.
package distance

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/ironsheep/rangefinder-mcp/internal/matching"
)

var (
	// ErrDegenerateMatch means the perceived width is zero so the distance
	// is undefined.
	ErrDegenerateMatch = errors.New("perceived width is zero")

	// ErrInvalidCalibration means the real width or focal length is not positive.
	ErrInvalidCalibration = errors.New("invalid calibration")
)

// Point is a sub-pixel position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is the matched pattern's extent: Min is the top-left corner, Max the
// bottom-right. Max is exact, not rounded to the resized template's pixels.
type Box struct {
	Min Point `json:"min"`
	Max Point `json:"max"`
}

// Width returns Max.X - Min.X.
func (b Box) Width() float64 { return b.Max.X - b.Min.X }

// Height returns Max.Y - Min.Y.
func (b Box) Height() float64 { return b.Max.Y - b.Min.Y }

// Rect returns the box on the pixel grid. The bottom-right corner is rounded
// to the nearest pixel.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(b.Min.X)), int(math.Round(b.Min.Y)),
		int(math.Round(b.Max.X)), int(math.Round(b.Max.Y)),
	)
}

// Result is the computed distance and the box it was measured from.
type Result struct {
	Distance       float64 `json:"distance"`
	PerceivedWidth float64 `json:"perceived_width"`
	Box            Box     `json:"box"`
}

// Calibration holds the constants of the distance relation.
type Calibration struct {
	// RealWidth is the physical width of the pattern, in the caller's units.
	RealWidth float64
	// FocalLength is in pixels, the same convention as the perceived width.
	FocalLength float64
}

// Validate checks that both constants are positive and finite.
func (c Calibration) Validate() error {
	if !(c.RealWidth > 0) || math.IsInf(c.RealWidth, 0) {
		return fmt.Errorf("real width %v: %w", c.RealWidth, ErrInvalidCalibration)
	}
	if !(c.FocalLength > 0) || math.IsInf(c.FocalLength, 0) {
		return fmt.Errorf("focal length %v: %w", c.FocalLength, ErrInvalidCalibration)
	}
	return nil
}

// BoundingBox returns the box of best at its scale of the capped template.
func BoundingBox(best matching.Match, capSize matching.Cap) Box {
	w, h := capSize.Size(best.Scale)
	minX, minY := float64(best.Location.X), float64(best.Location.Y)
	return Box{
		Min: Point{X: minX, Y: minY},
		Max: Point{X: minX + w, Y: minY + h},
	}
}

// Compute returns the distance for best using cal. The perceived width is
// the cap width times the winning scale; a zero width returns
// ErrDegenerateMatch instead of an infinite distance.
func Compute(best matching.Match, capSize matching.Cap, cal Calibration) (*Result, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}

	perceived := capSize.Width * float64(best.Scale)
	if !(perceived > 0) {
		return nil, fmt.Errorf("cap width %.2f at scale %.2f: %w", capSize.Width, float64(best.Scale), ErrDegenerateMatch)
	}

	return &Result{
		Distance:       cal.RealWidth * cal.FocalLength / perceived,
		PerceivedWidth: perceived,
		Box:            BoundingBox(best, capSize),
	}, nil
}

// Estimate is shorthand for Compute with a Calibration built from
// realWidth and focalLength.
func Estimate(best matching.Match, capSize matching.Cap, realWidth, focalLength float64) (*Result, error) {
	return Compute(best, capSize, Calibration{RealWidth: realWidth, FocalLength: focalLength})
}
