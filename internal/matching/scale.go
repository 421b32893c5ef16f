package matching

import (
	"image"
	"math"
)

// capSteps is the number of 1% steps scanned when computing the cap.
const capSteps = 100

// ScaleCandidate is a template size expressed as a fraction of the Cap, in (0, 1].
type ScaleCandidate float64

// Cap is the largest 1%-step scaling of the template that fits inside the frame.
type Cap struct {
	// Fraction of the template's native size, i/100.
	Fraction float64 `json:"fraction"`
	// Width and Height are the unrounded capped template dimensions.
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the cap has no area.
func (c Cap) Empty() bool {
	return c.Width <= 0 || c.Height <= 0
}

// Size returns the exact template dimensions at scale s.
func (c Cap) Size(s ScaleCandidate) (width, height float64) {
	return c.Width * float64(s), c.Height * float64(s)
}

// PixelSize returns the integer resize target for scale s, rounded to the
// nearest pixel. Rounding never exceeds the frame because the cap fits it.
func (c Cap) PixelSize(s ScaleCandidate) image.Point {
	w, h := c.Size(s)
	return image.Pt(int(math.Round(w)), int(math.Round(h)))
}

// ComputeCap scans fractions i/100 for i = 0..100 and returns the largest one
// whose scaled template fits within the frame on both axes.
//
// Precondition: scaled dimensions grow monotonically with i. The scan relies
// on it and stops at the first fraction that exceeds the frame on either axis,
// since no larger fraction can fit. Fraction 0 always fits, so a template that
// already overflows at 1% yields a zero cap.
func ComputeCap(template, frame image.Point) Cap {
	var c Cap
	for i := 0; i <= capSteps; i++ {
		w := float64(template.X) * float64(i) / capSteps
		h := float64(template.Y) * float64(i) / capSteps
		if w > float64(frame.X) || h > float64(frame.Y) {
			break
		}
		c = Cap{Fraction: float64(i) / capSteps, Width: w, Height: h}
	}
	return c
}

// Scales returns the ordered scale ladder 0.10, 0.20, ... 1.00.
//
// Values are computed as i/100 rather than accumulated so every candidate is
// the exact fraction reported with a match.
func Scales() []ScaleCandidate {
	scales := make([]ScaleCandidate, 0, 10)
	for i := 10; i <= capSteps; i += 10 {
		scales = append(scales, ScaleCandidate(float64(i)/capSteps))
	}
	return scales
}
