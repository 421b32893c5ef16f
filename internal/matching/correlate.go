package matching

import (
	"fmt"
	"image"

	"github.com/ironsheep/rangefinder-mcp/internal/imaging"
)

// Surface is a grid of normalized correlation scores in [0, 1], one per
// template placement: (frameW - tmplW + 1) columns by (frameH - tmplH + 1) rows.
type Surface struct {
	Width  int
	Height int
	Scores []float64
}

// At returns the score for the template placed with its top-left corner at (x, y).
func (s *Surface) At(x, y int) float64 {
	return s.Scores[y*s.Width+x]
}

// Max returns the highest score and the first location holding it in
// row-major order.
func (s *Surface) Max() (float64, image.Point) {
	return maxLoc(s.Scores, s.Width)
}

// Correlate computes the full normalized correlation surface of tmpl slid over frame.
//
// Scores are unnormalized cross-correlation sums rescaled by the global
// minimum and maximum of the surface. A constant surface normalizes to all
// zeros instead of dividing by zero.
func Correlate(frame, tmpl *imaging.EdgeMap) (*Surface, error) {
	size, err := surfaceSize(frame, tmpl)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, size.X*size.Y)
	crossCorrelate(scores, frame, tmpl, size)
	normalizeMinMax(scores)

	return &Surface{Width: size.X, Height: size.Y, Scores: scores}, nil
}

// MatchEdges returns the best placement of tmpl over frame. The returned
// Match has a zero Scale; the caller records the scale it searched.
//
// The surface buffer is taken from a pool keyed by surface size and released
// before returning, so back-to-back frames of the same size reuse memory
// without sharing it between concurrent calls.
func MatchEdges(frame, tmpl *imaging.EdgeMap) (Match, error) {
	size, err := surfaceSize(frame, tmpl)
	if err != nil {
		return Match{}, err
	}

	buf := surfaces.get(size.X, size.Y)
	defer surfaces.put(size.X, size.Y, buf)

	scores := *buf
	crossCorrelate(scores, frame, tmpl, size)
	normalizeMinMax(scores)

	score, loc := maxLoc(scores, size.X)
	return Match{Score: score, Location: loc}, nil
}

// surfaceSize validates the pair and returns the surface dimensions.
func surfaceSize(frame, tmpl *imaging.EdgeMap) (image.Point, error) {
	if frame.Empty() {
		return image.Point{}, ErrEmptyFrame
	}
	if tmpl.Empty() {
		return image.Point{}, ErrEmptyTemplate
	}
	if tmpl.Width > frame.Width || tmpl.Height > frame.Height {
		return image.Point{}, fmt.Errorf("%dx%d template over %dx%d frame: %w",
			tmpl.Width, tmpl.Height, frame.Width, frame.Height, ErrTemplateTooLarge)
	}
	return image.Pt(frame.Width-tmpl.Width+1, frame.Height-tmpl.Height+1), nil
}

// crossCorrelate fills dst with sum(T(x',y') * I(x+x', y+y')) for every placement.
//
// Edge maps are binary, so the product is non-zero only where both pixels
// are edges. Summing over the template's edge pixels alone gives the same
// surface up to a constant factor of 255², which min-max normalization removes.
func crossCorrelate(dst []float64, frame, tmpl *imaging.EdgeMap, size image.Point) {
	offsets := make([]int, 0, tmpl.EdgeCount())
	for ty := 0; ty < tmpl.Height; ty++ {
		for tx := 0; tx < tmpl.Width; tx++ {
			if tmpl.Pix[ty*tmpl.Width+tx] != imaging.EdgeOff {
				offsets = append(offsets, ty*frame.Width+tx)
			}
		}
	}

	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			base := y*frame.Width + x
			hits := 0
			for _, off := range offsets {
				if frame.Pix[base+off] != imaging.EdgeOff {
					hits++
				}
			}
			dst[y*size.X+x] = float64(hits)
		}
	}
}

// normalizeMinMax rescales scores in place to [0, 1].
func normalizeMinMax(scores []float64) {
	if len(scores) == 0 {
		return
	}
	lo, hi := scores[0], scores[0]
	for _, v := range scores[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	span := hi - lo
	if span <= 0 {
		clear(scores)
		return
	}
	for i, v := range scores {
		scores[i] = (v - lo) / span
	}
}

func maxLoc(scores []float64, width int) (float64, image.Point) {
	best, at := scores[0], 0
	for i, v := range scores {
		if v > best {
			best, at = v, i
		}
	}
	return best, image.Pt(at%width, at/width)
}
