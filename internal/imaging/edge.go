package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
)

// Default hysteresis thresholds used when locating a reference pattern.
const (
	DefaultLowThreshold  = 50
	DefaultHighThreshold = 200
)

// EdgeOn and EdgeOff are the only values stored in an EdgeMap.
const (
	EdgeOn  uint8 = 255
	EdgeOff uint8 = 0
)

// gaussianRadius controls the smoothing applied before gradient computation.
const gaussianRadius = 1.4

// ErrEmptyImage is returned when an operation receives an image with zero area.
var ErrEmptyImage = errors.New("image has zero area")

// EdgeMap is a single-channel edge image with the same dimensions as its source.
//
// Pix holds one byte per pixel in row-major order: EdgeOn (255) marks an edge,
// EdgeOff (0) marks a non-edge. An EdgeMap is never modified after creation.
type EdgeMap struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewEdgeMap wraps pix as an EdgeMap. The slice is used as-is, not copied.
func NewEdgeMap(width, height int, pix []uint8) (*EdgeMap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("edge map %dx%d: %w", width, height, ErrEmptyImage)
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("edge map %dx%d needs %d pixels, got %d", width, height, width*height, len(pix))
	}
	return &EdgeMap{Width: width, Height: height, Pix: pix}, nil
}

// At returns the edge value at (x, y).
func (m *EdgeMap) At(x, y int) uint8 {
	return m.Pix[y*m.Width+x]
}

// Size returns the map dimensions as a point (X = width, Y = height).
func (m *EdgeMap) Size() image.Point {
	return image.Pt(m.Width, m.Height)
}

// Empty reports whether the map has no pixels.
func (m *EdgeMap) Empty() bool {
	return m == nil || m.Width <= 0 || m.Height <= 0
}

// EdgeCount returns the number of edge pixels.
func (m *EdgeMap) EdgeCount() int {
	n := 0
	for _, v := range m.Pix {
		if v != EdgeOff {
			n++
		}
	}
	return n
}

// Gray returns the map as a grayscale image anchored at the origin.
func (m *EdgeMap) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	copy(g.Pix, m.Pix)
	return g
}

// ExtractEdges converts an image to a binary edge map using Canny-style edge detection.
//
// Parameters:
//   - img: Source image (color or grayscale) with positive dimensions.
//   - thresholdLow: Low hysteresis threshold (0-255). Gradient magnitudes below
//     this are discarded. The pattern search uses DefaultLowThreshold (50).
//   - thresholdHigh: High hysteresis threshold (0-255). Gradient magnitudes at or
//     above this are always kept. The pattern search uses DefaultHighThreshold (200).
//
// Returns:
//   - *EdgeMap: Edge map with the same dimensions as img.
//   - error: ErrEmptyImage if img has zero area.
//
// # Algorithm
//
//  1. Grayscale conversion: ITU-R BT.601 luminance via imaging.Grayscale
//
//  2. Gaussian blur (bild) to reduce noise
//
//  3. Gradient computation: Sobel operators for X and Y gradients
//     magnitude = sqrt(Gx² + Gy²)
//     direction = atan2(Gy, Gx)
//
//  4. Non-maximum suppression: Thin edges to 1-pixel width by keeping only
//     local maxima in the gradient direction
//
//  5. Hysteresis thresholding:
//     - Pixels at or above thresholdHigh are strong edges (always kept)
//     - Pixels between thresholdLow and thresholdHigh are weak edges
//     (kept only if adjacent to a strong edge)
//     - Pixels below thresholdLow are discarded
//
// The result is deterministic for identical input pixels.
func ExtractEdges(img image.Image, thresholdLow, thresholdHigh int) (*EdgeMap, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("edge extraction on %dx%d image: %w", width, height, ErrEmptyImage)
	}

	gray := imaging.Grayscale(img)
	blurred := blur.Gaussian(gray, gaussianRadius)

	// Luminance in [0,1]; the blurred gray image has R == G == B.
	lum := make([]float64, width*height)
	for y := 0; y < height; y++ {
		row := blurred.Pix[y*blurred.Stride:]
		for x := 0; x < width; x++ {
			lum[y*width+x] = float64(row[x*4]) / 255.0
		}
	}

	magnitude, direction := sobel(lum, width, height)
	suppressed := suppressNonMaxima(magnitude, direction, width, height)

	lowThresh := float64(thresholdLow) / 255.0
	highThresh := float64(thresholdHigh) / 255.0

	pix := make([]uint8, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			val := suppressed[y*width+x]
			if val >= highThresh {
				pix[y*width+x] = EdgeOn
			} else if val >= lowThresh && hasStrongNeighbor(suppressed, width, height, x, y, highThresh) {
				pix[y*width+x] = EdgeOn
			}
		}
	}

	return &EdgeMap{Width: width, Height: height, Pix: pix}, nil
}

// sobel returns gradient magnitude and direction for a row-major luminance buffer.
// Border pixels use clamped (replicated) edge values.
func sobel(lum []float64, width, height int) (magnitude, direction []float64) {
	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	magnitude = make([]float64, width*height)
	direction = make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					v := lum[clamp(y+ky, 0, height-1)*width+clamp(x+kx, 0, width-1)]
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			magnitude[y*width+x] = math.Sqrt(gx*gx + gy*gy)
			direction[y*width+x] = math.Atan2(gy, gx)
		}
	}
	return magnitude, direction
}

// suppressNonMaxima keeps only pixels that are local maxima along their
// gradient direction. The one-pixel image border is always suppressed.
func suppressNonMaxima(magnitude, direction []float64, width, height int) []float64 {
	suppressed := make([]float64, width*height)
	at := func(x, y int) float64 { return magnitude[y*width+x] }

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			angle := direction[y*width+x]
			mag := at(x, y)

			var n1, n2 float64
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || (angle >= 7*math.Pi/8 || angle < -7*math.Pi/8):
				n1, n2 = at(x-1, y), at(x+1, y)
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1, n2 = at(x+1, y-1), at(x-1, y+1)
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1, n2 = at(x, y-1), at(x, y+1)
			default:
				n1, n2 = at(x-1, y-1), at(x+1, y+1)
			}

			if mag >= n1 && mag >= n2 {
				suppressed[y*width+x] = mag
			}
		}
	}
	return suppressed
}

func hasStrongNeighbor(suppressed []float64, width, height, x, y int, highThresh float64) bool {
	for ky := -1; ky <= 1; ky++ {
		for kx := -1; kx <= 1; kx++ {
			if suppressed[clamp(y+ky, 0, height-1)*width+clamp(x+kx, 0, width-1)] >= highThresh {
				return true
			}
		}
	}
	return false
}

// EdgeDetectResult contains an edge-detected image encoded as base64 PNG.
//
// The result is a grayscale image where white pixels (255) represent detected
// edges and black pixels (0) represent non-edges.
type EdgeDetectResult struct {
	// Width of the output image in pixels (same as input).
	Width int `json:"width"`

	// Height of the output image in pixels (same as input).
	Height int `json:"height"`

	// EdgePixels is the number of pixels marked as edges.
	EdgePixels int `json:"edge_pixels"`

	// ImageBase64 is the edge image encoded as base64 PNG.
	ImageBase64 string `json:"image_base64"`

	// MimeType is always "image/png" for edge detection results.
	MimeType string `json:"mime_type"`
}

// EdgeDetect runs ExtractEdges and encodes the edge map as a base64 PNG.
//
// This is the presentation form of the edge map used by the matcher, useful
// for checking that a reference pattern produces enough edges to be found.
func EdgeDetect(img image.Image, thresholdLow, thresholdHigh int) (*EdgeDetectResult, error) {
	edges, err := ExtractEdges(img, thresholdLow, thresholdHigh)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, edges.Gray()); err != nil {
		return nil, fmt.Errorf("failed to encode edge image: %w", err)
	}

	return &EdgeDetectResult{
		Width:       edges.Width,
		Height:      edges.Height,
		EdgePixels:  edges.EdgeCount(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
