//go:build gocv

package matching

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	imgutil "github.com/ironsheep/rangefinder-mcp/internal/imaging"
)

// OpenCVBackend is the name of the gocv backend.
const OpenCVBackend = "opencv"

func init() {
	RegisterBackend(OpenCVBackend, func(low, high int) Backend {
		return &CVBackend{LowThreshold: low, HighThreshold: high}
	})
}

// CVBackend runs Canny and TM_CCORR template matching through OpenCV.
type CVBackend struct {
	LowThreshold  int
	HighThreshold int
}

// Name implements Backend.
func (b *CVBackend) Name() string { return OpenCVBackend }

// ExtractEdges implements Backend.
func (b *CVBackend) ExtractEdges(img image.Image) (*imgutil.EdgeMap, error) {
	if img == nil {
		return nil, imgutil.ErrEmptyImage
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("edge extraction on %dx%d image: %w", bounds.Dx(), bounds.Dy(), imgutil.ErrEmptyImage)
	}

	// NRGBA with origin at (0,0) and tight stride
	rgba := imaging.Clone(img)
	src, err := gocv.NewMatFromBytes(rgba.Rect.Dy(), rgba.Rect.Dx(), gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap image: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorRGBAToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, float32(b.LowThreshold), float32(b.HighThreshold))

	return imgutil.NewEdgeMap(edges.Cols(), edges.Rows(), edges.ToBytes())
}

// Match implements Backend. The surface is min-max normalized to [0, 1]
// and the first maximum location is reported.
func (b *CVBackend) Match(frame, tmpl *imgutil.EdgeMap) (Match, error) {
	if _, err := surfaceSize(frame, tmpl); err != nil {
		return Match{}, err
	}

	img, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8U, frame.Pix)
	if err != nil {
		return Match{}, fmt.Errorf("failed to wrap frame edges: %w", err)
	}
	defer img.Close()

	templ, err := gocv.NewMatFromBytes(tmpl.Height, tmpl.Width, gocv.MatTypeCV8U, tmpl.Pix)
	if err != nil {
		return Match{}, fmt.Errorf("failed to wrap template edges: %w", err)
	}
	defer templ.Close()

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(img, templ, &result, gocv.TmCcorr, mask)

	normalized := gocv.NewMat()
	defer normalized.Close()
	gocv.Normalize(result, &normalized, 0, 1, gocv.NormMinMax)

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(normalized)
	return Match{Score: float64(maxVal), Location: maxLoc}, nil
}
