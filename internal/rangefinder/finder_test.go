package rangefinder

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/ironsheep/rangefinder-mcp/internal/config"
	"github.com/ironsheep/rangefinder-mcp/internal/distance"
	"github.com/ironsheep/rangefinder-mcp/internal/imaging"
	"github.com/ironsheep/rangefinder-mcp/internal/matching"
)

// createSquareImage returns a black image with a filled white square.
func createSquareImage(width, height int, square image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if (image.Point{X: x, Y: y}).In(square) {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func newTestFinder(t *testing.T) *Finder {
	t.Helper()
	f, err := New(nil, distance.Calibration{RealWidth: 10, FocalLength: 500}, "cm")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return f
}

func TestMeasure(t *testing.T) {
	f := newTestFinder(t)
	frame := createSquareImage(160, 120, image.Rect(80, 40, 110, 70))
	template := createSquareImage(50, 50, image.Rect(10, 10, 40, 40))

	m, err := f.Measure(context.Background(), frame, template)
	if err != nil {
		t.Fatalf("Measure failed: %v", err)
	}
	if !m.OK() {
		t.Fatalf("Status: got %s (%s), want ok", m.Status, m.Reason)
	}
	if _, err := uuid.Parse(m.TraceID); err != nil {
		t.Errorf("TraceID %q is not a uuid: %v", m.TraceID, err)
	}
	if m.Backend != "go" || m.Units != "cm" {
		t.Errorf("Backend/Units: got %s/%s", m.Backend, m.Units)
	}
	if len(m.Candidates) != 10 {
		t.Errorf("Candidates: got %d, want 10", len(m.Candidates))
	}

	scale := float64(m.Best.Scale)
	if scale <= 0 {
		t.Fatalf("best scale should be positive, got %v", scale)
	}
	wantDistance := 10 * 500 / (50 * scale)
	if math.Abs(m.Distance-wantDistance) > 1e-9 {
		t.Errorf("Distance: got %f, want %f", m.Distance, wantDistance)
	}
	if m.Box == nil {
		t.Fatal("Box missing")
	}
	if math.Abs(m.Box.Width()-m.Cap.Width*scale) > 1e-9 {
		t.Errorf("box width: got %f, want cap width times scale %f", m.Box.Width(), m.Cap.Width*scale)
	}
	if m.Box.Min.X != float64(m.Best.Location.X) || m.Box.Min.Y != float64(m.Best.Location.Y) {
		t.Errorf("box origin %+v differs from match location %v", m.Box.Min, m.Best.Location)
	}
}

func TestMeasure_EmptyTemplateAlwaysSentinel(t *testing.T) {
	f := newTestFinder(t)

	frames := map[string]image.Image{
		"nil frame":     nil,
		"uniform frame": image.NewRGBA(image.Rect(0, 0, 40, 30)),
		"square frame":  createSquareImage(40, 30, image.Rect(5, 5, 20, 20)),
	}
	templates := map[string]image.Image{
		"nil template":       nil,
		"zero-area template": image.NewRGBA(image.Rect(0, 0, 10, 0)),
	}

	for fname, frame := range frames {
		for tname, template := range templates {
			t.Run(fname+"/"+tname, func(t *testing.T) {
				m, err := f.Measure(context.Background(), frame, template)
				if err != nil {
					t.Fatalf("Measure returned error: %v", err)
				}
				if m.Status != StatusInvalidTemplate {
					t.Errorf("Status: got %s", m.Status)
				}
				if m.Distance != NoTemplateDistance {
					t.Errorf("Distance: got %f, want -1", m.Distance)
				}
				if m.Box != nil {
					t.Error("Box should be nil")
				}
			})
		}
	}
}

func TestMeasure_Rejections(t *testing.T) {
	f := newTestFinder(t)

	tests := []struct {
		name     string
		frame    image.Image
		template image.Image
		want     Status
	}{
		{"nil frame", nil, createSquareImage(10, 10, image.Rect(2, 2, 8, 8)), StatusInvalidFrame},
		{"nothing fits", createSquareImage(10, 10, image.Rect(2, 2, 8, 8)), image.NewRGBA(image.Rect(0, 0, 2000, 10)), StatusNoScaleFits},
		{"uniform frame", image.NewRGBA(image.Rect(0, 0, 80, 60)), createSquareImage(40, 40, image.Rect(10, 10, 30, 30)), StatusDegenerateMatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := f.Measure(context.Background(), tt.frame, tt.template)
			if err != nil {
				t.Fatalf("Measure returned error: %v", err)
			}
			if m.Status != tt.want {
				t.Errorf("Status: got %s, want %s", m.Status, tt.want)
			}
			if m.Reason == "" {
				t.Error("Reason should explain the rejection")
			}
			if m.Distance == NoTemplateDistance {
				t.Error("only an invalid template reports the -1 sentinel")
			}
			if m.Box != nil {
				t.Error("Box should be nil")
			}
		})
	}
}

func TestMeasure_CancelledContext(t *testing.T) {
	f := newTestFinder(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frame := createSquareImage(60, 60, image.Rect(10, 10, 30, 30))
	m, err := f.Measure(ctx, frame, frame)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if m != nil {
		t.Errorf("expected no measurement, got %+v", m)
	}
}

func TestMeasure_ConcurrentCallsAgree(t *testing.T) {
	f := newTestFinder(t)
	frame := createSquareImage(120, 90, image.Rect(60, 30, 90, 60))
	template := createSquareImage(40, 40, image.Rect(5, 5, 35, 35))

	want, err := f.Measure(context.Background(), frame, template)
	if err != nil {
		t.Fatalf("Measure failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]*Measurement, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = f.Measure(context.Background(), frame, template)
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool)
	for i, m := range results {
		if m == nil {
			t.Fatalf("result %d missing", i)
		}
		if m.Distance != want.Distance || m.Best != want.Best {
			t.Errorf("result %d: got %f %+v, want %f %+v", i, m.Distance, m.Best, want.Distance, want.Best)
		}
		if ids[m.TraceID] {
			t.Errorf("duplicate trace id %s", m.TraceID)
		}
		ids[m.TraceID] = true
	}
}

func TestMeasureRotated(t *testing.T) {
	f := newTestFinder(t)
	frame := createSquareImage(120, 90, image.Rect(60, 30, 90, 60))
	template := createSquareImage(40, 40, image.Rect(5, 5, 35, 35))

	direct, err := f.Measure(context.Background(), frame, template)
	if err != nil {
		t.Fatalf("Measure failed: %v", err)
	}
	rotated, err := f.MeasureRotated(context.Background(), frame, imaging.Rotation180, template)
	if err != nil {
		t.Fatalf("MeasureRotated failed: %v", err)
	}
	if rotated.Distance != direct.Distance || rotated.Best != direct.Best {
		t.Errorf("180° is a pass-through: got %+v, want %+v", rotated.Best, direct.Best)
	}

	m, err := f.MeasureRotated(context.Background(), nil, imaging.Rotation90, template)
	if err != nil {
		t.Fatalf("MeasureRotated failed: %v", err)
	}
	if m.Status != StatusInvalidFrame {
		t.Errorf("Status: got %s, want invalid_frame", m.Status)
	}

	if _, err := f.MeasureRotated(context.Background(), frame, imaging.Rotation(45), template); err == nil {
		t.Error("unsupported rotation should fail")
	}
}

func TestNew_InvalidCalibration(t *testing.T) {
	_, err := New(nil, distance.Calibration{RealWidth: 0, FocalLength: 500}, "cm")
	if !errors.Is(err, distance.ErrInvalidCalibration) {
		t.Errorf("expected ErrInvalidCalibration, got %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Calibration.RealWidth = 8
	cfg.Calibration.Units = "in"

	f, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if f.Calibration().RealWidth != 8 || f.Units() != "in" {
		t.Errorf("calibration not applied: %+v %s", f.Calibration(), f.Units())
	}

	cfg.Backend = "cuda"
	if _, err := FromConfig(cfg); !errors.Is(err, matching.ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestWithCalibration(t *testing.T) {
	f := newTestFinder(t)

	g, err := f.WithCalibration(distance.Calibration{RealWidth: 20, FocalLength: 500})
	if err != nil {
		t.Fatalf("WithCalibration failed: %v", err)
	}
	if g.Backend() != f.Backend() {
		t.Error("backend should be shared")
	}
	if f.Calibration().RealWidth != 10 {
		t.Error("original finder must not change")
	}

	if _, err := f.WithCalibration(distance.Calibration{RealWidth: 20}); err == nil {
		t.Error("zero focal length should fail")
	}
}

func TestMeasurementAnnotation(t *testing.T) {
	ok := &Measurement{
		Status:   StatusOK,
		Distance: 49.96,
		Units:    "cm",
		Box:      &distance.Box{Min: distance.Point{X: 10, Y: 20}, Max: distance.Point{X: 30, Y: 40}},
	}
	box, label := ok.Annotation()
	if box != image.Rect(10, 20, 30, 40) {
		t.Errorf("box: got %v", box)
	}
	if label != "50.0 cm" {
		t.Errorf("label: got %q", label)
	}

	rejected := &Measurement{Status: StatusNoScaleFits}
	if box, label := rejected.Annotation(); !box.Empty() || label != "" {
		t.Errorf("rejected measurement should not be annotated, got %v %q", box, label)
	}
}

func TestFormatDistance(t *testing.T) {
	if got := FormatDistance(49.96, "cm"); got != "50.0 cm" {
		t.Errorf("got %q", got)
	}
	if got := FormatDistance(7.5, ""); got != "7.5" {
		t.Errorf("got %q", got)
	}
}
