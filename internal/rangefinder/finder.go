// Package rangefinder measures the distance to a known pattern in a frame.
//
// A Finder runs the scale search over a frame, converts the winning match
// into a distance and reports every outcome as a Measurement. Input
// problems such as an empty template are part of the Measurement, not Go
// errors, so a caller processing a video stream can skip the frame and
// carry on.
package rangefinder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/rangefinder-mcp/internal/config"
	"github.com/ironsheep/rangefinder-mcp/internal/distance"
	"github.com/ironsheep/rangefinder-mcp/internal/imaging"
	"github.com/ironsheep/rangefinder-mcp/internal/log"
	"github.com/ironsheep/rangefinder-mcp/internal/matching"
)

// NoTemplateDistance is reported when no usable template was supplied.
const NoTemplateDistance = -1.0

// Status classifies a measurement.
type Status string

// Measurement statuses.
const (
	StatusOK              Status = "ok"
	StatusInvalidTemplate Status = "invalid_template"
	StatusInvalidFrame    Status = "invalid_frame"
	StatusNoScaleFits     Status = "no_scale_fits"
	StatusDegenerateMatch Status = "degenerate_match"
	StatusSearchFailed    Status = "search_failed"
)

// Measurement is the outcome of measuring one frame.
//
// Distance is valid only when Status is StatusOK, except that an invalid
// template reports NoTemplateDistance. Box is nil unless Status is StatusOK.
type Measurement struct {
	TraceID    string               `json:"trace_id"`
	Status     Status               `json:"status"`
	Reason     string               `json:"reason,omitempty"`
	Distance   float64              `json:"distance"`
	Units      string               `json:"units,omitempty"`
	Box        *distance.Box        `json:"box,omitempty"`
	Best       matching.Match       `json:"best"`
	Cap        matching.Cap         `json:"cap"`
	Candidates []matching.Candidate `json:"candidates,omitempty"`
	Backend    string               `json:"backend"`
	ElapsedMS  int64                `json:"elapsed_ms"`
}

// OK reports whether the measurement produced a distance.
func (m *Measurement) OK() bool {
	return m.Status == StatusOK
}

// Annotation returns the box and label to draw on the measured frame.
// Frames without a distance are left unannotated.
func (m *Measurement) Annotation() (image.Rectangle, string) {
	if !m.OK() || m.Box == nil {
		return image.Rectangle{}, ""
	}
	return m.Box.Rect(), FormatDistance(m.Distance, m.Units)
}

// FormatDistance renders a distance with one decimal and optional units.
func FormatDistance(d float64, units string) string {
	if units == "" {
		return fmt.Sprintf("%.1f", d)
	}
	return fmt.Sprintf("%.1f %s", d, units)
}

// Finder measures pattern distances with a fixed backend and calibration.
// It is safe for concurrent use.
type Finder struct {
	backend matching.Backend
	cal     distance.Calibration
	units   string
}

// New creates a Finder. A nil backend selects the pure-Go backend with the
// default edge thresholds.
func New(backend matching.Backend, cal distance.Calibration, units string) (*Finder, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		backend = &matching.GoBackend{
			LowThreshold:  imaging.DefaultLowThreshold,
			HighThreshold: imaging.DefaultHighThreshold,
		}
	}
	return &Finder{backend: backend, cal: cal, units: units}, nil
}

// FromConfig creates a Finder from a validated configuration.
func FromConfig(cfg *config.Config) (*Finder, error) {
	backend, err := matching.NewBackend(cfg.Backend, cfg.Edges.LowThreshold, cfg.Edges.HighThreshold)
	if err != nil {
		return nil, err
	}
	return New(backend, distance.Calibration{
		RealWidth:   cfg.Calibration.RealWidth,
		FocalLength: cfg.Calibration.FocalLength,
	}, cfg.Calibration.Units)
}

// Calibration returns the distance constants in use.
func (f *Finder) Calibration() distance.Calibration {
	return f.cal
}

// WithCalibration returns a Finder sharing f's backend with different constants.
func (f *Finder) WithCalibration(cal distance.Calibration) (*Finder, error) {
	return New(f.backend, cal, f.units)
}

// Backend returns the matching backend in use.
func (f *Finder) Backend() matching.Backend {
	return f.backend
}

// Units returns the label for distances.
func (f *Finder) Units() string {
	return f.units
}

// Measure locates template on an upright frame and estimates its distance.
//
// The returned error is non-nil only when ctx ends before the search
// completes. All other failures are reported through Measurement.Status.
func (f *Finder) Measure(ctx context.Context, frame, template image.Image) (*Measurement, error) {
	start := time.Now()
	m := &Measurement{
		TraceID: uuid.NewString(),
		Units:   f.units,
		Backend: f.backend.Name(),
	}
	logger := log.With("trace_id", m.TraceID)

	res, err := matching.NewSearcher(f.backend, logger).Search(ctx, frame, template)
	m.ElapsedMS = time.Since(start).Milliseconds()
	if res != nil {
		m.Cap = res.Cap
		m.Best = res.Best
		m.Candidates = res.Candidates
	}

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("measurement abandoned", "error", err)
		return nil, err
	case errors.Is(err, matching.ErrEmptyTemplate):
		return f.reject(logger, m, StatusInvalidTemplate, err), nil
	case errors.Is(err, matching.ErrEmptyFrame):
		return f.reject(logger, m, StatusInvalidFrame, err), nil
	case errors.Is(err, matching.ErrNoScaleFits):
		return f.reject(logger, m, StatusNoScaleFits, err), nil
	default:
		return f.reject(logger, m, StatusSearchFailed, err), nil
	}

	est, err := distance.Compute(res.Best, res.Cap, f.cal)
	if err != nil {
		return f.reject(logger, m, StatusDegenerateMatch, err), nil
	}

	m.Status = StatusOK
	m.Distance = est.Distance
	m.Box = &est.Box
	logger.Info("measurement complete",
		"distance", est.Distance, "units", f.units,
		"scale", float64(res.Best.Scale), "score", res.Best.Score,
		"elapsed_ms", m.ElapsedMS)
	return m, nil
}

// MeasureRotated corrects a raw sensor frame for the device rotation and
// then measures it.
func (f *Finder) MeasureRotated(ctx context.Context, raw image.Image, rotation imaging.Rotation, template image.Image) (*Measurement, error) {
	frame, err := imaging.CorrectOrientation(raw, rotation)
	if err != nil {
		if errors.Is(err, imaging.ErrEmptyImage) {
			return f.Measure(ctx, nil, template)
		}
		return nil, fmt.Errorf("failed to correct orientation: %w", err)
	}
	return f.Measure(ctx, frame, template)
}

func (f *Finder) reject(logger *slog.Logger, m *Measurement, status Status, err error) *Measurement {
	m.Status = status
	m.Reason = err.Error()
	if status == StatusInvalidTemplate {
		m.Distance = NoTemplateDistance
	}
	logger.Info("measurement rejected", "status", string(status), "reason", m.Reason)
	return m
}
