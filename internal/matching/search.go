package matching

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	imgutil "github.com/ironsheep/rangefinder-mcp/internal/imaging"
	"github.com/ironsheep/rangefinder-mcp/internal/log"
)

// State is a stage of a scale search.
type State int

// Search states. Done and Failed are terminal.
const (
	StateInit State = iota
	StateScanningCap
	StateScanningMatches
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateScanningCap:
		return "scanning_cap"
	case StateScanningMatches:
		return "scanning_matches"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Candidate records one evaluated scale.
type Candidate struct {
	Scale    ScaleCandidate `json:"scale"`
	Size     image.Point    `json:"size"`
	Score    float64        `json:"score"`
	Location image.Point    `json:"location"`
}

// Result is the outcome of a scale search.
type Result struct {
	State State `json:"-"`
	Cap   Cap   `json:"cap"`
	// Best is the winning match, or the zero-score sentinel when no
	// candidate scored above zero.
	Best Match `json:"best"`
	// Candidates lists evaluated scales in ascending order.
	Candidates []Candidate `json:"candidates"`
	// StoppedAt is the first scale whose template no longer fit, if any.
	StoppedAt ScaleCandidate `json:"stopped_at,omitempty"`
}

// Searcher locates a template on a frame across the scale ladder.
// A Searcher holds no per-search state and may be shared between goroutines.
type Searcher struct {
	backend Backend
	logger  *slog.Logger
}

// NewSearcher creates a searcher. A nil backend selects the pure-Go backend
// with default thresholds; a nil logger selects the global logger.
func NewSearcher(backend Backend, logger *slog.Logger) *Searcher {
	if backend == nil {
		backend = &GoBackend{
			LowThreshold:  imgutil.DefaultLowThreshold,
			HighThreshold: imgutil.DefaultHighThreshold,
		}
	}
	if logger == nil {
		logger = log.L()
	}
	return &Searcher{backend: backend, logger: logger}
}

// Backend returns the backend the searcher runs on.
func (s *Searcher) Backend() Backend {
	return s.backend
}

// search carries the mutable state of one Search call.
type search struct {
	logger *slog.Logger
	result *Result
}

func (r *search) enter(state State) {
	r.logger.Debug("search state", "from", r.result.State.String(), "to", state.String())
	r.result.State = state
}

func (r *search) fail(err error) (*Result, error) {
	r.enter(StateFailed)
	return r.result, err
}

// Search runs the scale search of template over frame.
//
// The frame's edge map is computed once. Each scale candidate gets a freshly
// resized then edge-extracted template. Scores are compared with strict
// greater-than, so among equal scores the smallest scale wins. A candidate
// that no longer fits the frame ends the scan without failing it.
//
// On failure the partial Result is returned with State == StateFailed and
// one of ErrEmptyTemplate, ErrEmptyFrame, ErrNoScaleFits or the context error.
func (s *Searcher) Search(ctx context.Context, frame, template image.Image) (*Result, error) {
	run := &search{logger: s.logger, result: &Result{State: StateInit}}

	if isEmpty(template) {
		return run.fail(ErrEmptyTemplate)
	}
	if isEmpty(frame) {
		return run.fail(ErrEmptyFrame)
	}

	run.enter(StateScanningCap)
	frameSize := frame.Bounds().Size()
	capSize := ComputeCap(template.Bounds().Size(), frameSize)
	run.result.Cap = capSize
	s.logger.Debug("cap computed",
		"fraction", capSize.Fraction, "width", capSize.Width, "height", capSize.Height,
		"frame", frameSize.String(), "template", template.Bounds().Size().String())
	if capSize.Empty() {
		return run.fail(fmt.Errorf("template %v over frame %v: %w",
			template.Bounds().Size(), frameSize, ErrNoScaleFits))
	}

	run.enter(StateScanningMatches)
	frameEdges, err := s.backend.ExtractEdges(frame)
	if err != nil {
		return run.fail(fmt.Errorf("failed to extract frame edges: %w", err))
	}

	for _, scale := range Scales() {
		if err := ctx.Err(); err != nil {
			return run.fail(err)
		}

		size := capSize.PixelSize(scale)
		if size.X <= 0 || size.Y <= 0 {
			return run.fail(fmt.Errorf("scale %.2f of cap %.1fx%.1f rounds to %v: %w",
				float64(scale), capSize.Width, capSize.Height, size, ErrNoScaleFits))
		}

		scaled := imaging.Resize(template, size.X, size.Y, imaging.Linear)
		tmplEdges, err := s.backend.ExtractEdges(scaled)
		if err != nil {
			return run.fail(fmt.Errorf("failed to extract template edges at scale %.2f: %w", float64(scale), err))
		}

		m, err := s.backend.Match(frameEdges, tmplEdges)
		if errors.Is(err, ErrTemplateTooLarge) {
			s.logger.Debug("template too large, stopping scan", "scale", float64(scale), "size", size.String())
			run.result.StoppedAt = scale
			break
		}
		if err != nil {
			return run.fail(fmt.Errorf("failed to match at scale %.2f: %w", float64(scale), err))
		}
		m.Scale = scale

		run.result.Candidates = append(run.result.Candidates, Candidate{
			Scale:    scale,
			Size:     size,
			Score:    m.Score,
			Location: m.Location,
		})
		s.logger.Debug("candidate scored",
			"scale", float64(scale), "size", size.String(), "score", m.Score, "location", m.Location.String())

		if m.Score > run.result.Best.Score {
			run.result.Best = m
		}
	}

	run.enter(StateDone)
	return run.result, nil
}

func isEmpty(img image.Image) bool {
	if img == nil {
		return true
	}
	b := img.Bounds()
	return b.Dx() <= 0 || b.Dy() <= 0
}
