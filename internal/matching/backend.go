package matching

import (
	"fmt"
	"image"
	"sort"
	"sync"

	"github.com/ironsheep/rangefinder-mcp/internal/imaging"
)

// DefaultBackend is the pure-Go backend, always available.
const DefaultBackend = "go"

// Match is the best placement of a template on a frame.
type Match struct {
	// Score is the normalized correlation in [0, 1].
	Score float64 `json:"score"`
	// Location is the top-left corner of the template on the frame.
	Location image.Point `json:"location"`
	// Scale is the candidate that produced the match; zero for the sentinel.
	Scale ScaleCandidate `json:"scale"`
}

// Backend extracts edge maps and scores one template placement search.
// Implementations must be safe for concurrent use.
type Backend interface {
	Name() string
	ExtractEdges(img image.Image) (*imaging.EdgeMap, error)
	// Match returns ErrTemplateTooLarge when tmpl exceeds frame on either axis.
	Match(frame, tmpl *imaging.EdgeMap) (Match, error)
}

// BackendFactory builds a backend with the given Canny thresholds.
type BackendFactory func(low, high int) Backend

var (
	registryMu sync.RWMutex
	registry   = map[string]BackendFactory{
		DefaultBackend: func(low, high int) Backend {
			return &GoBackend{LowThreshold: low, HighThreshold: high}
		},
	}
)

// RegisterBackend makes a backend available to NewBackend under name.
func RegisterBackend(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// NewBackend returns the named backend. An empty name selects DefaultBackend.
func NewBackend(name string, low, high int) (Backend, error) {
	if name == "" {
		name = DefaultBackend
	}

	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q (available: %v): %w", name, BackendNames(), ErrUnknownBackend)
	}
	return factory(low, high), nil
}

// BackendNames lists registered backends in sorted order.
func BackendNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GoBackend runs edge extraction and correlation in pure Go.
type GoBackend struct {
	LowThreshold  int
	HighThreshold int
}

// Name implements Backend.
func (b *GoBackend) Name() string { return DefaultBackend }

// ExtractEdges implements Backend.
func (b *GoBackend) ExtractEdges(img image.Image) (*imaging.EdgeMap, error) {
	return imaging.ExtractEdges(img, b.LowThreshold, b.HighThreshold)
}

// Match implements Backend.
func (b *GoBackend) Match(frame, tmpl *imaging.EdgeMap) (Match, error) {
	return MatchEdges(frame, tmpl)
}
