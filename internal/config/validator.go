package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/ironsheep/rangefinder-mcp/internal/imaging"
	"github.com/ironsheep/rangefinder-mcp/internal/matching"
)

// Validate checks if the configuration is valid, filling in defaults for
// optional fields left empty
func Validate(cfg *Config) error {
	if !positive(cfg.Calibration.RealWidth) {
		return fmt.Errorf("calibration.real_width must be > 0")
	}
	if !positive(cfg.Calibration.FocalLength) {
		return fmt.Errorf("calibration.focal_length must be > 0")
	}

	low, high := cfg.Edges.LowThreshold, cfg.Edges.HighThreshold
	if low < 0 || high > 255 || low >= high {
		return fmt.Errorf("edges thresholds must satisfy 0 <= low < high <= 255, got %d/%d", low, high)
	}

	if cfg.Backend == "" {
		cfg.Backend = matching.DefaultBackend
	}
	if !knownBackend(cfg.Backend) {
		return fmt.Errorf("backend %q is not available (have %v)", cfg.Backend, matching.BackendNames())
	}

	if cfg.Annotation.Color == "" {
		cfg.Annotation.Color = imaging.DefaultAnnotationColor
	}
	if _, err := imaging.ParseColor(cfg.Annotation.Color); err != nil {
		return fmt.Errorf("annotation.color: %w", err)
	}

	if cfg.Batch.Workers <= 0 {
		cfg.Batch.Workers = 4
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "":
		cfg.LogLevel = "info"
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level %q must be debug, info, warn or error", cfg.LogLevel)
	}

	if r := cfg.Template.Region; r != nil && (r.X1 >= r.X2 || r.Y1 >= r.Y2) {
		return fmt.Errorf("template.region must have x1 < x2 and y1 < y2")
	}

	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func knownBackend(name string) bool {
	for _, n := range matching.BackendNames() {
		if n == name {
			return true
		}
	}
	return false
}
