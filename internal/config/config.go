// Package config loads the rangefinder configuration.
//
// A Config is built once at startup from defaults, an optional YAML file and
// RANGEFINDER_* environment variables, then treated as read-only.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/rangefinder-mcp/internal/imaging"
	"github.com/ironsheep/rangefinder-mcp/internal/matching"
)

// Config represents the complete rangefinder configuration
type Config struct {
	Calibration CalibrationConfig `yaml:"calibration"`
	Edges       EdgesConfig       `yaml:"edges"`
	Template    TemplateConfig    `yaml:"template"`
	Annotation  AnnotationConfig  `yaml:"annotation"`
	Batch       BatchConfig       `yaml:"batch"`
	Backend     string            `yaml:"backend"`   // go, opencv (gocv builds only)
	LogLevel    string            `yaml:"log_level"` // debug, info, warn, error
}

// CalibrationConfig holds the distance relation constants
type CalibrationConfig struct {
	RealWidth   float64 `yaml:"real_width"`   // physical pattern width, in Units
	FocalLength float64 `yaml:"focal_length"` // pixels
	Units       string  `yaml:"units"`        // label only, e.g. cm
}

// EdgesConfig holds the Canny hysteresis thresholds (0-255)
type EdgesConfig struct {
	LowThreshold  int `yaml:"low_threshold"`
	HighThreshold int `yaml:"high_threshold"`
}

// TemplateConfig locates the reference pattern
type TemplateConfig struct {
	Path   string          `yaml:"path"`
	Region *imaging.Region `yaml:"region,omitempty"` // crop of Path; whole image when unset
}

// AnnotationConfig controls the drawn bounding box
type AnnotationConfig struct {
	Color string `yaml:"color"` // #RRGGBB
}

// BatchConfig controls batch measurement
type BatchConfig struct {
	Workers int `yaml:"workers"`
}

// Environment variables read by ApplyEnv.
const (
	EnvRealWidth   = "RANGEFINDER_REAL_WIDTH"
	EnvFocalLength = "RANGEFINDER_FOCAL_LENGTH"
	EnvUnits       = "RANGEFINDER_UNITS"
	EnvTemplate    = "RANGEFINDER_TEMPLATE"
	EnvBackend     = "RANGEFINDER_BACKEND"
	EnvLogLevel    = "RANGEFINDER_LOG_LEVEL"
)

// Default returns the built-in configuration: a 10 cm wide pattern seen
// through a 500 px focal length, with the standard 50/200 edge thresholds.
func Default() *Config {
	return &Config{
		Calibration: CalibrationConfig{
			RealWidth:   10,
			FocalLength: 500,
			Units:       "cm",
		},
		Edges: EdgesConfig{
			LowThreshold:  imaging.DefaultLowThreshold,
			HighThreshold: imaging.DefaultHighThreshold,
		},
		Annotation: AnnotationConfig{Color: imaging.DefaultAnnotationColor},
		Batch:      BatchConfig{Workers: 4},
		Backend:    matching.DefaultBackend,
		LogLevel:   "info",
	}
}

// Load reads a YAML configuration file over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from RANGEFINDER_* environment variables.
// Unset variables leave the field unchanged.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvRealWidth); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRealWidth, err)
		}
		c.Calibration.RealWidth = f
	}
	if v := os.Getenv(EnvFocalLength); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFocalLength, err)
		}
		c.Calibration.FocalLength = f
	}
	if v := os.Getenv(EnvUnits); v != "" {
		c.Calibration.Units = v
	}
	if v := os.Getenv(EnvTemplate); v != "" {
		c.Template.Path = v
	}
	if v := os.Getenv(EnvBackend); v != "" {
		c.Backend = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
