package cli

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/rangefinder-mcp/internal/imaging"
	"github.com/ironsheep/rangefinder-mcp/internal/rangefinder"
)

// frameOptions are the flags shared by measure and batch.
type frameOptions struct {
	templatePath string
	region       string
	rotation     int
	jsonOutput   bool
}

func (o *frameOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.templatePath, "template", "t", "", "Reference pattern image (default from configuration)")
	cmd.Flags().StringVarP(&o.region, "region", "r", "", "Template region as x1,y1,x2,y2 (default whole template image)")
	cmd.Flags().IntVar(&o.rotation, "rotation", -1, "Device rotation of the frames: 0, 90, 180 or 270 (default: frames are upright)")
	cmd.Flags().BoolVar(&o.jsonOutput, "json", false, "Print measurements as JSON")
}

// parseRegion parses "x1,y1,x2,y2". An empty string means no region.
func parseRegion(s string) (*imaging.Region, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("region %q: want x1,y1,x2,y2", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	return &imaging.Region{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}, nil
}

// loadTemplate resolves the template from flags, falling back to the
// configuration. No template at all yields a nil image, which measures as
// an invalid template.
func (a *app) loadTemplate(cache *imaging.ImageCache, o *frameOptions) (image.Image, error) {
	path := o.templatePath
	region, err := parseRegion(o.region)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path = a.cfg.Template.Path
		if region == nil {
			region = a.cfg.Template.Region
		}
	}
	if path == "" {
		return nil, nil
	}

	img, err := cache.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	return imaging.CropTemplate(img, region)
}

// parsedRotation returns the device rotation, or false when frames are upright.
func (o *frameOptions) parsedRotation() (imaging.Rotation, bool, error) {
	if o.rotation < 0 {
		return 0, false, nil
	}
	r, err := imaging.ParseRotation(o.rotation)
	return r, true, err
}

func (a *app) newMeasureCommand() *cobra.Command {
	var (
		opts     frameOptions
		annotate string
	)

	cmd := &cobra.Command{
		Use:   "measure FRAME",
		Short: "Estimate the distance to the pattern in one frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			finder, err := rangefinder.FromConfig(a.cfg)
			if err != nil {
				return err
			}
			cache := imaging.NewImageCache()
			template, err := a.loadTemplate(cache, &opts)
			if err != nil {
				return err
			}

			j := &job{index: 0, path: args[0]}
			a.measureOne(cmd, finder, cache, template, &opts, annotate, j)
			if j.err != nil {
				return j.err
			}
			return writeMeasurement(cmd.OutOrStdout(), j, opts.jsonOutput)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&annotate, "annotate", "a", "", "Write the frame with the bounding box and distance drawn on it")
	return cmd
}

// writeMeasurement prints one result as a JSON line or a human readable line.
func writeMeasurement(w io.Writer, j *job, asJSON bool) error {
	if asJSON {
		line := struct {
			Frame string `json:"frame"`
			*rangefinder.Measurement
			Error     string `json:"error,omitempty"`
			Annotated string `json:"annotated,omitempty"`
		}{Frame: j.path, Measurement: j.m, Annotated: j.annotated}
		if j.err != nil {
			line.Error = j.err.Error()
		}
		return json.NewEncoder(w).Encode(line)
	}

	switch {
	case j.err != nil:
		_, err := fmt.Fprintf(w, "%s: error: %v\n", j.path, j.err)
		return err
	case !j.m.OK():
		_, err := fmt.Fprintf(w, "%s: %s (%s)\n", j.path, j.m.Status, j.m.Reason)
		return err
	}
	_, err := fmt.Fprintf(w, "%s: %.2f %s at (%.0f,%.0f)-(%.0f,%.0f) scale %.2f score %.3f\n",
		j.path, j.m.Distance, j.m.Units,
		j.m.Box.Min.X, j.m.Box.Min.Y, j.m.Box.Max.X, j.m.Box.Max.Y,
		float64(j.m.Best.Scale), j.m.Best.Score)
	return err
}
