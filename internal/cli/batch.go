package cli

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ironsheep/rangefinder-mcp/internal/imaging"
	"github.com/ironsheep/rangefinder-mcp/internal/log"
	"github.com/ironsheep/rangefinder-mcp/internal/rangefinder"
)

// job is one frame to measure and, once done, its outcome. err is set only
// when the frame could not be measured at all (unreadable file, cancelled).
type job struct {
	index     int
	path      string
	m         *rangefinder.Measurement
	annotated string
	err       error
}

// measureOne loads, measures and optionally annotates a single frame.
// annotate is the output path for the annotated frame, empty for none.
func (a *app) measureOne(cmd *cobra.Command, finder *rangefinder.Finder, cache *imaging.ImageCache, template image.Image, opts *frameOptions, annotate string, j *job) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	frame, err := cache.Load(j.path)
	if err != nil {
		j.err = fmt.Errorf("failed to load frame: %w", err)
		return
	}
	// Frames are read once, so keep the cache from growing over a batch
	defer cache.Evict(j.path)

	rotation, rotated, err := opts.parsedRotation()
	if err != nil {
		j.err = err
		return
	}
	var m *rangefinder.Measurement
	if rotated {
		m, err = finder.MeasureRotated(ctx, frame, rotation, template)
		if err == nil && annotate != "" {
			frame, err = imaging.CorrectOrientation(frame, rotation)
		}
	} else {
		m, err = finder.Measure(ctx, frame, template)
	}
	if err != nil {
		j.err = err
		return
	}
	j.m = m

	if annotate == "" || !m.OK() {
		return
	}
	c, err := imaging.ParseColor(a.cfg.Annotation.Color)
	if err != nil {
		c, _ = imaging.ParseColor(imaging.DefaultAnnotationColor)
	}
	box, label := m.Annotation()
	if err := imaging.Save(imaging.DrawAnnotation(frame, box, label, c), annotate); err != nil {
		j.err = err
		return
	}
	j.annotated = annotate
}

func (a *app) newBatchCommand() *cobra.Command {
	var (
		opts      frameOptions
		workers   int
		outputDir string
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "batch FRAME...",
		Short: "Measure many frames concurrently",
		Long: `Measure every frame against the same template using a pool of workers.

Results are printed in input order, one per line. Frames that cannot be
measured are reported and do not stop the batch. With --output-dir each
measured frame is also written annotated.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workers <= 0 {
				workers = a.cfg.Batch.Workers
			}
			if _, _, err := opts.parsedRotation(); err != nil {
				return err
			}
			if outputDir != "" {
				if err := os.MkdirAll(outputDir, 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}

			finder, err := rangefinder.FromConfig(a.cfg)
			if err != nil {
				return err
			}
			cache := imaging.NewImageCache()
			template, err := a.loadTemplate(cache, &opts)
			if err != nil {
				return err
			}

			var bar *progressbar.ProgressBar
			if !quiet {
				bar = progressbar.NewOptions(len(args),
					progressbar.OptionSetDescription("Measuring"),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}

			jobs := a.runBatch(cmd, finder, cache, template, &opts, outputDir, workers, args, bar)

			failed := 0
			for _, j := range jobs {
				if j.err != nil || !j.m.OK() {
					failed++
				}
				if err := writeMeasurement(cmd.OutOrStdout(), j, opts.jsonOutput); err != nil {
					return err
				}
			}
			log.Info("batch complete", "frames", len(jobs), "unmeasured", failed, "workers", workers)

			if err := cmd.Context().Err(); err != nil {
				return err
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of concurrent workers (default from configuration)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for annotated frames")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not show a progress bar")
	return cmd
}

// runBatch fans the frames out to workers and returns the jobs in input order.
func (a *app) runBatch(cmd *cobra.Command, finder *rangefinder.Finder, cache *imaging.ImageCache, template image.Image,
	opts *frameOptions, outputDir string, workers int, paths []string, bar *progressbar.ProgressBar) []*job {

	jobs := make([]*job, len(paths))
	for i, p := range paths {
		jobs[i] = &job{index: i, path: p}
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	queue := make(chan *job)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				a.measureOne(cmd, finder, cache, template, opts, annotatedPath(outputDir, j), j)
				if bar != nil {
					_ = bar.Add(1)
				}
			}
		}()
	}

	ctx := cmd.Context()
feed:
	for _, j := range jobs {
		select {
		case queue <- j:
		case <-ctx.Done():
			break feed
		}
	}
	close(queue)
	wg.Wait()

	for _, j := range jobs {
		if j.m == nil && j.err == nil {
			j.err = ctx.Err()
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return jobs
}

// annotatedPath names the annotated copy of a frame. The index prefix keeps
// frames with the same base name apart.
func annotatedPath(dir string, j *job) string {
	if dir == "" {
		return ""
	}
	base := filepath.Base(j.path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, fmt.Sprintf("%04d_%s_annotated.png", j.index, strings.TrimSuffix(base, ext)))
}
