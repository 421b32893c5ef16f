package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/rangefinder-mcp/internal/imaging"
	"github.com/ironsheep/rangefinder-mcp/internal/rangefinder"
)

var testBuild = BuildInfo{Version: "1.2.3", BuildTime: "today", GitCommit: "abc123"}

// run executes the root command with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand(testBuild)
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeSquarePNG(t *testing.T, dir, name string, width, height int, square image.Rectangle) string {
	t.Helper()

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

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
	return path
}

// scene writes a frame with a white square and a template of the same square.
func scene(t *testing.T) (dir, frame, template string) {
	t.Helper()
	dir = t.TempDir()
	frame = writeSquarePNG(t, dir, "frame.png", 160, 120, image.Rect(80, 40, 110, 70))
	template = writeSquarePNG(t, dir, "template.png", 50, 50, image.Rect(10, 10, 40, 40))
	return dir, frame, template
}

type measurementLine struct {
	Frame string `json:"frame"`
	rangefinder.Measurement
	Error     string `json:"error"`
	Annotated string `json:"annotated"`
}

func decodeLines(t *testing.T, out string) []measurementLine {
	t.Helper()

	var lines []measurementLine
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var l measurementLine
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			t.Fatalf("invalid JSON line %q: %v", sc.Text(), err)
		}
		lines = append(lines, l)
	}
	return lines
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	for _, want := range []string{"1.2.3", "today", "abc123"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output %q missing %q", out, want)
		}
	}
}

func TestMissingConfigFile(t *testing.T) {
	_, frame, template := scene(t)
	if _, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "measure", frame, "-t", template); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestInvalidLogLevel(t *testing.T) {
	_, frame, template := scene(t)
	if _, err := run(t, "--log-level", "loud", "measure", frame, "-t", template); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestMeasureCommand_JSON(t *testing.T) {
	_, frame, template := scene(t)

	out, err := run(t, "measure", frame, "--template", template, "--json")
	if err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	lines := decodeLines(t, out)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	l := lines[0]
	if l.Frame != frame {
		t.Errorf("Frame: got %s", l.Frame)
	}
	if l.Status != rangefinder.StatusOK {
		t.Fatalf("Status: got %s (%s)", l.Status, l.Reason)
	}
	if l.Distance <= 0 {
		t.Errorf("Distance: got %f", l.Distance)
	}
	if l.Units != "cm" {
		t.Errorf("Units: got %s", l.Units)
	}
}

func TestMeasureCommand_Text(t *testing.T) {
	_, frame, template := scene(t)

	out, err := run(t, "measure", frame, "-t", template)
	if err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	if !strings.HasPrefix(out, frame+": ") || !strings.Contains(out, " cm at ") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestMeasureCommand_NoTemplate(t *testing.T) {
	_, frame, _ := scene(t)

	out, err := run(t, "measure", frame, "--json")
	if err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	l := decodeLines(t, out)[0]
	if l.Status != rangefinder.StatusInvalidTemplate {
		t.Errorf("Status: got %s", l.Status)
	}
	if l.Distance != rangefinder.NoTemplateDistance {
		t.Errorf("Distance: got %f", l.Distance)
	}
}

func TestMeasureCommand_Errors(t *testing.T) {
	dir, frame, template := scene(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing frame", []string{"measure", filepath.Join(dir, "nope.png"), "-t", template}},
		{"missing template", []string{"measure", frame, "-t", filepath.Join(dir, "nope.png")}},
		{"bad region", []string{"measure", frame, "-t", template, "--region", "1,2,3"}},
		{"region outside template", []string{"measure", frame, "-t", template, "--region", "0,0,500,500"}},
		{"bad rotation", []string{"measure", frame, "-t", template, "--rotation", "45"}},
		{"no frame", []string{"measure"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMeasureCommand_Annotate(t *testing.T) {
	dir, frame, template := scene(t)
	out := filepath.Join(dir, "annotated.png")

	if _, err := run(t, "measure", frame, "-t", template, "--annotate", out); err != nil {
		t.Fatalf("measure failed: %v", err)
	}
	img, err := imaging.NewImageCache().Load(out)
	if err != nil {
		t.Fatalf("annotated frame not written: %v", err)
	}
	if img.Bounds().Dx() != 160 || img.Bounds().Dy() != 120 {
		t.Errorf("annotated dimensions: got %v", img.Bounds())
	}
}

func TestBatchCommand(t *testing.T) {
	dir, frame, template := scene(t)
	second := writeSquarePNG(t, dir, "second.png", 160, 120, image.Rect(20, 30, 50, 60))
	missing := filepath.Join(dir, "missing.png")

	out, err := run(t, "batch", frame, missing, second, "-t", template, "--workers", "2", "--json", "--quiet")
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	lines := decodeLines(t, out)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}

	// Results come back in input order
	for i, want := range []string{frame, missing, second} {
		if lines[i].Frame != want {
			t.Errorf("line %d: got frame %s, want %s", i, lines[i].Frame, want)
		}
	}
	if lines[0].Status != rangefinder.StatusOK || lines[2].Status != rangefinder.StatusOK {
		t.Errorf("statuses: got %s, %s", lines[0].Status, lines[2].Status)
	}
	if lines[1].Error == "" {
		t.Error("missing frame should report an error")
	}
	if lines[0].Distance != lines[2].Distance {
		t.Errorf("same pattern size should give same distance: %f vs %f", lines[0].Distance, lines[2].Distance)
	}
}

func TestBatchCommand_OutputDir(t *testing.T) {
	dir, frame, template := scene(t)
	outDir := filepath.Join(dir, "annotated")

	out, err := run(t, "batch", frame, "-t", template, "-o", outDir, "--json", "-q")
	if err != nil {
		t.Fatalf("batch failed: %v", err)
	}
	l := decodeLines(t, out)[0]
	if l.Annotated == "" {
		t.Fatal("annotated path not reported")
	}
	if _, err := os.Stat(l.Annotated); err != nil {
		t.Errorf("annotated frame not written: %v", err)
	}
}

func TestBatchCommand_NoFrames(t *testing.T) {
	if _, err := run(t, "batch"); err == nil {
		t.Error("expected error without frames")
	}
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in      string
		want    *imaging.Region
		wantErr bool
	}{
		{"", nil, false},
		{"0,0,50,40", &imaging.Region{X1: 0, Y1: 0, X2: 50, Y2: 40}, false},
		{" 1, 2, 3, 4 ", &imaging.Region{X1: 1, Y1: 2, X2: 3, Y2: 4}, false},
		{"1,2,3", nil, true},
		{"a,b,c,d", nil, true},
	}
	for _, tt := range tests {
		got, err := parseRegion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRegion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.want == nil {
			if got != nil {
				t.Errorf("parseRegion(%q): got %+v, want nil", tt.in, got)
			}
			continue
		}
		if got == nil || *got != *tt.want {
			t.Errorf("parseRegion(%q): got %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestAnnotatedPath(t *testing.T) {
	if got := annotatedPath("", &job{path: "a.png"}); got != "" {
		t.Errorf("no directory: got %q", got)
	}
	got := annotatedPath("out", &job{index: 7, path: "/frames/cam.jpg"})
	if want := filepath.Join("out", "0007_cam_annotated.png"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
