//go:build gocv

package matching

import (
	"errors"
	"image"
	"testing"
)

func TestCVBackend_Registered(t *testing.T) {
	b, err := NewBackend(OpenCVBackend, 50, 200)
	if err != nil {
		t.Fatalf("NewBackend failed: %v", err)
	}
	if b.Name() != OpenCVBackend {
		t.Errorf("Name: got %s", b.Name())
	}
}

func TestCVBackend_FindsSquare(t *testing.T) {
	b := &CVBackend{LowThreshold: 50, HighThreshold: 200}

	frame, err := b.ExtractEdges(createSquareImage(120, 90, image.Rect(60, 30, 90, 60)))
	if err != nil {
		t.Fatalf("ExtractEdges failed: %v", err)
	}
	tmpl, err := b.ExtractEdges(createSquareImage(50, 50, image.Rect(10, 10, 40, 40)))
	if err != nil {
		t.Fatalf("ExtractEdges failed: %v", err)
	}

	m, err := b.Match(frame, tmpl)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if m.Score < 0 || m.Score > 1 {
		t.Errorf("score out of range: %f", m.Score)
	}
	if m.Location != image.Pt(50, 20) {
		t.Errorf("location: got %v, want (50,20)", m.Location)
	}
}

func TestCVBackend_TooLarge(t *testing.T) {
	b := &CVBackend{LowThreshold: 50, HighThreshold: 200}
	frame := mustEdgeMap(t, 10, 10)
	tmpl := mustEdgeMap(t, 11, 5)

	if _, err := b.Match(frame, tmpl); !errors.Is(err, ErrTemplateTooLarge) {
		t.Errorf("expected ErrTemplateTooLarge, got %v", err)
	}
}
