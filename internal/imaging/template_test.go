package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// createQuadrantImage creates an image with different colors in each quadrant
func createQuadrantImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var c color.Color
			if x < width/2 && y < height/2 {
				c = color.RGBA{255, 0, 0, 255} // Red top-left
			} else if x >= width/2 && y < height/2 {
				c = color.RGBA{0, 255, 0, 255} // Green top-right
			} else if x < width/2 && y >= height/2 {
				c = color.RGBA{0, 0, 255, 255} // Blue bottom-left
			} else {
				c = color.RGBA{255, 255, 255, 255} // White bottom-right
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCropTemplate(t *testing.T) {
	img := createQuadrantImage(100, 80)

	tmpl, err := CropTemplate(img, &Region{X1: 50, Y1: 0, X2: 100, Y2: 40})
	if err != nil {
		t.Fatalf("CropTemplate failed: %v", err)
	}

	b := tmpl.Bounds()
	if b.Dx() != 50 || b.Dy() != 40 {
		t.Errorf("dimensions: got %dx%d, want 50x40", b.Dx(), b.Dy())
	}

	// Top-right quadrant is green
	r, g, bl, _ := tmpl.At(b.Min.X+10, b.Min.Y+10).RGBA()
	if r>>8 != 0 || g>>8 != 255 || bl>>8 != 0 {
		t.Errorf("cropped color: got (%d,%d,%d), want (0,255,0)", r>>8, g>>8, bl>>8)
	}
}

func TestCropTemplate_NilRegion(t *testing.T) {
	img := createQuadrantImage(30, 30)

	tmpl, err := CropTemplate(img, nil)
	if err != nil {
		t.Fatalf("CropTemplate failed: %v", err)
	}
	if tmpl != image.Image(img) {
		t.Error("nil region should return the image itself")
	}

	if _, err := CropTemplate(nil, nil); err == nil {
		t.Error("nil image should fail")
	}
}

func TestCropTemplate_InvalidRegions(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name   string
		region Region
	}{
		{"x1 negative", Region{-1, 0, 50, 50}},
		{"y1 negative", Region{0, -1, 50, 50}},
		{"x2 too large", Region{0, 0, 101, 50}},
		{"y2 too large", Region{0, 0, 50, 101}},
		{"x1 >= x2", Region{50, 0, 50, 50}},
		{"y1 > y2", Region{0, 60, 50, 50}},
		{"zero area", Region{50, 50, 50, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			region := tt.region
			if _, err := CropTemplate(img, &region); err == nil {
				t.Error("CropTemplate should fail for invalid region")
			}
		})
	}
}

func TestCrop(t *testing.T) {
	img := createQuadrantImage(100, 100)

	result, err := Crop(img, Region{X1: 0, Y1: 0, X2: 50, Y2: 50})
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	if result.Width != 50 || result.Height != 50 {
		t.Errorf("dimensions: got %dx%d, want 50x50", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	decoded, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	croppedImg, err := png.Decode(bytes.NewReader(decoded))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}

	r, g, b, _ := croppedImg.At(25, 25).RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("cropped image color: got (%d,%d,%d), want (255,0,0)", r>>8, g>>8, b>>8)
	}
}

func TestRegion_Rect(t *testing.T) {
	r := Region{X1: 1, Y1: 2, X2: 3, Y2: 4}
	if r.Rect() != image.Rect(1, 2, 3, 4) {
		t.Errorf("Rect: got %v", r.Rect())
	}
}
