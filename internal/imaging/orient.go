package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Rotation is the device screen rotation at the time a frame was captured.
type Rotation int

// Supported device rotations, in degrees counterclockwise from portrait.
const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// ParseRotation validates a rotation given in degrees.
func ParseRotation(degrees int) (Rotation, error) {
	switch r := Rotation(degrees); r {
	case Rotation0, Rotation90, Rotation180, Rotation270:
		return r, nil
	}
	return 0, fmt.Errorf("unsupported rotation %d: must be 0, 90, 180 or 270", degrees)
}

func (r Rotation) String() string {
	return fmt.Sprintf("%d°", int(r))
}

// CorrectOrientation turns a raw sensor frame into an upright frame for the
// given device rotation. The output always has the input's dimensions.
//
// Each rotation has a fixed transform:
//   - 0° (portrait): transpose, stretch back to the frame size, mirror horizontally
//   - 90° (landscape, counterclockwise): used as-is (resampled to the frame size)
//   - 180° (upside down): returned unchanged
//   - 270° (landscape, clockwise): flipped vertically then horizontally
//
// The input is never modified.
func CorrectOrientation(frame image.Image, rotation Rotation) (image.Image, error) {
	if frame == nil {
		return nil, ErrEmptyImage
	}
	bounds := frame.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("orientation correction on %dx%d frame: %w", width, height, ErrEmptyImage)
	}

	switch rotation {
	case Rotation0:
		transposed := imaging.Transpose(frame)
		resized := imaging.Resize(transposed, width, height, imaging.Linear)
		return imaging.FlipH(resized), nil
	case Rotation90:
		return imaging.Resize(frame, width, height, imaging.Linear), nil
	case Rotation180:
		return frame, nil
	case Rotation270:
		resized := imaging.Resize(frame, width, height, imaging.Linear)
		return imaging.FlipH(imaging.FlipV(resized)), nil
	}
	return nil, fmt.Errorf("unsupported rotation %d", int(rotation))
}
