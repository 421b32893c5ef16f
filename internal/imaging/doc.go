// Package imaging provides the image operations around pattern localization.
//
// It covers loading and caching frames and templates, Canny edge extraction,
// device orientation correction, template region cropping, and drawing the
// measured bounding box back onto a frame. Operations work on standard Go
// image.Image values with (0,0) at the top-left corner, X increasing
// rightward and Y increasing downward.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Edge Maps
//
// ExtractEdges converts an image to luminance and runs a Canny detector with
// a low and a high hysteresis threshold on the 0-255 scale. The resulting
// EdgeMap has the input's dimensions and holds only EdgeOn or EdgeOff pixels.
// Identical pixels always give identical edge maps.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Every other function
// allocates its own output and never modifies its inputs, so they can be
// called concurrently.
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Images with zero area (ErrEmptyImage)
//   - Regions outside image bounds or with x1 >= x2 or y1 >= y2
//   - Unsupported device rotations
//   - File I/O and encoding errors
package imaging
