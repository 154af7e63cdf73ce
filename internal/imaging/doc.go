// Package imaging provides the image buffers shared by every stage of the balloon
// detection pipeline.
//
// This package defines the captured Frame, the single-channel Plane used for hue,
// saturation, value, score and mask buffers, and the helpers that move pixels
// between these buffers and standard Go image.Image values (loading from disk,
// fitting to a capture resolution, drawing the annotated overlay).
//
// # Pixel Layout
//
// Frames store 8-bit pixels in blue, green, red order, row-major, with a stride of
// 3*Width bytes. Planes store one byte per pixel with a stride of Width bytes.
// (0,0) is the top-left corner, X increases rightward and Y increases downward.
//
// # Color Representation
//
// Hue/saturation/value triples use the 8-bit ranges common to camera pipelines:
//   - H: 0-179 (degrees halved so the circle fits in a byte)
//   - S: 0-255
//   - V: 0-255
//
// # Error Handling
//
// ErrEmptyFrame is returned for zero-sized captures and ErrDimensionMismatch when two
// buffers that must share a size do not. Both are sentinel values intended for
// errors.Is checks after wrapping.
//
// # Thread Safety
//
// Frames and Planes are plain buffers with no internal locking. A buffer is owned by
// one pipeline iteration at a time.
package imaging
