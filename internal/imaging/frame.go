package imaging

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
)

var (
	// ErrEmptyFrame is returned when a capture has zero width or height.
	ErrEmptyFrame = errors.New("empty frame")

	// ErrDimensionMismatch is returned when buffers that must share a size differ.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Frame is one captured color image.
type Frame struct {
	// Seq is the capture sequence number assigned by the source.
	Seq uint64

	// Timestamp is when the frame was captured.
	Timestamp time.Time

	// Width and Height are the frame dimensions in pixels.
	Width  int
	Height int

	// Data holds Width*Height BGR pixels, 3 bytes each, row-major.
	Data []byte
}

// NewFrame allocates a black frame of the given size.
func NewFrame(width, height int) *Frame {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Frame{
		Width:  width,
		Height: height,
		Data:   make([]byte, width*height*3),
	}
}

// Validate returns ErrEmptyFrame if f is nil, zero-sized or its buffer is short.
func (f *Frame) Validate() error {
	if f == nil || f.Width <= 0 || f.Height <= 0 {
		return ErrEmptyFrame
	}
	if len(f.Data) < f.Width*f.Height*3 {
		return fmt.Errorf("%w: buffer holds %d bytes, need %d", ErrEmptyFrame, len(f.Data), f.Width*f.Height*3)
	}
	return nil
}

// Size returns the frame dimensions as a point.
func (f *Frame) Size() image.Point {
	return image.Pt(f.Width, f.Height)
}

// BGR returns the pixel at (x, y). No bounds checking is performed.
func (f *Frame) BGR(x, y int) (b, g, r uint8) {
	i := (y*f.Width + x) * 3
	return f.Data[i], f.Data[i+1], f.Data[i+2]
}

// SetBGR writes the pixel at (x, y). No bounds checking is performed.
func (f *Frame) SetBGR(x, y int, b, g, r uint8) {
	i := (y*f.Width + x) * 3
	f.Data[i] = b
	f.Data[i+1] = g
	f.Data[i+2] = r
}

// Fill paints every pixel of f with one color.
func (f *Frame) Fill(b, g, r uint8) {
	for i := 0; i+2 < len(f.Data); i += 3 {
		f.Data[i] = b
		f.Data[i+1] = g
		f.Data[i+2] = r
	}
}

// FillDisk paints a filled disk of the given center and radius, clipped to the frame.
func (f *Frame) FillDisk(cx, cy, radius int, b, g, r uint8) {
	for y := cy - radius; y <= cy+radius; y++ {
		if y < 0 || y >= f.Height {
			continue
		}
		for x := cx - radius; x <= cx+radius; x++ {
			if x < 0 || x >= f.Width {
				continue
			}
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= radius*radius {
				f.SetBGR(x, y, b, g, r)
			}
		}
	}
}

// Image converts the frame to an opaque NRGBA image for drawing and display.
func (f *Frame) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i+2 < len(f.Data) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = f.Data[i+2]
		img.Pix[j+1] = f.Data[i+1]
		img.Pix[j+2] = f.Data[i]
		img.Pix[j+3] = 0xff
	}
	return img
}

// FromImage converts any image to a BGR frame. Alpha is discarded.
func FromImage(img image.Image) *Frame {
	src := imaging.Clone(img)
	bounds := src.Bounds()
	f := NewFrame(bounds.Dx(), bounds.Dy())
	for i, j := 0, 0; j+3 < len(src.Pix) && i+2 < len(f.Data); i, j = i+3, j+4 {
		f.Data[i] = src.Pix[j+2]
		f.Data[i+1] = src.Pix[j+1]
		f.Data[i+2] = src.Pix[j]
	}
	return f
}

// Plane is a single-channel 8-bit buffer: a hue, saturation or value plane, a score
// map or a binary mask.
type Plane struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewPlane allocates a zeroed plane.
func NewPlane(width, height int) *Plane {
	return &Plane{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

// At returns the value at (x, y), or 0 outside the plane.
func (p *Plane) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
		return 0
	}
	return p.Pix[y*p.Width+x]
}

// Set writes v at (x, y). Writes outside the plane are ignored.
func (p *Plane) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
		return
	}
	p.Pix[y*p.Width+x] = v
}

// SameSize reports whether p and o have identical dimensions.
func (p *Plane) SameSize(o *Plane) bool {
	return p.Width == o.Width && p.Height == o.Height
}

// Gray wraps the plane as an *image.Gray without copying.
func (p *Plane) Gray() *image.Gray {
	return &image.Gray{
		Pix:    p.Pix,
		Stride: p.Width,
		Rect:   image.Rect(0, 0, p.Width, p.Height),
	}
}

// ColorPlanes holds the hue, saturation and value planes of one frame.
type ColorPlanes struct {
	Hue *Plane // 0-179
	Sat *Plane // 0-255
	Val *Plane // 0-255
}
