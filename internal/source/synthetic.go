package source

import (
	"image"
	"sync"

	"github.com/ironsheep/balloon-vision/internal/imaging"
	"github.com/ironsheep/balloon-vision/internal/timing"
)

// Colors of the generated scene, BGR.
var (
	syntheticBackground = [3]uint8{128, 128, 128}
	syntheticBalloon    = [3]uint8{0, 128, 255}
)

// Synthetic generates frames showing one orange disk that bounces horizontally across
// a gray background. It needs no hardware, which makes it the default for
// benchmarks and demos.
type Synthetic struct {
	mu     sync.Mutex
	size   image.Point
	clock  timing.Clock
	seq    uint64
	x, dx  int
	radius int
	closed bool
}

// NewSynthetic creates a synthetic source at the supported resolution nearest size.
func NewSynthetic(size image.Point, clock timing.Clock) *Synthetic {
	if clock == nil {
		clock = timing.RealClock{}
	}
	size = negotiate(size)
	radius := size.Y / 10
	return &Synthetic{
		size:   size,
		clock:  clock,
		x:      radius,
		dx:     max(size.X/60, 1),
		radius: radius,
	}
}

// Next renders the next frame.
func (s *Synthetic) Next() (*imaging.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrEndOfStream
	}

	f := imaging.NewFrame(s.size.X, s.size.Y)
	f.Fill(syntheticBackground[0], syntheticBackground[1], syntheticBackground[2])
	f.FillDisk(s.x, s.size.Y/2, s.radius, syntheticBalloon[0], syntheticBalloon[1], syntheticBalloon[2])

	s.seq++
	f.Seq = s.seq
	f.Timestamp = s.clock.Now()

	if nx := s.x + s.dx; nx-s.radius < 0 || nx+s.radius >= s.size.X {
		s.dx = -s.dx
	}
	s.x += s.dx

	return f, nil
}

// Center returns where the disk will be drawn in the next frame, and its radius.
func (s *Synthetic) Center() (image.Point, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return image.Pt(s.x, s.size.Y/2), s.radius
}

// Size returns the frame size.
func (s *Synthetic) Size() image.Point {
	return s.size
}

// Close stops the stream.
func (s *Synthetic) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
