package source

import (
	"image"
	"log/slog"
	"sync"

	"github.com/ironsheep/balloon-vision/internal/imaging"
	"github.com/ironsheep/balloon-vision/internal/timing"
)

// MaxFailedReads is the number of consecutive failed grabs after which a camera is
// treated as disconnected.
const MaxFailedReads = 30

// grabber reads raw frames from a capture device.
type grabber interface {
	// Grab returns the BGR bytes and size of the next frame. ok is false when the
	// grab failed or produced an empty image.
	Grab() (data []byte, width, height int, ok bool)

	// Opened reports whether the device is still attached.
	Opened() bool

	Close() error
}

// Camera captures frames from a video device.
//
// A single failed grab yields a zero-sized frame, which the pipeline skips. When the
// device reports it is no longer open, or MaxFailedReads grabs fail in a row, Next
// returns ErrEndOfStream.
type Camera struct {
	mu     sync.Mutex
	device grabber
	size   image.Point
	clock  timing.Clock
	logger *slog.Logger
	seq    uint64
	failed int
	closed bool
}

func newCamera(device grabber, size image.Point, clock timing.Clock, logger *slog.Logger) *Camera {
	if clock == nil {
		clock = timing.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Camera{device: device, size: size, clock: clock, logger: logger}
}

// Next grabs one frame.
func (c *Camera) Next() (*imaging.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrEndOfStream
	}

	c.seq++
	ts := c.clock.Now()
	data, width, height, ok := c.device.Grab()
	if !ok || width <= 0 || height <= 0 {
		c.failed++
		if !c.device.Opened() {
			c.logger.Warn("camera disconnected", "seq", c.seq)
			return nil, ErrEndOfStream
		}
		if c.failed >= MaxFailedReads {
			c.logger.Warn("camera stopped delivering frames", "failed_reads", c.failed)
			return nil, ErrEndOfStream
		}
		return &imaging.Frame{Seq: c.seq, Timestamp: ts}, nil
	}
	c.failed = 0

	return &imaging.Frame{
		Seq:       c.seq,
		Timestamp: ts,
		Width:     width,
		Height:    height,
		Data:      data,
	}, nil
}

// Size returns the delivered frame size.
func (c *Camera) Size() image.Point {
	return c.size
}

// Close releases the device.
func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.device.Close()
}
