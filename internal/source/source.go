// Package source provides the frame sources that feed the detection pipeline.
//
// A Source yields BGR frames one at a time. Sources negotiate their resolution when
// they are opened and may substitute the nearest resolution they support; Size
// reports what was actually chosen.
//
// Available kinds:
//   - "synthetic": generated frames with a moving orange disk on a gray background
//   - "files": image files from a directory, in name order, optionally looped
//   - "watch": image files as they appear in a directory
//   - "camera": a capture device through OpenCV (builds tagged "gocv" only)
package source

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/ironsheep/balloon-vision/internal/imaging"
	"github.com/ironsheep/balloon-vision/internal/timing"
)

var (
	// ErrEndOfStream is returned by Next when the source has no more frames.
	ErrEndOfStream = errors.New("end of stream")

	// ErrUnavailable is returned by Open when a source kind is not compiled in.
	ErrUnavailable = errors.New("source unavailable")
)

// Source kinds accepted by Open.
const (
	KindSynthetic = "synthetic"
	KindFiles     = "files"
	KindWatch     = "watch"
	KindCamera    = "camera"
)

// Source is a stream of frames.
type Source interface {
	// Next blocks until the next frame is available. It returns ErrEndOfStream once
	// the stream is exhausted or closed. A frame with zero width or height is
	// returned as-is when the device delivers one; the pipeline skips it.
	Next() (*imaging.Frame, error)

	// Size returns the negotiated frame size.
	Size() image.Point

	// Close releases the source. Next returns ErrEndOfStream afterwards.
	Close() error
}

// Options selects and configures a source.
type Options struct {
	Kind   string
	Device int
	Path   string
	Loop   bool
	Size   image.Point
	Clock  timing.Clock
	Logger *slog.Logger
}

// Open creates the source described by opts.
func Open(opts Options) (Source, error) {
	if opts.Clock == nil {
		opts.Clock = timing.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	switch strings.ToLower(opts.Kind) {
	case KindSynthetic, "":
		return NewSynthetic(opts.Size, opts.Clock), nil
	case KindFiles:
		return NewFiles(opts.Path, opts.Size, opts.Loop, opts.Clock)
	case KindWatch:
		return NewWatch(opts.Path, opts.Size, opts.Clock, opts.Logger)
	case KindCamera:
		return openCamera(opts)
	default:
		return nil, fmt.Errorf("unknown source kind %q", opts.Kind)
	}
}

// negotiate picks the supported resolution closest to want. A zero want selects the
// default capture size.
func negotiate(want image.Point) image.Point {
	if want == (image.Point{}) {
		return imaging.ResolutionSXGA
	}
	return imaging.NearestResolution(want, imaging.SupportedResolutions)
}
