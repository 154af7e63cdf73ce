package backend

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ironsheep/balloon-vision/internal/imaging"
)

// ErrUnavailable is returned by Open when a backend cannot run on this build or
// machine (no accelerator present, library support compiled out).
var ErrUnavailable = errors.New("backend unavailable")

// Backend names accepted by Open.
const (
	Host = "host"
	Pool = "pool"
	CUDA = "cuda"
)

// Mat is an image buffer owned by a Backend. It may live in device memory; read it
// from host code only through Download.
type Mat interface {
	Width() int
	Height() int
	Channels() int
}

// Backend is the set of image operations the pipeline runs per frame.
type Backend interface {
	// Name returns the backend name passed to Open.
	Name() string

	// Accelerated reports whether Mats live outside host memory.
	Accelerated() bool

	// Upload transfers a BGR frame to the backend. It returns imaging.ErrEmptyFrame
	// for zero-sized frames.
	Upload(f *imaging.Frame) (Mat, error)

	// UploadPlane transfers a single-channel host plane to the backend.
	UploadPlane(p *imaging.Plane) (Mat, error)

	// ConvertColor converts a 3-channel BGR Mat to 3-channel HSV.
	ConvertColor(src Mat) (Mat, error)

	// SplitPlanes splits a 3-channel Mat into three single-channel Mats.
	SplitPlanes(src Mat) ([3]Mat, error)

	// AbsDiff computes |src - value| per pixel.
	AbsDiff(src Mat, value uint8) (Mat, error)

	// Divide computes src / divisor per pixel.
	Divide(src Mat, divisor float64) (Mat, error)

	// Multiply computes src * factor per pixel.
	Multiply(src Mat, factor float64) (Mat, error)

	// MultiplyPlanes computes a * b per pixel. Sizes must match.
	MultiplyPlanes(a, b Mat) (Mat, error)

	// Threshold sets pixels >= cutoff to maxValue and all others to 0.
	Threshold(src Mat, cutoff, maxValue uint8) (Mat, error)

	// Download transfers a single-channel Mat to host memory.
	Download(src Mat) (*imaging.Plane, error)

	// Release frees a Mat. Releasing nil is a no-op.
	Release(m Mat)

	// Close frees every resource held by the backend.
	Close() error
}

// Info describes a backend for the startup banner.
type Info struct {
	Name        string
	Accelerated bool
	Devices     int
}

type opener func() (Backend, error)

var openers = map[string]opener{
	Host: func() (Backend, error) { return NewHost(), nil },
	Pool: func() (Backend, error) { return NewPool(0), nil },
	CUDA: openCUDA,
}

// Names returns every backend name Open understands, sorted.
func Names() []string {
	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates the named backend. Unknown names and backends that cannot run here
// fail immediately so the caller can abort before processing any frame.
func Open(name string) (Backend, error) {
	open, ok := openers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
	b, err := open()
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", name, err)
	}
	return b, nil
}

// Describe returns the banner information for b.
func Describe(b Backend) Info {
	info := Info{Name: b.Name(), Accelerated: b.Accelerated()}
	if d, ok := b.(interface{ Devices() int }); ok {
		info.Devices = d.Devices()
	}
	return info
}

func validatePlane(p *imaging.Plane) error {
	if p == nil || p.Width <= 0 || p.Height <= 0 {
		return imaging.ErrEmptyFrame
	}
	if len(p.Pix) < p.Width*p.Height {
		return fmt.Errorf("%w: plane holds %d bytes, need %d", imaging.ErrEmptyFrame, len(p.Pix), p.Width*p.Height)
	}
	return nil
}

func checkChannels(m Mat, want int, op string) error {
	if m == nil {
		return fmt.Errorf("%s: nil mat", op)
	}
	if m.Channels() != want {
		return fmt.Errorf("%s: want %d channel(s), got %d", op, want, m.Channels())
	}
	return nil
}

func checkSameSize(a, b Mat, op string) error {
	if a.Width() != b.Width() || a.Height() != b.Height() {
		return fmt.Errorf("%s: %dx%d vs %dx%d: %w", op, a.Width(), a.Height(), b.Width(), b.Height(), imaging.ErrDimensionMismatch)
	}
	return nil
}
