// Package display provides the sinks that present pipeline images and report the
// operator's interrupt key.
//
// The pipeline pushes each enabled stream to a Sink under a fixed label (see the
// Stream constants) and polls the sink once per frame for an interrupt. Sinks:
//   - "none": discards images; interrupts only arrive through Interrupt
//   - "dir": writes PNG snapshots of every stream to a directory
//   - "websocket": serves live JPEG previews to browsers; any client message is an
//     interrupt
//   - "window": OpenCV HighGUI windows with keyboard input (builds tagged "gocv" only)
package display

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"
)

// ErrUnavailable is returned by Open when a sink kind is not compiled in.
var ErrUnavailable = errors.New("display unavailable")

// Sink kinds accepted by Open.
const (
	KindNone      = "none"
	KindDir       = "dir"
	KindWebSocket = "websocket"
	KindWindow    = "window"
)

// Stream labels.
const (
	StreamFeed         = "feed"
	StreamHue          = "hue"
	StreamHueRed       = "huered"
	StreamSat          = "sat"
	StreamVal          = "val"
	StreamBalloonyness = "balloonyness"
	StreamThreshold    = "threshold"
	StreamOverlay      = "overlay"
)

// KeyInterrupt is the key reported for interrupts that carry no key of their own.
const KeyInterrupt int = 'q'

// Sink presents images and reports interrupts.
type Sink interface {
	// Show presents img under label, replacing the previous image with that label.
	Show(label string, img image.Image) error

	// PollInterrupt waits up to timeout for an interrupt and returns its key. Sinks
	// without an input device return immediately.
	PollInterrupt(timeout time.Duration) (key int, ok bool)

	// Close releases the sink.
	Close() error
}

// Options selects and configures a sink.
type Options struct {
	Kind   string
	Dir    string
	Listen string
	Every  int
	Logger *slog.Logger
}

// Open creates the sink described by opts.
func Open(opts Options) (Sink, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	switch strings.ToLower(opts.Kind) {
	case KindNone, "":
		return NewNull(), nil
	case KindDir:
		return NewDir(opts.Dir, opts.Every, opts.Logger)
	case KindWebSocket:
		return NewWebSocket(opts.Listen, opts.Logger)
	case KindWindow:
		return openWindow(opts)
	default:
		return nil, fmt.Errorf("unknown display kind %q", opts.Kind)
	}
}

// interrupts queues keys raised from outside the pipeline goroutine.
type interrupts struct {
	keys chan int
}

func newInterrupts() interrupts {
	return interrupts{keys: make(chan int, 8)}
}

// Interrupt queues key for the next PollInterrupt. Extra keys beyond the queue
// capacity are dropped.
func (in interrupts) Interrupt(key int) {
	select {
	case in.keys <- key:
	default:
	}
}

// poll waits up to timeout for a queued key. A zero timeout only checks.
func (in interrupts) poll(timeout time.Duration) (int, bool) {
	if timeout <= 0 {
		select {
		case k := <-in.keys:
			return k, true
		default:
			return 0, false
		}
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case k := <-in.keys:
		return k, true
	case <-t.C:
		return 0, false
	}
}

// Null discards every image.
type Null struct {
	interrupts
}

// NewNull creates a Null sink.
func NewNull() *Null {
	return &Null{interrupts: newInterrupts()}
}

// Show does nothing.
func (*Null) Show(string, image.Image) error { return nil }

// PollInterrupt returns a queued interrupt without waiting; there is no device to
// wait on.
func (n *Null) PollInterrupt(time.Duration) (int, bool) {
	return n.poll(0)
}

// Close does nothing.
func (*Null) Close() error { return nil }
