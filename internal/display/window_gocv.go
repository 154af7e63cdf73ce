//go:build gocv

package display

import (
	"fmt"
	"image"
	"log/slog"
	"time"

	"gocv.io/x/gocv"
)

// Window shows each stream in its own OpenCV HighGUI window and reads interrupts
// from the keyboard.
type Window struct {
	interrupts

	logger  *slog.Logger
	windows map[string]*gocv.Window

	// HighGUI key events are global; any open window can pump them.
	primary *gocv.Window
}

func openWindow(opts Options) (Sink, error) {
	return NewWindow(opts.Logger), nil
}

// NewWindow creates a window sink. Windows are opened on first use of each label.
func NewWindow(logger *slog.Logger) *Window {
	if logger == nil {
		logger = slog.Default()
	}
	return &Window{
		interrupts: newInterrupts(),
		logger:     logger.With("display", KindWindow),
		windows:    make(map[string]*gocv.Window),
	}
}

// Show displays img in the window named label.
func (w *Window) Show(label string, img image.Image) error {
	win, ok := w.windows[label]
	if !ok {
		win = gocv.NewWindow(label)
		w.windows[label] = win
		if w.primary == nil {
			w.primary = win
		}
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("failed to convert %s: %w", label, err)
	}
	defer mat.Close()

	win.IMShow(mat)
	return nil
}

// PollInterrupt pumps the window event loop for up to timeout and returns the key
// pressed, if any. Keys queued with Interrupt take precedence.
func (w *Window) PollInterrupt(timeout time.Duration) (int, bool) {
	if k, ok := w.poll(0); ok {
		return k, true
	}
	if w.primary == nil {
		return 0, false
	}
	ms := max(int(timeout/time.Millisecond), 1)
	if key := w.primary.WaitKey(ms); key >= 0 {
		return key, true
	}
	return 0, false
}

// Close destroys every window.
func (w *Window) Close() error {
	var first error
	for label, win := range w.windows {
		if err := win.Close(); err != nil && first == nil {
			first = err
		}
		delete(w.windows, label)
	}
	w.primary = nil
	return first
}
