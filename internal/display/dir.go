package display

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// Dir writes PNG snapshots of the displayed streams into a directory.
//
// Each label keeps its own counter; the n-th image shown under a label is written
// when n is a multiple of every, as <label>-<n>.png with n zero-padded to six
// digits.
type Dir struct {
	interrupts

	dir    string
	every  int
	logger *slog.Logger

	mu     sync.Mutex
	counts map[string]int
}

// NewDir creates dir if needed. every < 1 writes every image.
func NewDir(dir string, every int, logger *slog.Logger) (*Dir, error) {
	if dir == "" {
		return nil, fmt.Errorf("display directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create display directory: %w", err)
	}
	if every < 1 {
		every = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dir{
		interrupts: newInterrupts(),
		dir:        dir,
		every:      every,
		logger:     logger.With("display", KindDir),
		counts:     make(map[string]int),
	}, nil
}

// Show saves img if this is a sampled image for label.
func (d *Dir) Show(label string, img image.Image) error {
	d.mu.Lock()
	d.counts[label]++
	n := d.counts[label]
	d.mu.Unlock()

	if n%d.every != 0 {
		return nil
	}

	path := d.Path(label, n)
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	d.logger.Debug("saved snapshot", "path", path)
	return nil
}

// Path returns the file written for the n-th image of label.
func (d *Dir) Path(label string, n int) string {
	return filepath.Join(d.dir, fmt.Sprintf("%s-%06d.png", label, n))
}

// PollInterrupt returns a queued interrupt without waiting.
func (d *Dir) PollInterrupt(time.Duration) (int, bool) {
	return d.poll(0)
}

// Close does nothing; files are written synchronously.
func (*Dir) Close() error { return nil }
