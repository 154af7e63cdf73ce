package source

import (
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ironsheep/balloon-vision/internal/imaging"
	"github.com/ironsheep/balloon-vision/internal/timing"
)

// Watch yields frames written into a directory after it was opened, such as the
// output of an external grabber. Files that fail to decode (often because the
// writer has not finished) are logged and skipped.
//
// Next blocks until a new file arrives. Close ends the stream; a blocked Next then
// returns ErrEndOfStream.
type Watch struct {
	dir     string
	size    image.Point
	clock   timing.Clock
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	paths   chan string
	done    chan struct{}

	mu        sync.Mutex
	seq       uint64
	closeOnce sync.Once
}

// NewWatch starts watching dir.
func NewWatch(dir string, size image.Point, clock timing.Clock, logger *slog.Logger) (*Watch, error) {
	if clock == nil {
		clock = timing.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watch{
		dir:     dir,
		size:    negotiate(size),
		clock:   clock,
		logger:  logger.With("source", KindWatch, "dir", dir),
		watcher: watcher,
		paths:   make(chan string, 64),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// loop forwards created and written frame files to Next.
func (w *Watch) loop() {
	defer close(w.paths)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !imaging.IsFrameFile(event.Name) {
				continue
			}
			select {
			case w.paths <- event.Name:
			case <-w.done:
				return
			default:
				w.logger.Warn("dropping frame, pipeline is behind", "path", event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Next waits for the next decodable frame file.
func (w *Watch) Next() (*imaging.Frame, error) {
	for {
		path, ok := <-w.paths
		if !ok {
			return nil, ErrEndOfStream
		}

		f, err := imaging.LoadFrame(path, w.size)
		if err != nil {
			w.logger.Debug("skipping unreadable frame", "path", path, "error", err)
			continue
		}

		w.mu.Lock()
		w.seq++
		f.Seq = w.seq
		w.mu.Unlock()
		f.Timestamp = w.clock.Now()
		return f, nil
	}
}

// Size returns the frame size.
func (w *Watch) Size() image.Point {
	return w.size
}

// Close stops watching.
func (w *Watch) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
