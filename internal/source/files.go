package source

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ironsheep/balloon-vision/internal/imaging"
	"github.com/ironsheep/balloon-vision/internal/timing"
)

// Files replays the image files of a directory in name order.
//
// Every frame is scaled to the negotiated size. With loop set the sequence restarts
// after the last file and decoded frames are served from a cache; otherwise Next
// returns ErrEndOfStream after the last file.
type Files struct {
	mu     sync.Mutex
	paths  []string
	size   image.Point
	loop   bool
	clock  timing.Clock
	cache  *imaging.FrameCache
	next   int
	seq    uint64
	closed bool
}

// NewFiles lists the frame files in dir. It fails if dir holds none.
func NewFiles(dir string, size image.Point, loop bool, clock timing.Clock) (*Files, error) {
	if clock == nil {
		clock = timing.RealClock{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imaging.IsFrameFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no frame files in %s", dir)
	}
	sort.Strings(paths)

	return &Files{
		paths: paths,
		size:  negotiate(size),
		loop:  loop,
		clock: clock,
		cache: imaging.NewFrameCache(),
	}, nil
}

// Next decodes the next file.
func (s *Files) Next() (*imaging.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrEndOfStream
	}
	if s.next >= len(s.paths) {
		if !s.loop {
			return nil, ErrEndOfStream
		}
		s.next = 0
	}

	path := s.paths[s.next]
	s.next++

	var f *imaging.Frame
	var err error
	if s.loop {
		f, err = s.cache.Load(path, s.size)
		if err == nil {
			f = f.Clone()
		}
	} else {
		f, err = imaging.LoadFrame(path, s.size)
	}
	if err != nil {
		return nil, err
	}

	s.seq++
	f.Seq = s.seq
	f.Timestamp = s.clock.Now()
	return f, nil
}

// Len returns the number of files in one pass.
func (s *Files) Len() int {
	return len(s.paths)
}

// Size returns the frame size.
func (s *Files) Size() image.Point {
	return s.size
}

// Close stops the stream and drops cached frames.
func (s *Files) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cache.Clear()
	s.mu.Unlock()
	return nil
}
