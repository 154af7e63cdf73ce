package pipeline

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/balloon-vision/internal/backend"
	"github.com/ironsheep/balloon-vision/internal/display"
	"github.com/ironsheep/balloon-vision/internal/imaging"
	"github.com/ironsheep/balloon-vision/internal/source"
	"github.com/ironsheep/balloon-vision/internal/timing"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// sliceSource replays frames, advancing the clock by delays[i] for frame i.
type sliceSource struct {
	frames []*imaging.Frame
	delays []time.Duration
	clock  *timing.ManualClock
	next   int
}

func (s *sliceSource) Next() (*imaging.Frame, error) {
	if s.next >= len(s.frames) {
		return nil, source.ErrEndOfStream
	}
	if s.clock != nil && s.next < len(s.delays) {
		s.clock.Advance(s.delays[s.next])
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

func (s *sliceSource) Size() image.Point { return image.Pt(0, 0) }
func (s *sliceSource) Close() error      { return nil }

// slowBackend advances a manual clock inside the operations of each timed stage.
type slowBackend struct {
	backend.Backend
	clock      *timing.ManualClock
	conversion time.Duration
	split      time.Duration
	processing time.Duration
	convertErr error
}

func (b *slowBackend) ConvertColor(src backend.Mat) (backend.Mat, error) {
	if b.convertErr != nil {
		return nil, b.convertErr
	}
	b.clock.Advance(b.conversion)
	return b.Backend.ConvertColor(src)
}

func (b *slowBackend) SplitPlanes(src backend.Mat) ([3]backend.Mat, error) {
	b.clock.Advance(b.split)
	return b.Backend.SplitPlanes(src)
}

func (b *slowBackend) AbsDiff(src backend.Mat, value uint8) (backend.Mat, error) {
	b.clock.Advance(b.processing)
	return b.Backend.AbsDiff(src, value)
}

// recordingSink records every label shown and advances the clock per Show.
type recordingSink struct {
	clock       *timing.ManualClock
	delay       time.Duration
	labels      []string
	images      map[string]image.Image
	interruptAt int // frames shown before an interrupt is reported; 0 never
	polls       int
}

func newRecordingSink(clock *timing.ManualClock, delay time.Duration) *recordingSink {
	return &recordingSink{clock: clock, delay: delay, images: make(map[string]image.Image)}
}

func (s *recordingSink) Show(label string, img image.Image) error {
	if s.clock != nil {
		s.clock.Advance(s.delay)
	}
	s.labels = append(s.labels, label)
	s.images[label] = img
	return nil
}

func (s *recordingSink) PollInterrupt(time.Duration) (int, bool) {
	s.polls++
	if s.interruptAt > 0 && s.polls >= s.interruptAt {
		return 'q', true
	}
	return 0, false
}

func (s *recordingSink) Close() error { return nil }

func diskFrame(width, height, cx, cy, radius int) *imaging.Frame {
	f := imaging.NewFrame(width, height)
	f.Fill(128, 128, 128)
	f.FillDisk(cx, cy, radius, 0, 128, 255)
	return f
}

func newPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	p, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestNew_RequiresBackend(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() without a backend should fail")
	}
}

func TestProcessFrame_DetectsDisk(t *testing.T) {
	for _, b := range []backend.Backend{backend.NewHost(), backend.NewPool(0)} {
		t.Run(b.Name(), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Backend = b
			p := newPipeline(t, opts)

			res, err := p.ProcessFrame(diskFrame(1920, 1080, 960, 540, 50))
			if err != nil {
				t.Fatalf("ProcessFrame() error = %v", err)
			}
			if len(res.Contours) != 1 {
				t.Fatalf("found %d contours, want 1", len(res.Contours))
			}
			if len(res.Accepted) != 1 {
				t.Fatalf("accepted %d candidates, want 1", len(res.Accepted))
			}
			c := res.Accepted[0].Circle
			if math.Abs(c.Center.X-960) > 1 || math.Abs(c.Center.Y-540) > 1 {
				t.Errorf("center = (%.1f, %.1f), want (960, 540)", c.Center.X, c.Center.Y)
			}
			if math.Abs(c.Radius-50) > 2 {
				t.Errorf("radius = %.1f, want 50", c.Radius)
			}
			if got := p.Stats().Frames(); got != 1 {
				t.Errorf("Frames() = %d, want 1", got)
			}
		})
	}
}

func TestProcessFrame_BlackFrame(t *testing.T) {
	opts := DefaultOptions()
	opts.Backend = backend.NewHost()
	p := newPipeline(t, opts)

	res, err := p.ProcessFrame(imaging.NewFrame(640, 480))
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(res.Contours) != 0 || len(res.Candidates) != 0 {
		t.Errorf("black frame produced %d contours, %d candidates", len(res.Contours), len(res.Candidates))
	}
	if res.Accepted == nil {
		t.Error("Accepted should be empty, not nil")
	}
}

func TestProcessFrame_RejectsNonCircular(t *testing.T) {
	f := imaging.NewFrame(320, 240)
	f.Fill(128, 128, 128)
	// A thin orange bar: large enclosing circle, small area.
	for y := 100; y < 104; y++ {
		for x := 40; x < 280; x++ {
			f.SetBGR(x, y, 0, 128, 255)
		}
	}

	opts := DefaultOptions()
	opts.Backend = backend.NewHost()
	p := newPipeline(t, opts)

	res, err := p.ProcessFrame(f)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Candidates))
	}
	if len(res.Accepted) != 0 {
		t.Error("a thin bar should not pass the circularity filter")
	}
}

func TestProcessFrame_EmptyFrame(t *testing.T) {
	opts := DefaultOptions()
	opts.Backend = backend.NewHost()
	p := newPipeline(t, opts)

	for _, f := range []*imaging.Frame{nil, {}, {Width: 4, Height: 0}} {
		if _, err := p.ProcessFrame(f); !errors.Is(err, imaging.ErrEmptyFrame) {
			t.Errorf("ProcessFrame(%v) error = %v, want ErrEmptyFrame", f, err)
		}
	}
	if got := p.Stats().Frames(); got != 0 {
		t.Errorf("empty frames committed timing: Frames() = %d", got)
	}
}

func TestRun_TimingAverages(t *testing.T) {
	clock := timing.NewManualClock(epoch)

	const n = 10
	src := &sliceSource{clock: clock}
	captures := make([]float64, n)
	for i := 0; i < n; i++ {
		src.frames = append(src.frames, diskFrame(160, 120, 80, 60, 20))
		d := time.Duration(i+1) * time.Millisecond
		src.delays = append(src.delays, d)
		captures[i] = timing.Micros(d)
	}

	opts := DefaultOptions()
	opts.Backend = &slowBackend{
		Backend:    backend.NewHost(),
		clock:      clock,
		conversion: 2 * time.Millisecond,
		split:      3 * time.Millisecond,
		processing: 4 * time.Millisecond,
	}
	opts.Source = src
	opts.Sink = newRecordingSink(clock, 5*time.Millisecond)
	opts.Clock = clock
	p := newPipeline(t, opts)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	r := p.Report()
	if r.Frames != n {
		t.Errorf("Frames = %d, want %d", r.Frames, n)
	}
	want := StageAverages{
		Capture:    stat.Mean(captures, nil),
		Conversion: 2000,
		Split:      3000,
		Processing: 4000,
		Display:    5000,
	}
	if diff := cmp.Diff(want, r.AverageMicros, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("AverageMicros mismatch (-want +got):\n%s", diff)
	}

	wantElapsed := 55*time.Millisecond + n*(2+3+4+5)*time.Millisecond
	if r.Elapsed != wantElapsed {
		t.Errorf("Elapsed = %v, want %v", r.Elapsed, wantElapsed)
	}
	if math.Abs(r.FPS-float64(n)/wantElapsed.Seconds()) > 1e-9 {
		t.Errorf("FPS = %f", r.FPS)
	}
	if r.StopReason != StopEndOfStream || r.InterruptKey != NoKey {
		t.Errorf("stopped by %q key %d, want end of stream", r.StopReason, r.InterruptKey)
	}
	if r.Detections != n {
		t.Errorf("Detections = %d, want %d", r.Detections, n)
	}
}

func TestRun_MaxFrames(t *testing.T) {
	clock := timing.NewManualClock(epoch)
	opts := DefaultOptions()
	opts.Backend = backend.NewHost()
	opts.Source = source.NewSynthetic(imaging.ResolutionQVGA, clock)
	opts.Clock = clock
	opts.MaxFrames = 3
	p := newPipeline(t, opts)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	r := p.Report()
	if r.Frames != 3 || r.StopReason != StopMaxFrames {
		t.Errorf("Run stopped after %d frames (%q), want 3 (%q)", r.Frames, r.StopReason, StopMaxFrames)
	}
	if r.Detections != 3 {
		t.Errorf("Detections = %d, want one balloon per synthetic frame", r.Detections)
	}
}

func TestRun_Interrupt(t *testing.T) {
	sink := newRecordingSink(nil, 0)
	sink.interruptAt = 2

	opts := DefaultOptions()
	opts.Backend = backend.NewHost()
	opts.Source = source.NewSynthetic(imaging.ResolutionQVGA, nil)
	opts.Sink = sink
	p := newPipeline(t, opts)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	r := p.Report()
	if r.Frames != 2 || r.StopReason != StopInterrupted || r.InterruptKey != 'q' {
		t.Errorf("Run = %d frames, %q, key %d; want 2 frames interrupted by 'q'", r.Frames, r.StopReason, r.InterruptKey)
	}
}

func TestRun_NullSinkInterrupt(t *testing.T) {
	sink := display.NewNull()
	sink.Interrupt(27)

	opts := DefaultOptions()
	opts.Backend = backend.NewHost()
	opts.Source = source.NewSynthetic(imaging.ResolutionQVGA, nil)
	opts.Sink = sink
	p := newPipeline(t, opts)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if r := p.Report(); r.Frames != 1 || r.InterruptKey != 27 {
		t.Errorf("Run = %d frames, key %d; want 1 frame, key 27", r.Frames, r.InterruptKey)
	}
}

func TestRun_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := DefaultOptions()
	opts.Backend = backend.NewHost()
	opts.Source = source.NewSynthetic(imaging.ResolutionQVGA, nil)
	p := newPipeline(t, opts)

	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if r := p.Report(); r.Frames != 0 || r.StopReason != StopCanceled {
		t.Errorf("Run = %d frames, %q; want 0 frames, canceled", r.Frames, r.StopReason)
	}
}

func TestRun_SkipsEmptyFrames(t *testing.T) {
	src := &sliceSource{frames: []*imaging.Frame{
		diskFrame(160, 120, 80, 60, 20),
		{Width: 0, Height: 0},
		diskFrame(160, 120, 40, 40, 15),
	}}

	opts := DefaultOptions()
	opts.Backend = backend.NewHost()
	opts.Source = src
	p := newPipeline(t, opts)

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	r := p.Report()
	if r.Frames != 2 || r.Skipped != 1 {
		t.Errorf("Frames = %d, Skipped = %d; want 2, 1", r.Frames, r.Skipped)
	}
}

func TestRun_AbortsOnDimensionMismatch(t *testing.T) {
	clock := timing.NewManualClock(epoch)
	src := &sliceSource{frames: []*imaging.Frame{diskFrame(160, 120, 80, 60, 20)}}

	opts := DefaultOptions()
	opts.Backend = &slowBackend{
		Backend:    backend.NewHost(),
		clock:      clock,
		convertErr: imaging.ErrDimensionMismatch,
	}
	opts.Source = src
	opts.Clock = clock
	p := newPipeline(t, opts)

	err := p.Run(context.Background())
	if !errors.Is(err, imaging.ErrDimensionMismatch) {
		t.Fatalf("Run() error = %v, want ErrDimensionMismatch", err)
	}
	if p.Stats().Frames() != 0 {
		t.Error("a failed frame committed timing")
	}
}

func TestStep_RequiresSource(t *testing.T) {
	opts := DefaultOptions()
	opts.Backend = backend.NewHost()
	p := newPipeline(t, opts)
	if _, err := p.Step(); err == nil {
		t.Error("Step() without a source should fail")
	}
}

func TestStreams(t *testing.T) {
	sink := newRecordingSink(nil, 0)

	opts := DefaultOptions()
	opts.Backend = backend.NewHost()
	opts.Sink = sink
	opts.ShowRawFeed = true
	opts.ShowDiagnosticPlanes = true
	opts.DrawDebugContours = true
	p := newPipeline(t, opts)

	if _, err := p.ProcessFrame(diskFrame(320, 240, 160, 120, 30)); err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}

	want := []string{
		display.StreamFeed,
		display.StreamHueRed,
		display.StreamHue,
		display.StreamSat,
		display.StreamVal,
		display.StreamBalloonyness,
		display.StreamThreshold,
		display.StreamOverlay,
	}
	if diff := cmp.Diff(want, sink.labels); diff != "" {
		t.Errorf("streams mismatch (-want +got):\n%s", diff)
	}

	mask, ok := sink.images[display.StreamThreshold].(*image.Gray)
	if !ok {
		t.Fatalf("threshold stream is %T, want *image.Gray", sink.images[display.StreamThreshold])
	}
	if mask.GrayAt(160, 120).Y != 255 || mask.GrayAt(5, 5).Y != 0 {
		t.Error("threshold stream does not match the disk")
	}

	overlay := sink.images[display.StreamOverlay]
	if overlay.Bounds() != image.Rect(0, 0, 320, 240) {
		t.Errorf("overlay bounds = %v", overlay.Bounds())
	}
	// The accepted circle is drawn in green on the disk edge.
	if !hasColor(overlay, imaging.AcceptedColor) {
		t.Error("overlay has no accepted circle")
	}
}

func TestStreams_OverlayDisabled(t *testing.T) {
	sink := newRecordingSink(nil, 0)

	opts := DefaultOptions()
	opts.Backend = backend.NewHost()
	opts.Sink = sink
	opts.ShowAnnotatedOverlay = false
	p := newPipeline(t, opts)

	if _, err := p.ProcessFrame(diskFrame(320, 240, 160, 120, 30)); err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if len(sink.labels) != 0 {
		t.Errorf("streams shown with every stream disabled: %v", sink.labels)
	}
}

func hasColor(img image.Image, c interface{ RGBA() (r, g, b, a uint32) }) bool {
	wr, wg, wb, _ := c.RGBA()
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r == wr && g == wg && bl == wb {
				return true
			}
		}
	}
	return false
}
