// Package pipeline drives frames from a source through balloon detection and out to
// a display sink.
//
// # Stages
//
// Every frame passes through five timed stages:
//
//	capture     source.Next plus the upload to the backend
//	conversion  BGR to HSV
//	split       HSV to hue, saturation and value planes
//	processing  scoring, threshold, mask download, contours, circle fits and overlay
//	display     every enabled stream pushed to the sink
//
// The interrupt poll that follows display is not timed. Stage deltas are committed
// to the lifetime averages once per successfully processed frame.
//
// # Stopping
//
// Run stops at the end of the stream, after MaxFrames frames, when its context is
// canceled or when the sink reports an interrupt key. Empty frames are logged and
// skipped; any other error aborts the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/balloon-vision/internal/backend"
	"github.com/ironsheep/balloon-vision/internal/detection"
	"github.com/ironsheep/balloon-vision/internal/display"
	"github.com/ironsheep/balloon-vision/internal/imaging"
	"github.com/ironsheep/balloon-vision/internal/source"
	"github.com/ironsheep/balloon-vision/internal/timing"
)

// Reasons a run stopped.
const (
	StopEndOfStream = "end of stream"
	StopMaxFrames   = "frame limit reached"
	StopCanceled    = "canceled"
	StopInterrupted = "interrupted"
)

// NoKey is the interrupt key reported when no key stopped the run.
const NoKey = -1

// Options configures a Pipeline.
type Options struct {
	// Backend runs the per-frame image operations. Required.
	Backend backend.Backend

	// Source feeds Step and Run. ProcessFrame does not need one.
	Source source.Source

	// Sink receives the enabled streams. Defaults to a display.Null.
	Sink display.Sink

	Clock  timing.Clock
	Logger *slog.Logger

	TargetHue        uint8
	Cutoff           uint8
	CircularityRatio float64

	// MaxFrames stops Run after this many processed frames; 0 means no limit.
	MaxFrames int

	// InterruptPoll is how long Run waits for an interrupt key after each frame.
	InterruptPoll time.Duration

	ShowRawFeed          bool
	ShowDiagnosticPlanes bool
	ShowAnnotatedOverlay bool
	DrawDebugContours    bool
	LogPerFrameTiming    bool
}

// DefaultOptions returns Options with the default detection parameters and the
// annotated overlay enabled. Backend and Source still have to be set.
func DefaultOptions() Options {
	return Options{
		TargetHue:            detection.DefaultTargetHue,
		Cutoff:               detection.DefaultCutoff,
		CircularityRatio:     detection.DefaultCircularity,
		InterruptPoll:        30 * time.Millisecond,
		ShowAnnotatedOverlay: true,
	}
}

// Result is the detection output of one frame.
type Result struct {
	// Seq is the sequence number of the frame.
	Seq uint64 `json:"seq"`

	// Contours holds every external contour found in the mask.
	Contours []detection.Contour `json:"-"`

	// Candidates holds one evaluated circle per contour, in contour order.
	Candidates []detection.Candidate `json:"candidates"`

	// Accepted holds the candidates that passed the circularity filter.
	Accepted []detection.Candidate `json:"accepted"`
}

// Pipeline processes frames one at a time. It is not safe for concurrent use.
type Pipeline struct {
	opts      Options
	backend   backend.Backend
	segmenter *detection.Segmenter
	scorer    *detection.Scorer
	sink      display.Sink
	clock     timing.Clock
	logger    *slog.Logger

	runID      string
	stats      timing.Stats
	skipped    int
	detections int

	started    time.Time
	elapsed    time.Duration
	finished   bool
	stopReason string
	key        int
}

// New creates a pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Backend == nil {
		return nil, errors.New("pipeline: backend is required")
	}
	if opts.Sink == nil {
		opts.Sink = display.NewNull()
	}
	if opts.Clock == nil {
		opts.Clock = timing.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	scorer := detection.NewScorer(opts.Backend)
	scorer.TargetHue = opts.TargetHue
	scorer.Cutoff = opts.Cutoff

	return &Pipeline{
		opts:      opts,
		backend:   opts.Backend,
		segmenter: detection.NewSegmenter(opts.Backend),
		scorer:    scorer,
		sink:      opts.Sink,
		clock:     opts.Clock,
		logger:    opts.Logger,
		runID:     uuid.NewString(),
		key:       NoKey,
	}, nil
}

// Stats returns the lifetime stage averages.
func (p *Pipeline) Stats() *timing.Stats {
	return &p.stats
}

// ProcessFrame runs detection on f, pushes the enabled streams to the sink and
// commits the frame's timing. The capture stage covers only the upload.
//
// Returns imaging.ErrEmptyFrame for nil or zero-sized frames, in which case no
// timing is committed.
func (p *Pipeline) ProcessFrame(f *imaging.Frame) (*Result, error) {
	return p.process(f, p.clock.Now())
}

// Step pulls the next frame from the source and processes it. It returns
// source.ErrEndOfStream once the source is exhausted.
func (p *Pipeline) Step() (*Result, error) {
	if p.opts.Source == nil {
		return nil, errors.New("pipeline: no source configured")
	}
	start := p.clock.Now()
	f, err := p.opts.Source.Next()
	if err != nil {
		return nil, err
	}
	return p.process(f, start)
}

// Run processes frames until the stream ends, MaxFrames is reached, ctx is canceled
// or the sink reports an interrupt. Only unexpected errors are returned; the reason
// the run stopped is available from Report.
func (p *Pipeline) Run(ctx context.Context) error {
	p.started = p.clock.Now()
	p.finished = false
	defer func() {
		p.elapsed = p.clock.Since(p.started)
		p.finished = true
	}()

	for {
		if ctx.Err() != nil {
			p.stopReason = StopCanceled
			return nil
		}
		if p.opts.MaxFrames > 0 && p.stats.Frames() >= p.opts.MaxFrames {
			p.stopReason = StopMaxFrames
			return nil
		}

		_, err := p.Step()
		switch {
		case err == nil:
		case errors.Is(err, source.ErrEndOfStream):
			if ctx.Err() != nil {
				p.stopReason = StopCanceled
			} else {
				p.stopReason = StopEndOfStream
			}
			return nil
		case errors.Is(err, imaging.ErrEmptyFrame):
			p.skipped++
			p.logger.Warn("pipeline: skipping empty frame", "error", err, "skipped", p.skipped)
		default:
			return fmt.Errorf("frame %d: %w", p.stats.Frames()+p.skipped, err)
		}

		if key, ok := p.sink.PollInterrupt(p.opts.InterruptPoll); ok {
			p.key = key
			p.stopReason = StopInterrupted
			return nil
		}
	}
}

func (p *Pipeline) process(f *imaging.Frame, start time.Time) (*Result, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if p.started.IsZero() {
		p.started = start
	}

	var sample timing.Sample

	bgr, err := p.segmenter.Upload(f)
	if err != nil {
		return nil, err
	}
	defer p.backend.Release(bgr)
	mark := p.lap(&sample, timing.StageCapture, start)

	hsv, err := p.segmenter.Convert(bgr)
	if err != nil {
		return nil, err
	}
	defer p.backend.Release(hsv)
	mark = p.lap(&sample, timing.StageConversion, mark)

	planes, err := p.segmenter.Split(hsv)
	if err != nil {
		return nil, err
	}
	defer p.segmenter.Release(planes)
	mark = p.lap(&sample, timing.StageSplit, mark)

	scores, err := p.scorer.Score(planes.Hue, planes.Sat)
	if err != nil {
		return nil, err
	}
	defer p.scorer.Release(scores)

	maskMat, err := p.scorer.Threshold(scores.Balloonyness)
	if err != nil {
		return nil, err
	}
	defer p.backend.Release(maskMat)

	mask, err := p.backend.Download(maskMat)
	if err != nil {
		return nil, fmt.Errorf("download mask: %w", err)
	}

	contours := detection.FindExternalContours(mask)
	result := newResult(f.Seq, contours, detection.Evaluate(contours, p.opts.CircularityRatio))

	var frameStreams streams
	if p.opts.ShowAnnotatedOverlay {
		frameStreams.overlay = p.drawOverlay(f, result)
	}
	mark = p.lap(&sample, timing.StageProcessing, mark)

	if err := p.show(f, planes, scores, mask, frameStreams); err != nil {
		return nil, err
	}
	p.lap(&sample, timing.StageDisplay, mark)

	p.stats.Commit(sample)
	p.detections += len(result.Accepted)

	if p.opts.LogPerFrameTiming {
		p.logger.Info("pipeline: frame timing",
			"seq", f.Seq,
			"capture_us", timing.Micros(sample.Get(timing.StageCapture)),
			"conversion_us", timing.Micros(sample.Get(timing.StageConversion)),
			"split_us", timing.Micros(sample.Get(timing.StageSplit)),
			"processing_us", timing.Micros(sample.Get(timing.StageProcessing)),
			"display_us", timing.Micros(sample.Get(timing.StageDisplay)),
			"contours", len(result.Contours),
			"balloons", len(result.Accepted),
		)
	}
	return result, nil
}

// lap stores the time elapsed since since as stage and returns the new mark.
func (p *Pipeline) lap(s *timing.Sample, stage timing.Stage, since time.Time) time.Time {
	now := p.clock.Now()
	s.Set(stage, now.Sub(since))
	return now
}

func newResult(seq uint64, contours []detection.Contour, candidates []detection.Candidate) *Result {
	accepted := make([]detection.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Accepted {
			accepted = append(accepted, c)
		}
	}
	return &Result{
		Seq:        seq,
		Contours:   contours,
		Candidates: candidates,
		Accepted:   accepted,
	}
}
