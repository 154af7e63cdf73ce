package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ironsheep/balloon-vision/internal/timing"
)

// StageAverages holds the lifetime average of each stage in microseconds.
type StageAverages struct {
	Capture    float64 `json:"capture"`
	Conversion float64 `json:"conversion"`
	Split      float64 `json:"split"`
	Processing float64 `json:"processing"`
	Display    float64 `json:"display"`
}

// Report summarizes a run.
type Report struct {
	RunID          string        `json:"runId"`
	Backend        string        `json:"backend"`
	Frames         int           `json:"frames"`
	Skipped        int           `json:"skipped"`
	Detections     int           `json:"detections"`
	Elapsed        time.Duration `json:"-"`
	ElapsedSeconds float64       `json:"elapsedSeconds"`
	FPS            float64       `json:"fps"`
	AverageMicros  StageAverages `json:"averageMicros"`
	StopReason     string        `json:"stopReason,omitempty"`
	InterruptKey   int           `json:"interruptKey"`
}

// Report returns the statistics gathered so far. While Run is in progress, or when
// frames were fed through ProcessFrame, Elapsed is measured up to now.
func (p *Pipeline) Report() Report {
	var elapsed time.Duration
	switch {
	case p.finished:
		elapsed = p.elapsed
	case !p.started.IsZero():
		elapsed = p.clock.Since(p.started)
	}

	r := Report{
		RunID:          p.runID,
		Backend:        p.backend.Name(),
		Frames:         p.stats.Frames(),
		Skipped:        p.skipped,
		Detections:     p.detections,
		Elapsed:        elapsed,
		ElapsedSeconds: elapsed.Seconds(),
		AverageMicros: StageAverages{
			Capture:    p.stats.Average(timing.StageCapture),
			Conversion: p.stats.Average(timing.StageConversion),
			Split:      p.stats.Average(timing.StageSplit),
			Processing: p.stats.Average(timing.StageProcessing),
			Display:    p.stats.Average(timing.StageDisplay),
		},
		StopReason:   p.stopReason,
		InterruptKey: p.key,
	}
	if elapsed > 0 {
		r.FPS = float64(r.Frames) / elapsed.Seconds()
	}
	return r
}

// WriteText writes the human-readable exit report.
func (r Report) WriteText(w io.Writer) error {
	var stopped string
	switch {
	case r.StopReason == StopInterrupted:
		stopped = fmt.Sprintf("key press %d detected", r.InterruptKey)
	case r.StopReason != "":
		stopped = r.StopReason
	default:
		stopped = "not stopped"
	}

	_, err := fmt.Fprintf(w, `run %s on %s backend: %s. printing statistics.
%d frames captured over %d microseconds (%f seconds), %d skipped
ran at %f frames per second, %d balloons detected
average capture frame time used:       %f
average color conversion time used:    %f
average split planes time used:        %f
average frame processing time used:    %f
average display frame time used:       %f
`,
		r.RunID, r.Backend, stopped,
		r.Frames, r.Elapsed.Microseconds(), r.ElapsedSeconds, r.Skipped,
		r.FPS, r.Detections,
		r.AverageMicros.Capture,
		r.AverageMicros.Conversion,
		r.AverageMicros.Split,
		r.AverageMicros.Processing,
		r.AverageMicros.Display,
	)
	return err
}

// WriteJSON writes the report as an indented JSON document.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Write writes the report in format, "text" or "json".
func (r Report) Write(w io.Writer, format string) error {
	switch format {
	case "json":
		return r.WriteJSON(w)
	case "text", "":
		return r.WriteText(w)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
