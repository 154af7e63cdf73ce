// Package timing tracks lifetime per-stage latency for the frame pipeline.
//
// Each frame is split into five stages (capture, color conversion, plane split,
// detection processing and display). The pipeline samples the boundaries of every
// stage, collects the deltas in a Sample and commits the Sample to Stats once the
// frame is complete.
//
// # Averaging
//
// Stats keeps an unweighted cumulative moving average per stage:
//
//	avg' = (avg*n + delta) / (n + 1)
//
// where n is the number of frames committed so far. Later samples have a smaller
// marginal influence, so the averages report lifetime latency rather than a recent
// window.
//
// # Thread Safety
//
// Stats is not synchronized. It is written once per frame by the goroutine that
// drives the pipeline; callers that process frames in parallel must serialize
// Commit themselves.
package timing

import (
	"fmt"
	"time"
)

// Stage identifies one timed section of a frame iteration.
type Stage int

const (
	StageCapture Stage = iota
	StageConversion
	StageSplit
	StageProcessing
	StageDisplay

	numStages
)

// Stages lists every stage in pipeline order.
var Stages = [numStages]Stage{StageCapture, StageConversion, StageSplit, StageProcessing, StageDisplay}

var stageNames = [numStages]string{"capture", "conversion", "split", "processing", "display"}

// String returns the lowercase stage name used in logs and reports.
func (s Stage) String() string {
	if s < 0 || s >= numStages {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Record folds one delta into a running average that currently covers frameCount
// samples and returns the new average.
func Record(average float64, deltaMicros float64, frameCount int) float64 {
	return (average*float64(frameCount) + deltaMicros) / float64(frameCount+1)
}

// Sample holds the measured duration of every stage for a single frame.
type Sample [numStages]time.Duration

// Set stores the duration measured for stage s.
func (s *Sample) Set(stage Stage, d time.Duration) {
	s[stage] = d
}

// Get returns the duration measured for stage s.
func (s Sample) Get(stage Stage) time.Duration {
	return s[stage]
}

// Stats holds lifetime per-stage averages in microseconds and the number of frames
// committed. The zero value is an empty history and is ready to use.
type Stats struct {
	averages [numStages]float64
	frames   int
}

// Commit records every stage of sample against the current frame count and then
// advances the counter by one.
func (st *Stats) Commit(sample Sample) {
	for _, stage := range Stages {
		st.averages[stage] = Record(st.averages[stage], Micros(sample[stage]), st.frames)
	}
	st.frames++
}

// Average returns the lifetime average of stage in microseconds.
func (st *Stats) Average(stage Stage) float64 {
	return st.averages[stage]
}

// Frames returns the number of committed frames.
func (st *Stats) Frames() int {
	return st.frames
}

// Micros converts d to fractional microseconds.
func Micros(d time.Duration) float64 {
	return float64(d) / float64(time.Microsecond)
}
