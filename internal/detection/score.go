package detection

import (
	"fmt"

	"github.com/ironsheep/balloon-vision/internal/backend"
	"github.com/ironsheep/balloon-vision/internal/imaging"
)

// Default scoring parameters.
const (
	DefaultTargetHue = 90
	DefaultCutoff    = 200

	// MaskOn is the mask value of a foreground pixel.
	MaskOn = 255
)

// Scale factors of the balloonyness score.
const (
	hueRedDivisor = 16
	hueRedFactor  = 2
	satDivisor    = 64
)

// ScoreMaps holds the intermediate and final score buffers of one frame. All of them
// live in backend memory.
type ScoreMaps struct {
	// HueRed is |hue - TargetHue|.
	HueRed backend.Mat

	// Balloonyness is the per-pixel score, saturated at 255.
	Balloonyness backend.Mat
}

// Scorer computes the balloonyness score of each pixel and thresholds it into a
// binary mask.
//
// # Score
//
// For every pixel, using saturating 8-bit arithmetic:
//
//	huered       = |hue - TargetHue|
//	scaleHueRed  = huered * 2
//	scaleSat     = sat / 64            (rounded, halves to even)
//	balloonyness = scaleHueRed * scaleSat
//
// Pixels far from the target hue and strongly saturated score highest. With the
// default target of 90 (cyan) that favors reds, oranges and magentas.
//
// The score also computes huered / 16 and throws it away; the scaled hue distance is
// always huered * 2. The division is kept so accelerated runs do the same amount of
// device work per frame.
//
// # Threshold
//
// The mask is 255 where balloonyness >= Cutoff and 0 elsewhere.
type Scorer struct {
	backend backend.Backend

	// TargetHue is the hue (0-179) that scores lowest.
	TargetHue uint8

	// Cutoff is the minimum balloonyness of a foreground pixel.
	Cutoff uint8
}

// NewScorer returns a Scorer with the default target hue and cutoff.
func NewScorer(b backend.Backend) *Scorer {
	return &Scorer{backend: b, TargetHue: DefaultTargetHue, Cutoff: DefaultCutoff}
}

// Score computes the score maps from the hue and saturation planes.
//
// Returns an error wrapping imaging.ErrDimensionMismatch if hue and sat differ in
// size.
func (s *Scorer) Score(hue, sat backend.Mat) (*ScoreMaps, error) {
	if hue == nil || sat == nil {
		return nil, fmt.Errorf("score: missing plane")
	}
	if hue.Width() != sat.Width() || hue.Height() != sat.Height() {
		return nil, fmt.Errorf("score: hue %dx%d, sat %dx%d: %w",
			hue.Width(), hue.Height(), sat.Width(), sat.Height(), imaging.ErrDimensionMismatch)
	}

	b := s.backend

	hueRed, err := b.AbsDiff(hue, s.TargetHue)
	if err != nil {
		return nil, fmt.Errorf("score huered: %w", err)
	}

	discarded, err := b.Divide(hueRed, hueRedDivisor)
	if err != nil {
		b.Release(hueRed)
		return nil, fmt.Errorf("score huered: %w", err)
	}
	b.Release(discarded)

	scaleSat, err := b.Divide(sat, satDivisor)
	if err != nil {
		b.Release(hueRed)
		return nil, fmt.Errorf("score sat: %w", err)
	}
	defer b.Release(scaleSat)

	scaleHueRed, err := b.Multiply(hueRed, hueRedFactor)
	if err != nil {
		b.Release(hueRed)
		return nil, fmt.Errorf("score huered: %w", err)
	}
	defer b.Release(scaleHueRed)

	balloonyness, err := b.MultiplyPlanes(scaleHueRed, scaleSat)
	if err != nil {
		b.Release(hueRed)
		return nil, fmt.Errorf("score balloonyness: %w", err)
	}

	return &ScoreMaps{HueRed: hueRed, Balloonyness: balloonyness}, nil
}

// Threshold turns a balloonyness map into a binary mask.
func (s *Scorer) Threshold(balloonyness backend.Mat) (backend.Mat, error) {
	mask, err := s.backend.Threshold(balloonyness, s.Cutoff, MaskOn)
	if err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}
	return mask, nil
}

// Release frees the score buffers.
func (s *Scorer) Release(m *ScoreMaps) {
	if m == nil {
		return
	}
	s.backend.Release(m.HueRed)
	s.backend.Release(m.Balloonyness)
}
