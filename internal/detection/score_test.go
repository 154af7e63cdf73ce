package detection

import (
	"errors"
	"testing"

	"github.com/ironsheep/balloon-vision/internal/backend"
	"github.com/ironsheep/balloon-vision/internal/imaging"
)

// scorePlanes runs the scorer on host planes and downloads the balloonyness map and
// mask.
func scorePlanes(t *testing.T, b backend.Backend, s *Scorer, hue, sat *imaging.Plane) (score, mask *imaging.Plane) {
	t.Helper()

	h, err := b.UploadPlane(hue)
	if err != nil {
		t.Fatalf("UploadPlane(hue) error = %v", err)
	}
	sa, err := b.UploadPlane(sat)
	if err != nil {
		t.Fatalf("UploadPlane(sat) error = %v", err)
	}

	maps, err := s.Score(h, sa)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	m, err := s.Threshold(maps.Balloonyness)
	if err != nil {
		t.Fatalf("Threshold() error = %v", err)
	}

	if score, err = b.Download(maps.Balloonyness); err != nil {
		t.Fatalf("Download(score) error = %v", err)
	}
	if mask, err = b.Download(m); err != nil {
		t.Fatalf("Download(mask) error = %v", err)
	}
	return score, mask
}

func filledPlane(w, h int, v uint8) *imaging.Plane {
	p := imaging.NewPlane(w, h)
	for i := range p.Pix {
		p.Pix[i] = v
	}
	return p
}

func TestScorer_KnownValues(t *testing.T) {
	tests := []struct {
		name      string
		hue, sat  uint8
		wantScore uint8
		wantMask  uint8
	}{
		// huered 75 -> 150, sat 255/64 -> 4, 600 saturates.
		{"saturated orange", 15, 255, 255, 255},
		{"target hue", 90, 255, 0, 0},
		{"gray", 0, 0, 0, 0},
		// huered 90 -> 180, 96/64=1.5 -> 2, 360 saturates.
		{"half to even up", 0, 96, 255, 255},
		// huered 50 -> 100, 32/64=0.5 -> 0.
		{"half to even down", 40, 32, 0, 0},
		// huered 50 -> 100, 128/64 -> 2, 200 hits the cutoff.
		{"exactly cutoff", 40, 128, 200, 255},
		// huered 49 -> 98, 2 -> 196.
		{"just below cutoff", 41, 128, 196, 0},
	}

	for _, b := range backends() {
		s := NewScorer(b)
		for _, tt := range tests {
			t.Run(b.Name()+"/"+tt.name, func(t *testing.T) {
				score, mask := scorePlanes(t, b, s, filledPlane(2, 2, tt.hue), filledPlane(2, 2, tt.sat))
				if got := score.At(1, 1); got != tt.wantScore {
					t.Errorf("score = %d, want %d", got, tt.wantScore)
				}
				if got := mask.At(1, 1); got != tt.wantMask {
					t.Errorf("mask = %d, want %d", got, tt.wantMask)
				}
			})
		}
	}
}

func TestScorer_MonotonicInSaturation(t *testing.T) {
	for _, hue := range []uint8{0, 15, 60, 89, 90, 120, 179} {
		sat := imaging.NewPlane(256, 1)
		for i := range sat.Pix {
			sat.Pix[i] = uint8(i)
		}

		for _, b := range backends() {
			score, _ := scorePlanes(t, b, NewScorer(b), filledPlane(256, 1, hue), sat)
			for x := 1; x < 256; x++ {
				if score.At(x, 0) < score.At(x-1, 0) {
					t.Fatalf("%s hue %d: score(sat=%d)=%d < score(sat=%d)=%d",
						b.Name(), hue, x, score.At(x, 0), x-1, score.At(x-1, 0))
				}
			}
		}
	}
}

func TestScorer_TargetHue(t *testing.T) {
	b := backend.NewHost()
	s := NewScorer(b)
	s.TargetHue = 15

	score, mask := scorePlanes(t, b, s, filledPlane(1, 1, 15), filledPlane(1, 1, 255))
	if score.At(0, 0) != 0 || mask.At(0, 0) != 0 {
		t.Errorf("pixel at target hue scored %d (mask %d), want 0", score.At(0, 0), mask.At(0, 0))
	}
}

func TestScorer_DimensionMismatch(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.Name(), func(t *testing.T) {
			hue, _ := b.UploadPlane(imaging.NewPlane(4, 4))
			sat, _ := b.UploadPlane(imaging.NewPlane(4, 3))
			_, err := NewScorer(b).Score(hue, sat)
			if !errors.Is(err, imaging.ErrDimensionMismatch) {
				t.Errorf("Score() error = %v, want ErrDimensionMismatch", err)
			}
		})
	}
}
