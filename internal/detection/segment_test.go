package detection

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/ironsheep/balloon-vision/internal/backend"
	"github.com/ironsheep/balloon-vision/internal/imaging"
)

func backends() []backend.Backend {
	return []backend.Backend{backend.NewHost(), backend.NewPool(0)}
}

func TestSegmenter_ToHSV(t *testing.T) {
	f := imaging.NewFrame(8, 4)
	f.Fill(128, 128, 128)
	f.SetBGR(0, 0, 0, 128, 255) // orange
	f.SetBGR(1, 0, 255, 0, 0)   // blue

	for _, b := range backends() {
		t.Run(b.Name(), func(t *testing.T) {
			planes, err := NewSegmenter(b).ToHSV(f)
			if err != nil {
				t.Fatalf("ToHSV() error = %v", err)
			}
			if planes.Hue.Width != 8 || planes.Hue.Height != 4 {
				t.Fatalf("hue plane is %dx%d, want 8x4", planes.Hue.Width, planes.Hue.Height)
			}

			if h := planes.Hue.At(0, 0); imaging.HueDistance(h, 15) > 1 {
				t.Errorf("orange hue = %d, want 15", h)
			}
			if s := planes.Sat.At(0, 0); s != 255 {
				t.Errorf("orange saturation = %d, want 255", s)
			}
			if h := planes.Hue.At(1, 0); imaging.HueDistance(h, 120) > 1 {
				t.Errorf("blue hue = %d, want 120", h)
			}
			if s, v := planes.Sat.At(5, 2), planes.Val.At(5, 2); s != 0 || v != 128 {
				t.Errorf("gray sat/val = %d/%d, want 0/128", s, v)
			}
		})
	}
}

func TestSegmenter_HostMatchesAccelerator(t *testing.T) {
	f := imaging.NewFrame(96, 64)
	rand.New(rand.NewSource(7)).Read(f.Data)

	host, err := NewSegmenter(backend.NewHost()).ToHSV(f)
	if err != nil {
		t.Fatalf("host ToHSV() error = %v", err)
	}
	pool, err := NewSegmenter(backend.NewPool(3)).ToHSV(f)
	if err != nil {
		t.Fatalf("pool ToHSV() error = %v", err)
	}

	for i := range host.Hue.Pix {
		if d := imaging.HueDistance(host.Hue.Pix[i], pool.Hue.Pix[i]); d > 1 {
			t.Fatalf("pixel %d hue differs by %d", i, d)
		}
		if d := int(host.Sat.Pix[i]) - int(pool.Sat.Pix[i]); d > 1 || d < -1 {
			t.Fatalf("pixel %d saturation differs by %d", i, d)
		}
		if d := int(host.Val.Pix[i]) - int(pool.Val.Pix[i]); d > 1 || d < -1 {
			t.Fatalf("pixel %d value differs by %d", i, d)
		}
	}
}

func TestSegmenter_EmptyFrame(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.Name(), func(t *testing.T) {
			_, err := NewSegmenter(b).ToHSV(imaging.NewFrame(0, 10))
			if !errors.Is(err, imaging.ErrEmptyFrame) {
				t.Errorf("ToHSV(empty) error = %v, want ErrEmptyFrame", err)
			}
		})
	}
}
