package detection

import (
	"fmt"

	"github.com/ironsheep/balloon-vision/internal/backend"
	"github.com/ironsheep/balloon-vision/internal/imaging"
)

// HSVMats holds the three color planes of a frame in backend memory.
type HSVMats struct {
	Hue backend.Mat // 0-179
	Sat backend.Mat // 0-255
	Val backend.Mat // 0-255
}

// Segmenter converts BGR frames to hue, saturation and value planes on a backend.
//
// The conversion is exposed as three steps (Upload, Convert, Split) so a caller can
// time them separately. ToHSV runs all three and downloads the result.
type Segmenter struct {
	backend backend.Backend
}

// NewSegmenter returns a Segmenter that runs on b.
func NewSegmenter(b backend.Backend) *Segmenter {
	return &Segmenter{backend: b}
}

// Upload transfers the frame to the backend. For the host backend this wraps the
// frame buffer without copying.
//
// Returns imaging.ErrEmptyFrame for nil or zero-sized frames.
func (s *Segmenter) Upload(f *imaging.Frame) (backend.Mat, error) {
	m, err := s.backend.Upload(f)
	if err != nil {
		return nil, fmt.Errorf("upload frame: %w", err)
	}
	return m, nil
}

// Convert converts an uploaded BGR Mat to HSV using 8-bit ranges (hue 0-179).
func (s *Segmenter) Convert(bgr backend.Mat) (backend.Mat, error) {
	hsv, err := s.backend.ConvertColor(bgr)
	if err != nil {
		return nil, fmt.Errorf("convert to hsv: %w", err)
	}
	return hsv, nil
}

// Split separates an HSV Mat into its three planes.
func (s *Segmenter) Split(hsv backend.Mat) (HSVMats, error) {
	planes, err := s.backend.SplitPlanes(hsv)
	if err != nil {
		return HSVMats{}, fmt.Errorf("split hsv: %w", err)
	}
	return HSVMats{Hue: planes[0], Sat: planes[1], Val: planes[2]}, nil
}

// ToHSV runs Upload, Convert and Split and downloads the planes to host memory.
// Intermediate backend buffers are released before returning.
func (s *Segmenter) ToHSV(f *imaging.Frame) (*imaging.ColorPlanes, error) {
	bgr, err := s.Upload(f)
	if err != nil {
		return nil, err
	}
	defer s.backend.Release(bgr)

	hsv, err := s.Convert(bgr)
	if err != nil {
		return nil, err
	}
	defer s.backend.Release(hsv)

	mats, err := s.Split(hsv)
	if err != nil {
		return nil, err
	}
	defer s.Release(mats)

	return s.Download(mats)
}

// Download copies the three planes to host memory.
func (s *Segmenter) Download(m HSVMats) (*imaging.ColorPlanes, error) {
	var out imaging.ColorPlanes
	var err error
	if out.Hue, err = s.download(m.Hue, "hue"); err != nil {
		return nil, err
	}
	if out.Sat, err = s.download(m.Sat, "sat"); err != nil {
		return nil, err
	}
	if out.Val, err = s.download(m.Val, "val"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Release frees the three planes.
func (s *Segmenter) Release(m HSVMats) {
	s.backend.Release(m.Hue)
	s.backend.Release(m.Sat)
	s.backend.Release(m.Val)
}

func (s *Segmenter) download(m backend.Mat, name string) (*imaging.Plane, error) {
	p, err := s.backend.Download(m)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	return p, nil
}
