package backend

import (
	"fmt"

	"github.com/ironsheep/balloon-vision/internal/imaging"
)

// hostMat is a buffer in ordinary process memory.
type hostMat struct {
	w, h, c int
	pix     []uint8
}

func (m *hostMat) Width() int    { return m.w }
func (m *hostMat) Height() int   { return m.h }
func (m *hostMat) Channels() int { return m.c }

func newHostMat(w, h, c int) *hostMat {
	return &hostMat{w: w, h: h, c: c, pix: make([]uint8, w*h*c)}
}

// HostBackend runs every operation on the calling goroutine over host memory.
type HostBackend struct{}

// NewHost creates the host backend.
func NewHost() *HostBackend {
	return &HostBackend{}
}

// Name returns "host".
func (*HostBackend) Name() string { return Host }

// Accelerated returns false.
func (*HostBackend) Accelerated() bool { return false }

// Upload wraps the frame buffer without copying. The frame must not be modified
// while the returned Mat is in use.
func (*HostBackend) Upload(f *imaging.Frame) (Mat, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &hostMat{w: f.Width, h: f.Height, c: 3, pix: f.Data[:f.Width*f.Height*3]}, nil
}

// UploadPlane wraps the plane buffer without copying.
func (*HostBackend) UploadPlane(p *imaging.Plane) (Mat, error) {
	if err := validatePlane(p); err != nil {
		return nil, err
	}
	return &hostMat{w: p.Width, h: p.Height, c: 1, pix: p.Pix[:p.Width*p.Height]}, nil
}

// ConvertColor converts BGR to HSV with the floating point reference formula.
func (b *HostBackend) ConvertColor(src Mat) (Mat, error) {
	s, err := b.mat(src, 3, "convert color")
	if err != nil {
		return nil, err
	}
	dst := newHostMat(s.w, s.h, 3)
	hsvFloatKernel(dst.pix, s.pix)
	return dst, nil
}

// SplitPlanes deinterleaves a 3-channel Mat.
func (b *HostBackend) SplitPlanes(src Mat) ([3]Mat, error) {
	s, err := b.mat(src, 3, "split planes")
	if err != nil {
		return [3]Mat{}, err
	}
	c0, c1, c2 := newHostMat(s.w, s.h, 1), newHostMat(s.w, s.h, 1), newHostMat(s.w, s.h, 1)
	splitKernel(c0.pix, c1.pix, c2.pix, s.pix)
	return [3]Mat{c0, c1, c2}, nil
}

// AbsDiff computes |src - value|.
func (b *HostBackend) AbsDiff(src Mat, value uint8) (Mat, error) {
	s, err := b.mat(src, 1, "absdiff")
	if err != nil {
		return nil, err
	}
	dst := newHostMat(s.w, s.h, 1)
	absDiffKernel(dst.pix, s.pix, value)
	return dst, nil
}

// Divide computes src / divisor.
func (b *HostBackend) Divide(src Mat, divisor float64) (Mat, error) {
	if divisor == 0 {
		return nil, fmt.Errorf("divide: zero divisor")
	}
	s, err := b.mat(src, 1, "divide")
	if err != nil {
		return nil, err
	}
	dst := newHostMat(s.w, s.h, 1)
	divideKernel(dst.pix, s.pix, divisor)
	return dst, nil
}

// Multiply computes src * factor.
func (b *HostBackend) Multiply(src Mat, factor float64) (Mat, error) {
	s, err := b.mat(src, 1, "multiply")
	if err != nil {
		return nil, err
	}
	dst := newHostMat(s.w, s.h, 1)
	multiplyKernel(dst.pix, s.pix, factor)
	return dst, nil
}

// MultiplyPlanes computes a * b.
func (b *HostBackend) MultiplyPlanes(a, c Mat) (Mat, error) {
	x, err := b.mat(a, 1, "multiply planes")
	if err != nil {
		return nil, err
	}
	y, err := b.mat(c, 1, "multiply planes")
	if err != nil {
		return nil, err
	}
	if err := checkSameSize(x, y, "multiply planes"); err != nil {
		return nil, err
	}
	dst := newHostMat(x.w, x.h, 1)
	multiplyPlanesKernel(dst.pix, x.pix, y.pix)
	return dst, nil
}

// Threshold binarizes src at cutoff.
func (b *HostBackend) Threshold(src Mat, cutoff, maxValue uint8) (Mat, error) {
	s, err := b.mat(src, 1, "threshold")
	if err != nil {
		return nil, err
	}
	dst := newHostMat(s.w, s.h, 1)
	thresholdKernel(dst.pix, s.pix, cutoff, maxValue)
	return dst, nil
}

// Download returns a Plane sharing the Mat's memory.
func (b *HostBackend) Download(src Mat) (*imaging.Plane, error) {
	s, err := b.mat(src, 1, "download")
	if err != nil {
		return nil, err
	}
	return &imaging.Plane{Width: s.w, Height: s.h, Pix: s.pix}, nil
}

// Release is a no-op; host buffers are garbage collected.
func (*HostBackend) Release(Mat) {}

// Close is a no-op.
func (*HostBackend) Close() error { return nil }

func (*HostBackend) mat(m Mat, channels int, op string) (*hostMat, error) {
	if err := checkChannels(m, channels, op); err != nil {
		return nil, err
	}
	hm, ok := m.(*hostMat)
	if !ok {
		return nil, fmt.Errorf("%s: mat %T does not belong to the host backend", op, m)
	}
	return hm, nil
}
