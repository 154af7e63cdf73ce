//go:build gocv && cuda

package backend

import (
	"fmt"
	"math"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/cuda"

	"github.com/ironsheep/balloon-vision/internal/imaging"
)

// cudaMat wraps device memory owned by OpenCV's CUDA module.
type cudaMat struct {
	g cuda.GpuMat
}

func (m *cudaMat) Width() int    { return m.g.Cols() }
func (m *cudaMat) Height() int   { return m.g.Rows() }
func (m *cudaMat) Channels() int { return m.g.Channels() }

type constKey struct {
	w, h  int
	value uint8
}

// CUDABackend runs the per-pixel stages on an NVIDIA GPU.
type CUDABackend struct {
	devices int
	consts  map[constKey]cuda.GpuMat
}

func openCUDA() (Backend, error) {
	n := cuda.GetCudaEnabledDeviceCount()
	if n < 1 {
		return nil, fmt.Errorf("no CUDA device: %w", ErrUnavailable)
	}
	return &CUDABackend{devices: n, consts: make(map[constKey]cuda.GpuMat)}, nil
}

func (*CUDABackend) Name() string      { return CUDA }
func (*CUDABackend) Accelerated() bool { return true }
func (c *CUDABackend) Devices() int    { return c.devices }

func (*CUDABackend) Upload(f *imaging.Frame) (Mat, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	host, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data[:f.Width*f.Height*3])
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	defer host.Close()
	g := cuda.NewGpuMat()
	g.Upload(host)
	return &cudaMat{g: g}, nil
}

func (*CUDABackend) UploadPlane(p *imaging.Plane) (Mat, error) {
	if err := validatePlane(p); err != nil {
		return nil, err
	}
	host, err := gocv.NewMatFromBytes(p.Height, p.Width, gocv.MatTypeCV8UC1, p.Pix[:p.Width*p.Height])
	if err != nil {
		return nil, fmt.Errorf("upload plane: %w", err)
	}
	defer host.Close()
	g := cuda.NewGpuMat()
	g.Upload(host)
	return &cudaMat{g: g}, nil
}

func (c *CUDABackend) ConvertColor(src Mat) (Mat, error) {
	s, err := c.mat(src, 3, "convert color")
	if err != nil {
		return nil, err
	}
	dst := cuda.NewGpuMat()
	cuda.CvtColor(s.g, &dst, gocv.ColorBGRToHSV)
	return &cudaMat{g: dst}, nil
}

func (c *CUDABackend) SplitPlanes(src Mat) ([3]Mat, error) {
	s, err := c.mat(src, 3, "split planes")
	if err != nil {
		return [3]Mat{}, err
	}
	planes := []cuda.GpuMat{cuda.NewGpuMat(), cuda.NewGpuMat(), cuda.NewGpuMat()}
	cuda.Split(s.g, planes)
	return [3]Mat{&cudaMat{g: planes[0]}, &cudaMat{g: planes[1]}, &cudaMat{g: planes[2]}}, nil
}

func (c *CUDABackend) AbsDiff(src Mat, value uint8) (Mat, error) {
	s, err := c.mat(src, 1, "absdiff")
	if err != nil {
		return nil, err
	}
	dst := cuda.NewGpuMat()
	cuda.AbsDiff(s.g, c.constant(s, value), &dst)
	return &cudaMat{g: dst}, nil
}

// Divide supports whole divisors in 1-255, which covers every scale the pipeline uses.
func (c *CUDABackend) Divide(src Mat, divisor float64) (Mat, error) {
	d, err := wholeFactor(divisor, "divide")
	if err != nil {
		return nil, err
	}
	s, err := c.mat(src, 1, "divide")
	if err != nil {
		return nil, err
	}
	dst := cuda.NewGpuMat()
	cuda.Divide(s.g, c.constant(s, d), &dst)
	return &cudaMat{g: dst}, nil
}

// Multiply supports whole factors in 1-255.
func (c *CUDABackend) Multiply(src Mat, factor float64) (Mat, error) {
	f, err := wholeFactor(factor, "multiply")
	if err != nil {
		return nil, err
	}
	s, err := c.mat(src, 1, "multiply")
	if err != nil {
		return nil, err
	}
	dst := cuda.NewGpuMat()
	cuda.Multiply(s.g, c.constant(s, f), &dst)
	return &cudaMat{g: dst}, nil
}

func (c *CUDABackend) MultiplyPlanes(a, b Mat) (Mat, error) {
	x, err := c.mat(a, 1, "multiply planes")
	if err != nil {
		return nil, err
	}
	y, err := c.mat(b, 1, "multiply planes")
	if err != nil {
		return nil, err
	}
	if err := checkSameSize(x, y, "multiply planes"); err != nil {
		return nil, err
	}
	dst := cuda.NewGpuMat()
	cuda.Multiply(x.g, y.g, &dst)
	return &cudaMat{g: dst}, nil
}

// Threshold uses THRESH_BINARY, which tests strictly greater, so the cutoff is
// shifted down by one to keep the >= semantics of the other backends.
func (c *CUDABackend) Threshold(src Mat, cutoff, maxValue uint8) (Mat, error) {
	s, err := c.mat(src, 1, "threshold")
	if err != nil {
		return nil, err
	}
	dst := cuda.NewGpuMat()
	cuda.Threshold(s.g, &dst, float64(cutoff)-1, float64(maxValue), gocv.ThresholdBinary)
	return &cudaMat{g: dst}, nil
}

func (c *CUDABackend) Download(src Mat) (*imaging.Plane, error) {
	s, err := c.mat(src, 1, "download")
	if err != nil {
		return nil, err
	}
	host := gocv.NewMat()
	defer host.Close()
	s.g.Download(&host)
	plane := imaging.NewPlane(s.Width(), s.Height())
	copy(plane.Pix, host.ToBytes())
	return plane, nil
}

func (*CUDABackend) Release(m Mat) {
	if cm, ok := m.(*cudaMat); ok {
		cm.g.Close()
	}
}

func (c *CUDABackend) Close() error {
	for k, g := range c.consts {
		g.Close()
		delete(c.consts, k)
	}
	return nil
}

// constant returns a cached device Mat filled with value, sized like like.
func (c *CUDABackend) constant(like *cudaMat, value uint8) cuda.GpuMat {
	key := constKey{w: like.Width(), h: like.Height(), value: value}
	if g, ok := c.consts[key]; ok {
		return g
	}
	host := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(value), 0, 0, 0), key.h, key.w, gocv.MatTypeCV8UC1)
	defer host.Close()
	g := cuda.NewGpuMat()
	g.Upload(host)
	c.consts[key] = g
	return g
}

func (*CUDABackend) mat(m Mat, channels int, op string) (*cudaMat, error) {
	if err := checkChannels(m, channels, op); err != nil {
		return nil, err
	}
	cm, ok := m.(*cudaMat)
	if !ok {
		return nil, fmt.Errorf("%s: mat %T does not belong to the cuda backend", op, m)
	}
	return cm, nil
}

func wholeFactor(v float64, op string) (uint8, error) {
	if v < 1 || v > 255 || v != math.Trunc(v) {
		return 0, fmt.Errorf("%s: factor %g not supported on cuda", op, v)
	}
	return uint8(v), nil
}
