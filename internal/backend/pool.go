package backend

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/anthonynsimon/bild/parallel"

	"github.com/ironsheep/balloon-vision/internal/imaging"
)

var errReleased = errors.New("mat already released")

// poolMat is a buffer in the pool device's private memory.
type poolMat struct {
	w, h, c int
	mem     []uint8
}

func (m *poolMat) Width() int    { return m.w }
func (m *poolMat) Height() int   { return m.h }
func (m *poolMat) Channels() int { return m.c }

// PoolBackend is an offload device that keeps its buffers apart from host memory
// and runs each kernel across row bands on all available CPUs.
//
// Frames must be uploaded (copied in) before conversion, and results downloaded
// (copied out) before host code reads them, exactly like a discrete accelerator.
// Color conversion uses fixed point arithmetic, so its output may differ from the
// host backend by one unit.
type PoolBackend struct {
	workers int
}

// NewPool creates a pool device. workers <= 0 uses GOMAXPROCS.
func NewPool(workers int) *PoolBackend {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &PoolBackend{workers: workers}
}

// Name returns "pool".
func (*PoolBackend) Name() string { return Pool }

// Accelerated returns true.
func (*PoolBackend) Accelerated() bool { return true }

// Devices returns the number of row bands each kernel runs in parallel.
func (p *PoolBackend) Devices() int { return p.workers }

// Upload copies the frame into device memory.
func (*PoolBackend) Upload(f *imaging.Frame) (Mat, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	n := f.Width * f.Height * 3
	m := &poolMat{w: f.Width, h: f.Height, c: 3, mem: make([]uint8, n)}
	copy(m.mem, f.Data[:n])
	return m, nil
}

// UploadPlane copies a single-channel plane into device memory.
func (*PoolBackend) UploadPlane(p *imaging.Plane) (Mat, error) {
	if err := validatePlane(p); err != nil {
		return nil, err
	}
	n := p.Width * p.Height
	m := &poolMat{w: p.Width, h: p.Height, c: 1, mem: make([]uint8, n)}
	copy(m.mem, p.Pix[:n])
	return m, nil
}

// ConvertColor converts BGR to HSV.
func (p *PoolBackend) ConvertColor(src Mat) (Mat, error) {
	s, err := p.mat(src, 3, "convert color")
	if err != nil {
		return nil, err
	}
	dst := p.alloc(s.w, s.h, 3)
	p.rows(s.h, func(y0, y1 int) {
		lo, hi := y0*s.w*3, y1*s.w*3
		hsvFixedKernel(dst.mem[lo:hi], s.mem[lo:hi])
	})
	return dst, nil
}

// SplitPlanes deinterleaves a 3-channel Mat.
func (p *PoolBackend) SplitPlanes(src Mat) ([3]Mat, error) {
	s, err := p.mat(src, 3, "split planes")
	if err != nil {
		return [3]Mat{}, err
	}
	c0, c1, c2 := p.alloc(s.w, s.h, 1), p.alloc(s.w, s.h, 1), p.alloc(s.w, s.h, 1)
	p.rows(s.h, func(y0, y1 int) {
		lo, hi := y0*s.w, y1*s.w
		splitKernel(c0.mem[lo:hi], c1.mem[lo:hi], c2.mem[lo:hi], s.mem[lo*3:hi*3])
	})
	return [3]Mat{c0, c1, c2}, nil
}

// AbsDiff computes |src - value|.
func (p *PoolBackend) AbsDiff(src Mat, value uint8) (Mat, error) {
	return p.unary(src, "absdiff", func(dst, s []uint8) { absDiffKernel(dst, s, value) })
}

// Divide computes src / divisor.
func (p *PoolBackend) Divide(src Mat, divisor float64) (Mat, error) {
	if divisor == 0 {
		return nil, fmt.Errorf("divide: zero divisor")
	}
	return p.unary(src, "divide", func(dst, s []uint8) { divideKernel(dst, s, divisor) })
}

// Multiply computes src * factor.
func (p *PoolBackend) Multiply(src Mat, factor float64) (Mat, error) {
	return p.unary(src, "multiply", func(dst, s []uint8) { multiplyKernel(dst, s, factor) })
}

// MultiplyPlanes computes a * b.
func (p *PoolBackend) MultiplyPlanes(a, b Mat) (Mat, error) {
	x, err := p.mat(a, 1, "multiply planes")
	if err != nil {
		return nil, err
	}
	y, err := p.mat(b, 1, "multiply planes")
	if err != nil {
		return nil, err
	}
	if err := checkSameSize(x, y, "multiply planes"); err != nil {
		return nil, err
	}
	dst := p.alloc(x.w, x.h, 1)
	p.rows(x.h, func(y0, y1 int) {
		lo, hi := y0*x.w, y1*x.w
		multiplyPlanesKernel(dst.mem[lo:hi], x.mem[lo:hi], y.mem[lo:hi])
	})
	return dst, nil
}

// Threshold binarizes src at cutoff.
func (p *PoolBackend) Threshold(src Mat, cutoff, maxValue uint8) (Mat, error) {
	return p.unary(src, "threshold", func(dst, s []uint8) { thresholdKernel(dst, s, cutoff, maxValue) })
}

// Download copies a single-channel Mat out of device memory.
func (p *PoolBackend) Download(src Mat) (*imaging.Plane, error) {
	s, err := p.mat(src, 1, "download")
	if err != nil {
		return nil, err
	}
	plane := imaging.NewPlane(s.w, s.h)
	copy(plane.Pix, s.mem)
	return plane, nil
}

// Release drops the device buffer. Later use of m fails.
func (*PoolBackend) Release(m Mat) {
	if pm, ok := m.(*poolMat); ok {
		pm.mem = nil
	}
}

// Close is a no-op.
func (*PoolBackend) Close() error { return nil }

func (p *PoolBackend) unary(src Mat, op string, kernel func(dst, src []uint8)) (Mat, error) {
	s, err := p.mat(src, 1, op)
	if err != nil {
		return nil, err
	}
	dst := p.alloc(s.w, s.h, 1)
	p.rows(s.h, func(y0, y1 int) {
		lo, hi := y0*s.w, y1*s.w
		kernel(dst.mem[lo:hi], s.mem[lo:hi])
	})
	return dst, nil
}

// rows runs fn over [0, height) split into bands, returning once every band is done.
// With one band per CPU the split is left to bild; any other worker count gets
// exactly that many bands.
func (p *PoolBackend) rows(height int, fn func(y0, y1 int)) {
	switch {
	case p.workers == 1 || height <= 1:
		fn(0, height)
	case p.workers == runtime.GOMAXPROCS(0):
		parallel.Line(height, fn)
	default:
		bands(height, min(p.workers, height), fn)
	}
}

// bands runs fn concurrently over n contiguous bands covering [0, height).
func bands(height, n int, fn func(y0, y1 int)) {
	var wg sync.WaitGroup
	wg.Add(n)
	for b := 0; b < n; b++ {
		y0, y1 := b*height/n, (b+1)*height/n
		go func() {
			defer wg.Done()
			fn(y0, y1)
		}()
	}
	wg.Wait()
}

func (*PoolBackend) alloc(w, h, c int) *poolMat {
	return &poolMat{w: w, h: h, c: c, mem: make([]uint8, w*h*c)}
}

func (*PoolBackend) mat(m Mat, channels int, op string) (*poolMat, error) {
	if err := checkChannels(m, channels, op); err != nil {
		return nil, err
	}
	pm, ok := m.(*poolMat)
	if !ok {
		return nil, fmt.Errorf("%s: mat %T does not belong to the pool backend", op, m)
	}
	if pm.mem == nil {
		return nil, fmt.Errorf("%s: %w", op, errReleased)
	}
	return pm, nil
}
