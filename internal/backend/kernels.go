package backend

import (
	"math"

	"github.com/ironsheep/balloon-vision/internal/imaging"
)

// saturate rounds v to the nearest integer (halves to even) and clamps it to 0-255.
func saturate(v float64) uint8 {
	r := math.RoundToEven(v)
	if r <= 0 {
		return 0
	}
	if r >= 255 {
		return 255
	}
	return uint8(r)
}

// The kernels below work on a contiguous range of pixels so the same code serves
// whole buffers on the host and row bands on the pool device.

func absDiffKernel(dst, src []uint8, value uint8) {
	for i, v := range src {
		if v > value {
			dst[i] = v - value
		} else {
			dst[i] = value - v
		}
	}
}

func divideKernel(dst, src []uint8, divisor float64) {
	for i, v := range src {
		dst[i] = saturate(float64(v) / divisor)
	}
}

func multiplyKernel(dst, src []uint8, factor float64) {
	for i, v := range src {
		dst[i] = saturate(float64(v) * factor)
	}
}

func multiplyPlanesKernel(dst, a, b []uint8) {
	for i := range dst {
		p := int(a[i]) * int(b[i])
		if p > 255 {
			p = 255
		}
		dst[i] = uint8(p)
	}
}

func thresholdKernel(dst, src []uint8, cutoff, maxValue uint8) {
	for i, v := range src {
		if v >= cutoff {
			dst[i] = maxValue
		} else {
			dst[i] = 0
		}
	}
}

// splitKernel deinterleaves n 3-channel pixels.
func splitKernel(c0, c1, c2, src []uint8) {
	for i, j := 0, 0; i < len(c0); i, j = i+1, j+3 {
		c0[i] = src[j]
		c1[i] = src[j+1]
		c2[i] = src[j+2]
	}
}

// hsvFloatKernel converts BGR pixels with the floating point reference formula.
func hsvFloatKernel(dst, src []uint8) {
	for i := 0; i+2 < len(src); i += 3 {
		hsv := imaging.BGRToHSV(src[i], src[i+1], src[i+2])
		dst[i] = hsv.H
		dst[i+1] = hsv.S
		dst[i+2] = hsv.V
	}
}

const hsvShift = 12

// Fixed point reciprocal tables for the integer HSV conversion.
var (
	satDivTable [256]int // (255 << 12) / v
	hueDivTable [256]int // (180 << 12) / (6 * diff)
)

func init() {
	for i := 1; i < 256; i++ {
		satDivTable[i] = int(math.Round(float64(255<<hsvShift) / float64(i)))
		hueDivTable[i] = int(math.Round(float64(180<<hsvShift) / (6 * float64(i))))
	}
}

// hsvFixedKernel converts BGR pixels with 12-bit fixed point arithmetic and no
// floating point in the per-pixel loop.
func hsvFixedKernel(dst, src []uint8) {
	const half = 1 << (hsvShift - 1)
	for i := 0; i+2 < len(src); i += 3 {
		b, g, r := int(src[i]), int(src[i+1]), int(src[i+2])

		v := max(b, g, r)
		diff := v - min(b, g, r)

		s := (diff*satDivTable[v] + half) >> hsvShift

		var h int
		switch v {
		case r:
			h = g - b
		case g:
			h = b - r + 2*diff
		default:
			h = r - g + 4*diff
		}
		h = (h*hueDivTable[diff] + half) >> hsvShift
		if h < 0 {
			h += 180
		}

		dst[i] = uint8(h)
		dst[i+1] = uint8(s)
		dst[i+2] = uint8(v)
	}
}
