package imaging

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// Capture resolutions understood by the pipeline configuration.
var (
	ResolutionQVGA   = image.Pt(320, 240)
	ResolutionVGA    = image.Pt(640, 480)
	ResolutionSXGA   = image.Pt(1280, 960)
	ResolutionFullHD = image.Pt(1920, 1080)
)

// SupportedResolutions lists the capture resolutions in ascending order.
var SupportedResolutions = []image.Point{ResolutionQVGA, ResolutionVGA, ResolutionSXGA, ResolutionFullHD}

// ParseResolution parses "WIDTHxHEIGHT" (e.g. "1280x960").
//
// Only the sizes in SupportedResolutions are accepted.
func ParseResolution(s string) (image.Point, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return image.Point{}, fmt.Errorf("invalid resolution %q: want WIDTHxHEIGHT", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return image.Point{}, fmt.Errorf("invalid resolution width %q: %w", w, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return image.Point{}, fmt.Errorf("invalid resolution height %q: %w", h, err)
	}

	p := image.Pt(width, height)
	for _, r := range SupportedResolutions {
		if r == p {
			return p, nil
		}
	}
	return image.Point{}, fmt.Errorf("unsupported resolution %dx%d", width, height)
}

// FormatResolution renders a size as "WIDTHxHEIGHT".
func FormatResolution(p image.Point) string {
	return fmt.Sprintf("%dx%d", p.X, p.Y)
}

// NearestResolution returns the entry of supported whose pixel count is closest to
// want. Ties go to the smaller resolution. If supported is empty, want is returned.
func NearestResolution(want image.Point, supported []image.Point) image.Point {
	if len(supported) == 0 {
		return want
	}
	best := supported[0]
	bestDiff := pixelDiff(want, best)
	for _, r := range supported[1:] {
		d := pixelDiff(want, r)
		if d < bestDiff || (d == bestDiff && r.X*r.Y < best.X*best.Y) {
			best, bestDiff = r, d
		}
	}
	return best
}

func pixelDiff(a, b image.Point) int {
	d := a.X*a.Y - b.X*b.Y
	if d < 0 {
		return -d
	}
	return d
}

// FitFrame resizes img to exactly size. Images already at that size are returned
// unchanged.
//
// Aspect ratio is not preserved: a source delivering a different resolution is
// stretched to the negotiated capture size, the way a camera driver scales its
// sensor output.
func FitFrame(img image.Image, size image.Point) image.Image {
	b := img.Bounds()
	if b.Dx() == size.X && b.Dy() == size.Y {
		return img
	}
	if size.X <= 0 || size.Y <= 0 {
		return img
	}
	return imaging.Resize(img, size.X, size.Y, imaging.Linear)
}
