package detection

import (
	"image"

	"github.com/ironsheep/balloon-vision/internal/imaging"
)

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// Image returns p as an image.Point.
func (p Point) Image() image.Point {
	return image.Pt(p.X, p.Y)
}

// Contour is the closed, ordered outer border of one foreground region. Every border
// pixel is kept; consecutive points are 8-neighbors and the last point connects back
// to the first.
type Contour []Point

// Points returns the contour as image points for drawing.
func (c Contour) Points() []image.Point {
	out := make([]image.Point, len(c))
	for i, p := range c {
		out[i] = p.Image()
	}
	return out
}

// Neighbor offsets in counterclockwise order as seen on screen (y grows downward),
// starting east.
var ring = [8]Point{
	{1, 0},   // E
	{1, -1},  // NE
	{0, -1},  // N
	{-1, -1}, // NW
	{-1, 0},  // W
	{-1, 1},  // SW
	{0, 1},   // S
	{1, 1},   // SE
}

const west = 4

// FindExternalContours returns the outer border of every 8-connected foreground
// region of mask that is not enclosed by another region. Any nonzero pixel is
// foreground.
//
// # Algorithm
//
//  1. Background Fill: Flood the background (4-connected) inward from the image
//     border. Everything outside the image counts as background.
//  2. Labeling: Group foreground pixels into 8-connected components.
//  3. Selection: A component is external if one of its pixels lies on the image
//     border or touches the flooded background. Components sitting inside a hole of
//     another component are skipped.
//  4. Border Following: Walk around the outer edge of each external component,
//     starting at its first pixel in raster order (Suzuki-Abe border following).
//
// The result is ordered by the raster position of each contour's first pixel, but
// callers should not depend on that order. A mask with no foreground returns an
// empty, non-nil slice. Holes inside a region do not produce contours.
func FindExternalContours(mask *imaging.Plane) []Contour {
	contours := make([]Contour, 0)
	if mask == nil || mask.Width <= 0 || mask.Height <= 0 {
		return contours
	}

	w, h := mask.Width, mask.Height
	fg := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && mask.Pix[y*w+x] != 0
	}

	outside := floodBackground(mask)
	labels := make([]int32, w*h)
	var next int32

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !fg(x, y) || labels[y*w+x] != 0 {
				continue
			}
			next++
			if external := labelComponent(mask, labels, outside, x, y, next); !external {
				continue
			}
			contours = append(contours, traceBorder(fg, Point{x, y}, w*h))
		}
	}

	return contours
}

// floodBackground marks every background pixel 4-connected to the image border.
func floodBackground(mask *imaging.Plane) []bool {
	w, h := mask.Width, mask.Height
	outside := make([]bool, w*h)
	stack := make([]int, 0, 2*(w+h))

	push := func(x, y int) {
		if x < 0 || y < 0 || x >= w || y >= h {
			return
		}
		i := y*w + x
		if outside[i] || mask.Pix[i] != 0 {
			return
		}
		outside[i] = true
		stack = append(stack, i)
	}

	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		push(x+1, y)
		push(x-1, y)
		push(x, y+1)
		push(x, y-1)
	}

	return outside
}

// labelComponent assigns label to the 8-connected component containing (x0, y0) and
// reports whether the component is external.
func labelComponent(mask *imaging.Plane, labels []int32, outside []bool, x0, y0 int, label int32) bool {
	w, h := mask.Width, mask.Height
	external := false

	stack := []int{y0*w + x0}
	labels[y0*w+x0] = label

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w

		if x == 0 || y == 0 || x == w-1 || y == h-1 {
			external = true
		}

		for _, d := range ring {
			nx, ny := x+d.X, y+d.Y
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			j := ny*w + nx
			if mask.Pix[j] == 0 {
				// Only 4-neighbors separate a region from the outer background.
				if (d.X == 0 || d.Y == 0) && outside[j] {
					external = true
				}
				continue
			}
			if labels[j] == 0 {
				labels[j] = label
				stack = append(stack, j)
			}
		}
	}

	return external
}

// traceBorder follows the outer border of the region whose first raster pixel is
// start. Its west neighbor is background by construction.
//
// limit bounds the number of steps; a border never visits more than four times the
// number of pixels in the image.
func traceBorder(fg func(x, y int) bool, start Point, limit int) Contour {
	at := func(p Point, dir int) Point {
		d := ring[dir&7]
		return Point{p.X + d.X, p.Y + d.Y}
	}

	// Find the first foreground neighbor clockwise from west.
	first := -1
	for k := 0; k < 8; k++ {
		dir := (west - k + 8) & 7
		if q := at(start, dir); fg(q.X, q.Y) {
			first = dir
			break
		}
	}
	if first < 0 {
		return Contour{start}
	}

	contour := Contour{start}
	i1 := at(start, first)
	prev := i1
	cur := start

	for steps := 0; steps < 4*limit+8; steps++ {
		// Direction from cur to prev, then search counterclockwise after it.
		back := direction(cur, prev)
		var nextPt Point
		for k := 1; k <= 8; k++ {
			if q := at(cur, back+k); fg(q.X, q.Y) {
				nextPt = q
				break
			}
		}
		if nextPt == start && cur == i1 {
			break
		}
		contour = append(contour, nextPt)
		prev, cur = cur, nextPt
	}

	return contour
}

// direction returns the ring index of the offset from p to q, which must be
// 8-neighbors.
func direction(p, q Point) int {
	d := Point{q.X - p.X, q.Y - p.Y}
	for i, r := range ring {
		if r == d {
			return i
		}
	}
	return 0
}
