package detection

import (
	"math"
	"math/rand"
)

// DefaultCircularity is the default minimum ratio of contour area to the area of its
// enclosing circle.
const DefaultCircularity = 0.65

// containEpsilon is the relative slack allowed when testing whether a point lies
// inside a circle.
const containEpsilon = 1e-9

// PointF is a point with sub-pixel coordinates.
type PointF struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Circle is a circle in pixel space.
type Circle struct {
	// Center is the circle center.
	Center PointF `json:"center"`

	// Radius is the radius in pixels.
	Radius float64 `json:"radius"`
}

// Contains reports whether p lies inside or on c, within a small relative tolerance.
func (c Circle) Contains(p PointF) bool {
	return math.Hypot(p.X-c.Center.X, p.Y-c.Center.Y) <= c.Radius+containEpsilon*math.Max(1, c.Radius)
}

// Area returns pi * r^2.
func (c Circle) Area() float64 {
	return math.Pi * c.Radius * c.Radius
}

// Candidate is one contour evaluated as a possible balloon.
type Candidate struct {
	// Contour is the raw outer border.
	Contour Contour `json:"-"`

	// Circle is the minimal enclosing circle of Contour.
	Circle Circle `json:"circle"`

	// Area is the polygon area enclosed by Contour.
	Area float64 `json:"area"`

	// Accepted is true when Area >= ratio * Circle.Area().
	Accepted bool `json:"accepted"`
}

// FitCircle returns the smallest circle containing every point of the contour.
//
// # Algorithm
//
// Welzl's randomized incremental algorithm: points are visited in a shuffled order
// and the circle is rebuilt from one, two or three boundary points whenever a point
// falls outside. Expected time is linear in the number of points. The shuffle is
// seeded deterministically so equal input yields the same circle.
//
// A contour with a single point yields a zero-radius circle at that point. An empty
// contour yields the zero Circle.
func FitCircle(contour Contour) Circle {
	if len(contour) == 0 {
		return Circle{}
	}

	pts := make([]PointF, len(contour))
	for i, p := range contour {
		pts[i] = PointF{float64(p.X), float64(p.Y)}
	}
	rng := rand.New(rand.NewSource(int64(len(pts))))
	rng.Shuffle(len(pts), func(i, j int) { pts[i], pts[j] = pts[j], pts[i] })

	c := Circle{Center: pts[0]}
	for i := 1; i < len(pts); i++ {
		if c.Contains(pts[i]) {
			continue
		}
		c = Circle{Center: pts[i]}
		for j := 0; j < i; j++ {
			if c.Contains(pts[j]) {
				continue
			}
			c = circleFrom2(pts[i], pts[j])
			for k := 0; k < j; k++ {
				if c.Contains(pts[k]) {
					continue
				}
				c = circleFrom3(pts[i], pts[j], pts[k])
			}
		}
	}

	return c
}

// circleFrom2 returns the circle with a and b as diameter endpoints.
func circleFrom2(a, b PointF) Circle {
	center := PointF{(a.X + b.X) / 2, (a.Y + b.Y) / 2}
	return Circle{Center: center, Radius: math.Hypot(a.X-center.X, a.Y-center.Y)}
}

// circleFrom3 returns the circumcircle of a, b and c. Collinear points fall back to
// the circle on the farthest pair.
func circleFrom3(a, b, c PointF) Circle {
	bx, by := b.X-a.X, b.Y-a.Y
	cx, cy := c.X-a.X, c.Y-a.Y
	d := 2 * (bx*cy - by*cx)
	if math.Abs(d) < 1e-12 {
		best := circleFrom2(a, b)
		for _, cand := range []Circle{circleFrom2(a, c), circleFrom2(b, c)} {
			if cand.Radius > best.Radius {
				best = cand
			}
		}
		return best
	}

	b2 := bx*bx + by*by
	c2 := cx*cx + cy*cy
	ux := (cy*b2 - by*c2) / d
	uy := (bx*c2 - cx*b2) / d
	return Circle{
		Center: PointF{a.X + ux, a.Y + uy},
		Radius: math.Hypot(ux, uy),
	}
}

// PolygonArea returns the absolute area enclosed by the contour, treating its
// points as polygon vertices (shoelace formula). Fewer than three points enclose no
// area.
func PolygonArea(contour Contour) float64 {
	if len(contour) < 3 {
		return 0
	}
	var sum int
	prev := contour[len(contour)-1]
	for _, p := range contour {
		sum += prev.X*p.Y - p.X*prev.Y
		prev = p
	}
	return math.Abs(float64(sum)) / 2
}

// Accept reports whether the contour fills enough of its enclosing circle to count
// as a balloon: PolygonArea(contour) >= ratio * pi * r^2.
//
// Contours with fewer than three points and circles with a non-positive radius are
// always rejected.
func Accept(contour Contour, circle Circle, ratio float64) bool {
	if len(contour) < 3 || circle.Radius <= 0 {
		return false
	}
	return PolygonArea(contour) >= ratio*circle.Area()
}

// Evaluate fits a circle to every contour and applies Accept. The result has one
// candidate per contour in the same order.
func Evaluate(contours []Contour, ratio float64) []Candidate {
	out := make([]Candidate, 0, len(contours))
	for _, c := range contours {
		circle := FitCircle(c)
		out = append(out, Candidate{
			Contour:  c,
			Circle:   circle,
			Area:     PolygonArea(c),
			Accepted: Accept(c, circle, ratio),
		})
	}
	return out
}
