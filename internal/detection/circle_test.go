package detection

import (
	"math"
	"math/rand"
	"testing"
)

func TestFitCircle_Simple(t *testing.T) {
	tests := []struct {
		name    string
		contour Contour
		want    Circle
	}{
		{"empty", nil, Circle{}},
		{"single point", Contour{{5, 7}}, Circle{Center: PointF{5, 7}}},
		{"pair", Contour{{0, 0}, {4, 0}}, Circle{Center: PointF{2, 0}, Radius: 2}},
		{"collinear", Contour{{0, 0}, {2, 0}, {6, 0}}, Circle{Center: PointF{3, 0}, Radius: 3}},
		{"right triangle", Contour{{0, 0}, {6, 0}, {0, 8}}, Circle{Center: PointF{3, 4}, Radius: 5}},
		{"square", Contour{{0, 0}, {2, 0}, {2, 2}, {0, 2}}, Circle{Center: PointF{1, 1}, Radius: math.Sqrt2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitCircle(tt.contour)
			if math.Abs(got.Center.X-tt.want.Center.X) > 1e-9 ||
				math.Abs(got.Center.Y-tt.want.Center.Y) > 1e-9 ||
				math.Abs(got.Radius-tt.want.Radius) > 1e-9 {
				t.Errorf("FitCircle() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFitCircle_ContainsAllPoints(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := 3 + rng.Intn(200)
		c := make(Contour, n)
		for i := range c {
			c[i] = Point{rng.Intn(500), rng.Intn(300)}
		}

		circle := FitCircle(c)
		for _, p := range c {
			if !circle.Contains(PointF{float64(p.X), float64(p.Y)}) {
				t.Fatalf("trial %d: %+v does not contain %v", trial, circle, p)
			}
		}

		// Minimality: the circle touches at least one input point.
		touching := false
		for _, p := range c {
			d := math.Hypot(float64(p.X)-circle.Center.X, float64(p.Y)-circle.Center.Y)
			if math.Abs(d-circle.Radius) < 1e-6 {
				touching = true
				break
			}
		}
		if !touching {
			t.Fatalf("trial %d: %+v touches no input point", trial, circle)
		}
	}
}

func TestFitCircle_Deterministic(t *testing.T) {
	c := FindExternalContours(diskMask(100, 100, 50, 50, 20))[0]
	if a, b := FitCircle(c), FitCircle(c); a != b {
		t.Errorf("FitCircle() not deterministic: %+v vs %+v", a, b)
	}
}

func TestPolygonArea(t *testing.T) {
	tests := []struct {
		name    string
		contour Contour
		want    float64
	}{
		{"empty", nil, 0},
		{"two points", Contour{{0, 0}, {3, 3}}, 0},
		{"triangle", Contour{{0, 0}, {4, 0}, {0, 3}}, 6},
		{"square counterclockwise", Contour{{0, 0}, {0, 2}, {2, 2}, {2, 0}}, 4},
		{"square clockwise", Contour{{0, 0}, {2, 0}, {2, 2}, {0, 2}}, 4},
		{"line there and back", Contour{{0, 0}, {1, 0}, {2, 0}, {1, 0}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PolygonArea(tt.contour); got != tt.want {
				t.Errorf("PolygonArea() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccept(t *testing.T) {
	disk := FindExternalContours(diskMask(200, 200, 100, 100, 50))[0]
	line := FindExternalContours(maskFromRows("##############################"))[0]
	square := FindExternalContours(maskFromRows(
		"..........",
		".########.",
		".########.",
		".########.",
		".########.",
		".########.",
		".########.",
		".########.",
		".########.",
		"..........",
	))[0]

	tests := []struct {
		name    string
		contour Contour
		circle  Circle
		ratio   float64
		want    bool
	}{
		{"filled disk", disk, FitCircle(disk), DefaultCircularity, true},
		{"thin line", line, FitCircle(line), DefaultCircularity, false},
		{"square below default", square, FitCircle(square), DefaultCircularity, false},
		{"square with loose ratio", square, FitCircle(square), 0.5, true},
		{"zero ratio accepts any area", line, FitCircle(line), 0, true},
		{"two points", Contour{{0, 0}, {5, 0}}, Circle{Center: PointF{2.5, 0}, Radius: 2.5}, 0, false},
		{"zero radius", Contour{{0, 0}, {0, 0}, {0, 0}}, Circle{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Accept(tt.contour, tt.circle, tt.ratio); got != tt.want {
				t.Errorf("Accept() = %v, want %v (area %.1f, circle area %.1f)",
					got, tt.want, PolygonArea(tt.contour), tt.circle.Area())
			}
		})
	}
}

func TestDiskRoundTrip(t *testing.T) {
	tests := []struct {
		cx, cy, r int
	}{
		{100, 80, 40},
		{30, 30, 12},
		{150, 60, 55},
	}

	for _, tt := range tests {
		contours := FindExternalContours(diskMask(220, 160, tt.cx, tt.cy, tt.r))
		if len(contours) != 1 {
			t.Fatalf("disk %+v: %d contours, want 1", tt, len(contours))
		}

		c := FitCircle(contours[0])
		if math.Abs(c.Center.X-float64(tt.cx)) > 2 || math.Abs(c.Center.Y-float64(tt.cy)) > 2 {
			t.Errorf("disk %+v: center %+v", tt, c.Center)
		}
		if math.Abs(c.Radius-float64(tt.r)) > 2 {
			t.Errorf("disk %+v: radius %.2f", tt, c.Radius)
		}
		if !Accept(contours[0], c, DefaultCircularity) {
			t.Errorf("disk %+v rejected", tt)
		}
	}
}

func TestEvaluate(t *testing.T) {
	mask := diskMask(200, 100, 50, 50, 30)
	for x := 120; x < 190; x++ {
		mask.Set(x, 50, MaskOn)
	}

	got := Evaluate(FindExternalContours(mask), DefaultCircularity)
	if len(got) != 2 {
		t.Fatalf("Evaluate() returned %d candidates, want 2", len(got))
	}
	if !got[0].Accepted {
		t.Error("disk candidate rejected")
	}
	if got[1].Accepted {
		t.Error("line candidate accepted")
	}
	if got[0].Area <= 0 {
		t.Errorf("disk area = %v", got[0].Area)
	}
}
