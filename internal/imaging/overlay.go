package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Overlay colors used for the annotated output stream.
var (
	ContourColor  = MustParseColor("#0000FF") // raw contours
	FittedColor   = MustParseColor("#FFFF00") // every fitted circle
	AcceptedColor = MustParseColor("#00FF00") // circles passing the circularity filter
	LabelColor    = MustParseColor("#FFFFFF")

	// LabelBacking darkens the pixels behind a label.
	LabelBacking = color.NRGBA{0, 0, 0, 180}
)

// Overlay draws detection annotations on a copy of a frame.
type Overlay struct {
	img *image.NRGBA
}

// NewOverlay starts an overlay on a copy of f. The frame itself is not modified.
func NewOverlay(f *Frame) *Overlay {
	return &Overlay{img: f.Image()}
}

// Image returns the annotated image.
func (o *Overlay) Image() *image.NRGBA {
	return o.img
}

// Points plots each point in c. Points outside the image are skipped.
func (o *Overlay) Points(points []image.Point, c color.Color) {
	for _, p := range points {
		o.set(p.X, p.Y, c)
	}
}

// Circle draws a circle outline centered at (cx, cy). Thickness below 1 is treated
// as 1; thicker outlines grow inward and outward around the radius.
func (o *Overlay) Circle(cx, cy, radius float64, c color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	x0 := int(math.Round(cx))
	y0 := int(math.Round(cy))
	r := int(math.Round(radius))

	inner := r - (thickness-1)/2
	for rr := inner; rr < inner+thickness; rr++ {
		if rr < 0 {
			continue
		}
		o.midpointCircle(x0, y0, rr, c)
	}
}

// midpointCircle rasterizes a one-pixel circle outline.
func (o *Overlay) midpointCircle(cx, cy, radius int, c color.Color) {
	x := radius
	y := 0
	err := 0

	for x >= y {
		o.set(cx+x, cy+y, c)
		o.set(cx+y, cy+x, c)
		o.set(cx-y, cy+x, c)
		o.set(cx-x, cy+y, c)
		o.set(cx-x, cy-y, c)
		o.set(cx-y, cy-x, c)
		o.set(cx+y, cy-x, c)
		o.set(cx+x, cy-y, c)

		if err <= 0 {
			y++
			err += 2*y + 1
		}
		if err > 0 {
			x--
			err -= 2*x + 1
		}
	}
}

// Label draws text with its top-left corner at (x, y) on a dark backing box.
func (o *Overlay) Label(x, y int, text string, fg color.Color) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	box := image.Rect(x-1, y-1, x+width+1, y+height+1).Intersect(o.img.Rect)
	draw.Draw(o.img, box, image.NewUniform(LabelBacking), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  o.img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

func (o *Overlay) set(x, y int, c color.Color) {
	if !image.Pt(x, y).In(o.img.Rect) {
		return
	}
	o.img.Set(x, y, c)
}
