package pipeline

import (
	"fmt"
	"image"

	"github.com/ironsheep/balloon-vision/internal/backend"
	"github.com/ironsheep/balloon-vision/internal/detection"
	"github.com/ironsheep/balloon-vision/internal/display"
	"github.com/ironsheep/balloon-vision/internal/imaging"
)

// streams holds images rendered during processing for the display stage.
type streams struct {
	overlay image.Image
}

// drawOverlay annotates a copy of f. Accepted circles are always drawn; raw contours
// and every fitted circle only with DrawDebugContours.
func (p *Pipeline) drawOverlay(f *imaging.Frame, r *Result) image.Image {
	o := imaging.NewOverlay(f)

	if p.opts.DrawDebugContours {
		for _, c := range r.Contours {
			o.Points(c.Points(), imaging.ContourColor)
		}
		for _, c := range r.Candidates {
			o.Circle(c.Circle.Center.X, c.Circle.Center.Y, c.Circle.Radius, imaging.FittedColor, 1)
		}
	}
	for _, c := range r.Accepted {
		o.Circle(c.Circle.Center.X, c.Circle.Center.Y, c.Circle.Radius, imaging.AcceptedColor, 2)
	}

	o.Label(4, 4, fmt.Sprintf("frame %d  balloons %d", r.Seq, len(r.Accepted)), imaging.LabelColor)
	return o.Image()
}

// show pushes every enabled stream to the sink in a fixed order.
func (p *Pipeline) show(f *imaging.Frame, planes detection.HSVMats, scores *detection.ScoreMaps, mask *imaging.Plane, s streams) error {
	if p.opts.ShowRawFeed {
		if err := p.push(display.StreamFeed, f.Image()); err != nil {
			return err
		}
	}

	if p.opts.ShowDiagnosticPlanes {
		mats := []struct {
			label string
			mat   backend.Mat
		}{
			{display.StreamHueRed, scores.HueRed},
			{display.StreamHue, planes.Hue},
			{display.StreamSat, planes.Sat},
			{display.StreamVal, planes.Val},
			{display.StreamBalloonyness, scores.Balloonyness},
		}
		for _, m := range mats {
			plane, err := p.backend.Download(m.mat)
			if err != nil {
				return fmt.Errorf("download %s: %w", m.label, err)
			}
			if err := p.push(m.label, plane.Gray()); err != nil {
				return err
			}
		}
		if err := p.push(display.StreamThreshold, mask.Gray()); err != nil {
			return err
		}
	}

	if s.overlay != nil {
		if err := p.push(display.StreamOverlay, s.overlay); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) push(label string, img image.Image) error {
	if err := p.sink.Show(label, img); err != nil {
		return fmt.Errorf("display %s: %w", label, err)
	}
	return nil
}
