// Package detection finds balloon-like objects in camera frames.
//
// A balloon here is a roughly circular region whose color is both strongly
// saturated and far in hue from a configurable target (cyan by default). Detection
// runs in four stages:
//
//  1. Segmentation (Segmenter): convert the BGR frame to hue, saturation and value
//     planes on the selected backend.
//  2. Scoring (Scorer): combine hue distance and saturation into a per-pixel
//     "balloonyness" score and threshold it into a binary mask.
//  3. Contour Extraction (FindExternalContours): trace the outer border of every
//     foreground region of the mask that is not nested inside another region.
//  4. Circle Fitting (FitCircle, Accept): compute each contour's minimal enclosing
//     circle and keep contours that fill enough of it.
//
// Stages 1 and 2 operate on backend.Mat buffers and may run on an accelerator.
// Stages 3 and 4 always run on the host; the mask must be downloaded first.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// Contour points are pixel centers. Circle centers and radii are sub-pixel.
//
// # Circularity
//
// A contour is accepted when its polygon area is at least ratio × πr², where r is
// the radius of its minimal enclosing circle. A filled disk scores close to 1, a
// square about 0.64 and a thin line close to 0. The default ratio is 0.65.
//
// # Limitations
//
//   - Overlapping balloons merge into one region and usually fail the circularity test
//   - Regions touching the frame edge are clipped, which lowers their circularity
//   - Holes inside a region are ignored; only the outer border is traced
package detection
