//go:build gocv

package source

import (
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/ironsheep/balloon-vision/internal/imaging"
	"github.com/ironsheep/balloon-vision/internal/timing"
)

// videoCapture grabs frames through an OpenCV VideoCapture.
type videoCapture struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
}

func (v *videoCapture) Grab() ([]byte, int, int, bool) {
	if ok := v.capture.Read(&v.mat); !ok || v.mat.Empty() {
		return nil, 0, 0, false
	}
	return append([]byte(nil), v.mat.ToBytes()...), v.mat.Cols(), v.mat.Rows(), true
}

func (v *videoCapture) Opened() bool {
	return v.capture.IsOpened()
}

func (v *videoCapture) Close() error {
	v.mat.Close()
	return v.capture.Close()
}

func openCamera(opts Options) (Source, error) {
	return NewCamera(opts.Device, opts.Size, opts.Clock, opts.Logger)
}

// NewCamera opens device and requests the supported resolution nearest size. The
// device may pick another mode; Size reports the one it delivers.
func NewCamera(device int, size image.Point, clock timing.Clock, logger *slog.Logger) (*Camera, error) {
	if logger == nil {
		logger = slog.Default()
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", device, err)
	}

	want := negotiate(size)
	capture.Set(gocv.VideoCaptureFrameWidth, float64(want.X))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(want.Y))

	got := image.Pt(int(capture.Get(gocv.VideoCaptureFrameWidth)), int(capture.Get(gocv.VideoCaptureFrameHeight)))
	if got != want {
		logger.Warn("camera substituted resolution",
			"requested", imaging.FormatResolution(want), "actual", imaging.FormatResolution(got))
	}

	return newCamera(&videoCapture{capture: capture, mat: gocv.NewMat()}, got, clock, logger), nil
}
