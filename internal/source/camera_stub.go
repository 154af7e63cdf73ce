//go:build !gocv

package source

import "fmt"

func openCamera(Options) (Source, error) {
	return nil, fmt.Errorf("camera: built without the gocv tag: %w", ErrUnavailable)
}
