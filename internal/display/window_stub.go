//go:build !gocv

package display

import "fmt"

func openWindow(Options) (Sink, error) {
	return nil, fmt.Errorf("window: built without the gocv tag: %w", ErrUnavailable)
}
