//go:build !(gocv && cuda)

package backend

import "fmt"

func openCUDA() (Backend, error) {
	return nil, fmt.Errorf("built without the gocv and cuda tags: %w", ErrUnavailable)
}
