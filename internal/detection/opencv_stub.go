//go:build !gocv

package detection

import "image"

// OpenCVAvailable reports whether this binary was built with OpenCV support.
const OpenCVAvailable = false

// DetectOpenCV always fails with ErrOpenCVUnavailable in binaries built
// without the gocv build tag.
func DetectOpenCV(img image.Image, p Params) (Result, error) {
	return Result{}, ErrOpenCVUnavailable
}
