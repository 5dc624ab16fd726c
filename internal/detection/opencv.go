//go:build gocv

package detection

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

// OpenCVAvailable reports whether this binary was built with OpenCV support.
const OpenCVAvailable = true

// DetectOpenCV runs the line-cluster pipeline through OpenCV.
//
// Line voting, morphology, thresholding and contour tracing are done by
// OpenCV; corner clustering and the area band are shared with the Go
// pipeline. Contours are retrieved with RETR_EXTERNAL, so a blob fully
// enclosed by another contour is not examined. The quad strategy is not
// available on this backend.
func DetectOpenCV(img image.Image, p Params) (Result, error) {
	if p.Strategy == StrategyQuad {
		return Result{}, fmt.Errorf("strategy %q is not supported by the opencv backend", p.Strategy)
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return Result{}, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{5, 5}, 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, float32(p.CannyLow), float32(p.CannyHigh))

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(edges, &lines, 1, math.Pi/180, p.HoughThreshold,
		float32(p.MinLineLength), float32(p.MaxLineGap))

	if lines.Rows() < p.MinSegments {
		return Result{}, nil
	}

	segments := make([]Segment, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVeciAt(i, 0)
		segments = append(segments, Segment{
			P1: Point{X: int(v[0]), Y: int(v[1])},
			P2: Point{X: int(v[2]), Y: int(v[3])},
		})
	}

	labels := ClusterPoints(Endpoints(segments), p.ClusterEps, p.ClusterMinSamples)
	res := Result{A4Detected: CornerCount(labels) >= p.MinCorners}

	mask := gocv.Zeros(gray.Rows(), gray.Cols(), gocv.MatTypeCV8U)
	defer mask.Close()
	white := color.RGBA{255, 255, 255, 0}
	for _, s := range segments {
		gocv.Line(&mask, s.P1.image(), s.P2.image(), white, int(p.BandThickness))
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{p.DilateSize, p.DilateSize})
	defer kernel.Close()
	for i := 0; i < p.DilateIterations; i++ {
		gocv.Dilate(mask, &mask, kernel)
	}

	masked := gocv.NewMat()
	defer masked.Close()
	gocv.BitwiseAndWithMask(blurred, blurred, &masked, mask)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(masked, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	blobEdges := gocv.NewMat()
	defer blobEdges.Close()
	gocv.Canny(binary, &blobEdges, float32(p.CannyLow), float32(p.CannyHigh))

	contours := gocv.FindContours(blobEdges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	for i := 0; i < contours.Size(); i++ {
		if InAreaBand(gocv.ContourArea(contours.At(i)), p) {
			res.FootOnA4 = true
			break
		}
	}

	return res, nil
}
