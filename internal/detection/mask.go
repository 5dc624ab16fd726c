package detection

import (
	"image"

	"github.com/ironsheep/sheet-detect/internal/imaging"
)

// BuildBandMask draws every segment onto a blank width x height mask with
// p.BandThickness wide strokes and dilates the result p.DilateIterations
// times with a p.DilateSize square element.
//
// The result is a band around the detected lines, not a filled polygon:
// the interior of a large sheet stays black.
func BuildBandMask(width, height int, segments []Segment, p Params) *image.Gray {
	strokes := imaging.StrokeSegments(width, height, imageSegments(segments), p.BandThickness)
	return imaging.Dilate(strokes, p.DilateSize, p.DilateIterations)
}

// BuildQuadMask fills the quadrilateral q onto a blank width x height mask
// and pulls its border in by erosion, so the sheet outline itself does not
// leak into the interior search.
func BuildQuadMask(width, height int, q []Point, p Params) *image.Gray {
	fill := imaging.FillPolygon(width, height, imagePoints(q))
	return imaging.Erode(fill, p.DilateSize)
}
