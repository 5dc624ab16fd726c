package detection

import (
	"image"

	"github.com/ironsheep/sheet-detect/internal/imaging"
)

// BlobSearch records the outcome of one foot search.
type BlobSearch struct {
	// Level is the Otsu threshold computed over the masked pixels.
	Level uint8 `json:"level"`

	// Contours is the number of contours examined.
	Contours int `json:"contours"`

	// Found reports whether a contour had an area inside the band.
	Found bool `json:"found"`

	// Area and Contour describe the first matching contour.
	Area    float64  `json:"area,omitempty"`
	Contour *Contour `json:"contour,omitempty"`

	// Binary and Edges are the intermediate rasters, kept for inspection.
	Binary *image.Gray `json:"-"`
	Edges  *image.Gray `json:"-"`
}

// InAreaBand reports whether area lies strictly between p.MinBlobArea and
// p.MaxBlobArea.
func InAreaBand(area float64, p Params) bool {
	return area > p.MinBlobArea && area < p.MaxBlobArea
}

// FindBlob searches the masked part of a smoothed intensity raster for a
// foot-sized object.
//
// The mask is applied to gray, the result is binarized at the Otsu level of
// the masked pixels (bright pixels become foreground), edges are extracted
// and the outer border of every edge group is traced. The search stops at
// the first border whose area is inside the area band.
func FindBlob(gray, mask *image.Gray, p Params) BlobSearch {
	level := imaging.OtsuLevel(gray, mask)
	binary := imaging.Binarize(imaging.ApplyMask(gray, mask), level)
	return searchEdges(binary, level, p)
}

// findDarkBlob is FindBlob with the polarity reversed: pixels at or below
// the Otsu level become foreground. Used inside a filled sheet region where
// the paper is the bright background.
func findDarkBlob(gray, mask *image.Gray, p Params) BlobSearch {
	level := imaging.OtsuLevel(gray, mask)
	binary := imaging.ApplyMask(imaging.BinarizeInverse(gray, level), mask)
	return searchEdges(binary, level, p)
}

func searchEdges(binary *image.Gray, level uint8, p Params) BlobSearch {
	edges := imaging.Canny(binary, p.CannyLow, p.CannyHigh)
	contours := FindContours(edges)

	res := BlobSearch{
		Level:    level,
		Contours: len(contours),
		Binary:   binary,
		Edges:    edges,
	}
	for i := range contours {
		if area := contours[i].Area(); InAreaBand(area, p) {
			res.Found = true
			res.Area = area
			res.Contour = &contours[i]
			break
		}
	}
	return res
}
