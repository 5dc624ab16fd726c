package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
)

// OtsuLevel returns the threshold that maximizes the between-class variance
// of the pixels of src selected by mask.
//
// Class 0 holds values <= level and class 1 values > level. Only pixels
// whose mask value is non-zero are counted, so a dark background outside the
// mask does not pull the level down. A nil mask selects every pixel. When
// several levels tie, the lowest wins. An empty selection returns 0.
func OtsuLevel(src, mask *image.Gray) uint8 {
	var hist [256]float64
	var total float64

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	for y := 0; y < h; y++ {
		off := src.PixOffset(src.Bounds().Min.X, src.Bounds().Min.Y+y)
		for x := 0; x < w; x++ {
			if mask != nil && mask.Pix[mask.PixOffset(mask.Bounds().Min.X+x, mask.Bounds().Min.Y+y)] == 0 {
				continue
			}
			hist[src.Pix[off+x]]++
			total++
		}
	}
	if total == 0 {
		return 0
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i) * n
	}

	var sumB, wB, best float64
	best = -1
	level := 0
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * hist[t]
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			level = t
		}
	}
	return uint8(level)
}

// Binarize returns a raster where pixels brighter than level are 255 and the
// rest are 0.
//
// The comparison is done on the raw intensity. bild's segment.Threshold ranks
// pixels by a float luminance that truncates some gray values one step down,
// which moves pixels across an exact level.
func Binarize(src *image.Gray, level uint8) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		off := src.PixOffset(src.Bounds().Min.X, src.Bounds().Min.Y+y)
		row := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := range row {
			if src.Pix[off+x] > level {
				row[x] = 255
			}
		}
	}
	return out
}

// BinarizeInverse returns a raster where pixels at or below level are 255
// and the rest are 0.
func BinarizeInverse(src *image.Gray, level uint8) *image.Gray {
	return redChannel(effect.Invert(Binarize(src, level)))
}

// ApplyMask keeps the pixels of src where mask is non-zero and zeroes the
// rest. src and mask must have the same size.
func ApplyMask(src, mask *image.Gray) *image.Gray {
	out := cloneGray(src)
	w, h := out.Bounds().Dx(), out.Bounds().Dy()
	for y := 0; y < h; y++ {
		moff := mask.PixOffset(mask.Bounds().Min.X, mask.Bounds().Min.Y+y)
		row := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := range row {
			if mask.Pix[moff+x] == 0 {
				row[x] = 0
			}
		}
	}
	return out
}
