package imaging

import (
	"image"
	"math"

	"golang.org/x/image/vector"
)

// StrokeSegments draws every segment as a filled stroke of the given width
// onto a new black raster of size w x h and returns it. Strokes have square
// caps that extend half the width past each end point. Pixels covered by at
// least half of their area are set to 255.
//
// Each segment is given as its two end points in pixel coordinates; the
// stroke is centered on the pixel centers.
func StrokeSegments(w, h int, segments [][2]image.Point, width float64) *image.Gray {
	z := vector.NewRasterizer(w, h)
	half := float32(width / 2)

	for _, s := range segments {
		strokeSegment(z, s, half)
	}

	return rasterize(z, w, h)
}

// FillPolygon fills the closed polygon through pts onto a new black raster
// of size w x h. Vertices are pixel coordinates.
func FillPolygon(w, h int, pts []image.Point) *image.Gray {
	z := vector.NewRasterizer(w, h)
	if len(pts) >= 3 {
		z.MoveTo(float32(pts[0].X)+0.5, float32(pts[0].Y)+0.5)
		for _, p := range pts[1:] {
			z.LineTo(float32(p.X)+0.5, float32(p.Y)+0.5)
		}
		z.ClosePath()
	}
	return rasterize(z, w, h)
}

// strokeSegment adds the outline of one square-capped stroke to z. Every
// outline has the same winding, so overlapping strokes union cleanly.
func strokeSegment(z *vector.Rasterizer, s [2]image.Point, half float32) {
	ax, ay := float32(s[0].X)+0.5, float32(s[0].Y)+0.5
	bx, by := float32(s[1].X)+0.5, float32(s[1].Y)+0.5

	dx, dy := bx-ax, by-ay
	n := float32(math.Hypot(float64(dx), float64(dy)))
	ux, uy := float32(1), float32(0)
	if n > 0 {
		ux, uy = dx/n, dy/n
	}

	ax, ay = ax-ux*half, ay-uy*half
	bx, by = bx+ux*half, by+uy*half
	nx, ny := -uy*half, ux*half

	z.MoveTo(ax+nx, ay+ny)
	z.LineTo(bx+nx, by+ny)
	z.LineTo(bx-nx, by-ny)
	z.LineTo(ax-nx, ay-ny)
	z.ClosePath()
}

func rasterize(z *vector.Rasterizer, w, h int) *image.Gray {
	cov := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(cov, cov.Bounds(), image.Opaque, image.Point{})

	out := image.NewGray(cov.Bounds())
	for i, a := range cov.Pix {
		if a >= 0x80 {
			out.Pix[i] = 255
		}
	}
	return out
}

// Dilate grows the non-zero regions of mask with a size x size square
// structuring element, repeated iterations times. size should be odd; an
// even size is rounded down to the next odd value. The result is a 0/255
// mask; pixels outside the image never contribute.
func Dilate(mask *image.Gray, size, iterations int) *image.Gray {
	out := cloneGray(mask)
	radius := (size - 1) / 2
	if radius <= 0 || iterations <= 0 {
		return out
	}
	// k passes of a square of radius r cover the square of radius k*r
	return squareFilter(out, radius*iterations, true)
}

// Erode shrinks the non-zero regions of mask with a size x size square
// structuring element. It is the counterpart of Dilate with one iteration.
// Pixels outside the image take the value of the nearest edge pixel.
func Erode(mask *image.Gray, size int) *image.Gray {
	out := cloneGray(mask)
	radius := (size - 1) / 2
	if radius <= 0 {
		return out
	}
	return squareFilter(out, radius, false)
}

// squareFilter runs a separable max (grow) or min filter over g in place:
// one pass along every row, then one along every column. g must be anchored
// at the origin with Stride equal to its width.
func squareFilter(g *image.Gray, radius int, grow bool) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	n := w
	if h > n {
		n = h
	}
	line := make([]uint8, n)
	prefix := make([]int, n+1)

	for y := 0; y < h; y++ {
		filterLine(g.Pix[y*w:], w, 1, radius, grow, line, prefix)
	}
	for x := 0; x < w; x++ {
		filterLine(g.Pix[x:], h, w, radius, grow, line, prefix)
	}
	return g
}

// filterLine filters the n pixels pix[0], pix[step], ... with a window of
// radius pixels on either side, clamped to the line. It counts foreground
// pixels with a running prefix sum, so the cost does not depend on radius.
func filterLine(pix []uint8, n, step, radius int, grow bool, line []uint8, prefix []int) {
	for i := 0; i < n; i++ {
		prefix[i+1] = prefix[i]
		if pix[i*step] != 0 {
			prefix[i+1]++
		}
	}
	for i := 0; i < n; i++ {
		lo, hi := i-radius, i+radius+1
		if lo < 0 {
			lo = 0
		}
		if hi > n {
			hi = n
		}
		set := prefix[hi]-prefix[lo] == hi-lo
		if grow {
			set = prefix[hi] > prefix[lo]
		}
		line[i] = 0
		if set {
			line[i] = 255
		}
	}
	for i := 0; i < n; i++ {
		pix[i*step] = line[i]
	}
}
