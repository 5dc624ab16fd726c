package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/disintegration/imaging"
)

// gaussian5x5 is the 5x5 Gaussian kernel (sigma ≈ 1.4, sum 273) used to suppress
// sensor grain before edge extraction. Normalized by bild before use.
var gaussian5x5 = []float64{
	1, 4, 7, 4, 1,
	4, 16, 26, 16, 4,
	7, 26, 41, 26, 7,
	4, 16, 26, 16, 4,
	1, 4, 7, 4, 1,
}

// Preprocess converts img to a single-channel intensity raster and smooths it.
//
// The result is anchored at (0,0) and has the same width and height as img.
// img is never modified.
func Preprocess(img image.Image) *image.Gray {
	return Smooth(Grayscale(img))
}

// Grayscale converts any image to an 8-bit intensity raster anchored at (0,0).
//
// Luminance follows ITU-R BT.601 (0.299*R + 0.587*G + 0.114*B).
func Grayscale(img image.Image) *image.Gray {
	src := imaging.Grayscale(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x := range out {
			out[x] = row[x*4]
		}
	}
	return dst
}

// Smooth applies the 5x5 Gaussian kernel to gray. Border pixels are extended.
func Smooth(gray *image.Gray) *image.Gray {
	k := convolution.NewKernel(5, 5)
	copy(k.Matrix, gaussian5x5)
	out := convolution.Convolve(gray, k.Normalized(), &convolution.Options{Bias: 0, Wrap: false, KeepAlpha: false})
	return redChannel(out)
}

// redChannel copies the red channel of an RGBA raster into a new gray raster
// anchored at (0,0). bild returns RGBA even for gray input; R == G == B there.
func redChannel(src *image.RGBA) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		off := src.PixOffset(src.Bounds().Min.X, src.Bounds().Min.Y+y)
		out := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x := range out {
			out[x] = src.Pix[off+x*4]
		}
	}
	return dst
}

// cloneGray returns a copy of src anchored at (0,0).
func cloneGray(src *image.Gray) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		off := src.PixOffset(src.Bounds().Min.X, src.Bounds().Min.Y+y)
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], src.Pix[off:off+w])
	}
	return dst
}
