package imaging

import (
	"fmt"
	"image"
)

// EdgeDetectResult contains an edge map encoded for transport.
//
// The edge map is a binary grayscale image where white pixels (255) are
// edges and black pixels (0) are not.
type EdgeDetectResult struct {
	// Width of the output image in pixels (same as input).
	Width int `json:"width"`

	// Height of the output image in pixels (same as input).
	Height int `json:"height"`

	// EdgePixels is the number of pixels marked as edges.
	EdgePixels int `json:"edge_pixels"`

	// ImageBase64 is the encoded edge map.
	ImageBase64 string `json:"image_base64"`

	// MimeType is "image/png" or "image/webp".
	MimeType string `json:"mime_type"`
}

// EdgeDetect preprocesses img, runs Canny and returns the encoded edge map.
//
// Parameters:
//   - img: Source image (color or grayscale).
//   - thresholdLow: Hysteresis low threshold on the 0-255 gradient scale.
//     Typical value: 50.
//   - thresholdHigh: Hysteresis high threshold. Typical value: 150.
//   - format: Output encoding.
//
// Returns:
//   - *EdgeDetectResult: The edge map and its pixel count.
//   - error: Non-nil if the thresholds are inverted or encoding fails.
func EdgeDetect(img image.Image, thresholdLow, thresholdHigh int, format Format) (*EdgeDetectResult, error) {
	if thresholdLow < 0 || thresholdHigh < thresholdLow {
		return nil, fmt.Errorf("invalid edge thresholds: low=%d high=%d", thresholdLow, thresholdHigh)
	}

	edges := Canny(Preprocess(img), float64(thresholdLow), float64(thresholdHigh))

	encoded, err := EncodeBase64(edges, format)
	if err != nil {
		return nil, fmt.Errorf("failed to encode edge image: %w", err)
	}

	return &EdgeDetectResult{
		Width:       edges.Bounds().Dx(),
		Height:      edges.Bounds().Dy(),
		EdgePixels:  CountNonZero(edges),
		ImageBase64: encoded,
		MimeType:    format.MimeType(),
	}, nil
}

// Gradient direction sectors used by non-maximum suppression.
const (
	sectorHorizontal = iota // gradient along x, compare left and right
	sectorDiagonal          // gradient along y=x, compare upper-left and lower-right
	sectorVertical          // gradient along y, compare above and below
	sectorAntiDiagonal      // gradient along y=-x, compare upper-right and lower-left
)

const (
	tan22 = 0.41421356237 // tan(22.5°)
	tan67 = 2.41421356237 // tan(67.5°)
)

// Canny computes a binary edge map from a smoothed intensity raster.
//
// The output is anchored at (0,0) with the same size as src. Edge pixels are
// 255 and everything else is 0.
//
// # Algorithm
//
//  1. Gradient computation: 3x3 Sobel operators with replicated borders.
//     magnitude = |Gx| + |Gy| on the 0-255 intensity scale
//
//  2. Non-maximum suppression: each pixel is compared with its two neighbors
//     along the quantized gradient direction (0°, 45°, 90°, 135°). A pixel
//     survives when it is strictly greater than the first neighbor and not
//     smaller than the second, which keeps exactly one pixel across a plateau.
//     Image border pixels never survive.
//
//  3. Hysteresis thresholding:
//     - Pixels above high are strong edges (always kept)
//     - Pixels above low are weak edges, kept only when they are
//     8-connected to a strong edge through other weak edges
//     - Everything else is discarded
func Canny(src *image.Gray, low, high float64) *image.Gray {
	width := src.Bounds().Dx()
	height := src.Bounds().Dy()
	result := image.NewGray(image.Rect(0, 0, width, height))
	if width < 3 || height < 3 {
		return result
	}

	minX, minY := src.Bounds().Min.X, src.Bounds().Min.Y
	at := func(x, y int) float64 {
		x = clamp(x, 0, width-1)
		y = clamp(y, 0, height-1)
		return float64(src.Pix[src.PixOffset(x+minX, y+minY)])
	}

	magnitude := make([]float64, width*height)
	sector := make([]uint8, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)

			ax, ay := abs(gx), abs(gy)
			i := y*width + x
			magnitude[i] = ax + ay

			switch {
			case ay <= ax*tan22:
				sector[i] = sectorHorizontal
			case ay >= ax*tan67:
				sector[i] = sectorVertical
			case gx*gy > 0:
				sector[i] = sectorDiagonal
			default:
				sector[i] = sectorAntiDiagonal
			}
		}
	}

	// Non-maximum suppression
	suppressed := make([]float64, width*height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			mag := magnitude[i]
			if mag <= low {
				continue
			}

			var n1, n2 float64
			switch sector[i] {
			case sectorHorizontal:
				n1, n2 = magnitude[i-1], magnitude[i+1]
			case sectorVertical:
				n1, n2 = magnitude[i-width], magnitude[i+width]
			case sectorDiagonal:
				n1, n2 = magnitude[i-width-1], magnitude[i+width+1]
			default:
				n1, n2 = magnitude[i-width+1], magnitude[i+width-1]
			}

			if mag > n1 && mag >= n2 {
				suppressed[i] = mag
			}
		}
	}

	// Double threshold and edge tracking by hysteresis
	const (
		none = iota
		weak
		strong
	)
	state := make([]uint8, width*height)
	stack := make([]int, 0, 1024)
	for i, v := range suppressed {
		switch {
		case v > high:
			state[i] = strong
			stack = append(stack, i)
		case v > low:
			state[i] = weak
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%width, i/width
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= width || ny >= height {
					continue
				}
				j := ny*width + nx
				if state[j] == weak {
					state[j] = strong
					stack = append(stack, j)
				}
			}
		}
	}

	for y := 0; y < height; y++ {
		row := result.Pix[y*result.Stride:]
		for x := 0; x < width; x++ {
			if state[y*width+x] == strong {
				row[x] = 255
			}
		}
	}
	return result
}

// CountNonZero returns the number of non-zero pixels in a gray raster.
func CountNonZero(img *image.Gray) int {
	b := img.Bounds()
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		for _, v := range img.Pix[off : off+b.Dx()] {
			if v != 0 {
				n++
			}
		}
	}
	return n
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
