package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// CropResult contains the cropped image data
type CropResult struct {
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts a rectangular region from an image
func Crop(img image.Image, x1, y1, x2, y2 int, scale float64) (*CropResult, error) {
	bounds := img.Bounds()

	// Validate coordinates
	if x1 < bounds.Min.X || y1 < bounds.Min.Y || x2 > bounds.Max.X || y2 > bounds.Max.Y {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			x1, y1, x2, y2, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	var cropped image.Image = imaging.Crop(img, image.Rect(x1, y1, x2, y2))

	if scale != 1.0 && scale > 0 {
		newWidth := max(1, int(float64(cropped.Bounds().Dx())*scale))
		newHeight := max(1, int(float64(cropped.Bounds().Dy())*scale))
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	encoded, err := EncodeBase64(cropped, FormatPNG)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	return &CropResult{
		X:           x1,
		Y:           y1,
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

// ScreenRect is a crop rectangle measured on a preview of the image shown at
// ScreenWidth x ScreenHeight. Zero screen dimensions mean the preview has
// the same size as the image.
type ScreenRect struct {
	X            int `json:"crop_x"`
	Y            int `json:"crop_y"`
	Width        int `json:"crop_width"`
	Height       int `json:"crop_height"`
	ScreenWidth  int `json:"screen_width"`
	ScreenHeight int `json:"screen_height"`
}

// DefaultScreenRect returns the 220x310 rectangle at the origin that clients
// get when they send no crop parameters.
func DefaultScreenRect() ScreenRect {
	return ScreenRect{Width: 220, Height: 310}
}

// ScreenCrop scales r from screen to image coordinates and crops.
//
// The origin is clamped into the image and the size is clamped so the
// rectangle ends at the image edge. A rectangle that is empty after
// clamping is an error.
func ScreenCrop(img image.Image, r ScreenRect) (*CropResult, error) {
	if r.ScreenWidth < 0 || r.ScreenHeight < 0 {
		return nil, fmt.Errorf("invalid screen size %dx%d", r.ScreenWidth, r.ScreenHeight)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	sw, sh := r.ScreenWidth, r.ScreenHeight
	if sw == 0 {
		sw = w
	}
	if sh == 0 {
		sh = h
	}
	scaleX := float64(w) / float64(sw)
	scaleY := float64(h) / float64(sh)

	x := int(float64(r.X) * scaleX)
	y := int(float64(r.Y) * scaleY)
	cw := int(float64(r.Width) * scaleX)
	ch := int(float64(r.Height) * scaleY)

	x = max(0, min(x, w-1))
	y = max(0, min(y, h-1))
	cw = min(cw, w-x)
	ch = min(ch, h-y)
	if cw <= 0 || ch <= 0 {
		return nil, fmt.Errorf("invalid crop region: %dx%d at (%d,%d)", cw, ch, x, y)
	}

	return Crop(img, b.Min.X+x, b.Min.Y+y, b.Min.X+x+cw, b.Min.Y+y+ch, 1.0)
}
