package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/vector"
)

// Overlay describes the detector state drawn by Annotate. Any field may be
// empty.
type Overlay struct {
	// Mask is tinted over the photo where it is non-zero.
	Mask *image.Gray

	// Segments are drawn as thin lines.
	Segments [][2]image.Point

	// Points are drawn as small squares colored by Labels. A label < 0 is
	// noise and drawn in NoiseColor.
	Points []image.Point
	Labels []int

	// Quad is drawn as a closed outline.
	Quad []image.Point

	// Contours are drawn as closed outlines in ContourColor.
	Contours [][]image.Point
}

// OverlayStyle controls the colors used by Annotate. Colors are "#RRGGBB".
type OverlayStyle struct {
	MaskColor    string  `json:"mask_color"`
	MaskOpacity  float64 `json:"mask_opacity"`
	SegmentColor string  `json:"segment_color"`
	NoiseColor   string  `json:"noise_color"`
	QuadColor    string  `json:"quad_color"`
	ContourColor string  `json:"contour_color"`
	LineWidth    float64 `json:"line_width"`
	PointSize    int     `json:"point_size"`
}

// DefaultOverlayStyle returns the colors used when the caller sets none.
func DefaultOverlayStyle() OverlayStyle {
	return OverlayStyle{
		MaskColor:    "#00c853",
		MaskOpacity:  0.35,
		SegmentColor: "#ff1744",
		NoiseColor:   "#9e9e9e",
		QuadColor:    "#2979ff",
		ContourColor: "#ffea00",
		LineWidth:    3,
		PointSize:    9,
	}
}

// AnnotateResult contains the encoded overlay.
type AnnotateResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Clusters    int    `json:"clusters"`
}

// Annotate draws ov on top of a copy of img and returns the result anchored
// at (0,0). img is not modified.
//
// Clusters get distinct colors from a generated palette, so the same label
// has the same color everywhere in one overlay.
func Annotate(img image.Image, ov Overlay, style OverlayStyle) (*image.NRGBA, error) {
	maskColor, err := parseHexColor(style.MaskColor)
	if err != nil {
		return nil, fmt.Errorf("mask color: %w", err)
	}
	segColor, err := parseHexColor(style.SegmentColor)
	if err != nil {
		return nil, fmt.Errorf("segment color: %w", err)
	}
	noiseColor, err := parseHexColor(style.NoiseColor)
	if err != nil {
		return nil, fmt.Errorf("noise color: %w", err)
	}
	quadColor, err := parseHexColor(style.QuadColor)
	if err != nil {
		return nil, fmt.Errorf("quad color: %w", err)
	}
	contourColor, err := parseHexColor(style.ContourColor)
	if err != nil {
		return nil, fmt.Errorf("contour color: %w", err)
	}
	if len(ov.Labels) != 0 && len(ov.Labels) != len(ov.Points) {
		return nil, fmt.Errorf("labels: got %d for %d points", len(ov.Labels), len(ov.Points))
	}

	result := imaging.Clone(img)
	bounds := result.Bounds()

	if ov.Mask != nil {
		tintMask(result, ov.Mask, maskColor, style.MaskOpacity)
	}

	half := float32(style.LineWidth / 2)
	if half <= 0 {
		half = 0.5
	}

	if len(ov.Segments) > 0 {
		z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
		for _, s := range ov.Segments {
			strokeSegment(z, s, half)
		}
		z.Draw(result, bounds, image.NewUniform(segColor), image.Point{})
	}

	outline := func(pts []image.Point, c color.Color) {
		if len(pts) < 2 {
			return
		}
		z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
		for i := range pts {
			strokeSegment(z, [2]image.Point{pts[i], pts[(i+1)%len(pts)]}, half)
		}
		z.Draw(result, bounds, image.NewUniform(c), image.Point{})
	}

	for _, c := range ov.Contours {
		outline(c, contourColor)
	}
	outline(ov.Quad, quadColor)

	clusters := 0
	for _, l := range ov.Labels {
		clusters = max(clusters, l+1)
	}
	palette := clusterPalette(clusters)

	size := max(style.PointSize, 1)
	for i, p := range ov.Points {
		c := color.Color(segColor)
		if len(ov.Labels) > 0 {
			if l := ov.Labels[i]; l >= 0 {
				c = palette[l]
			} else {
				c = noiseColor
			}
		}
		r := image.Rect(p.X-size/2, p.Y-size/2, p.X-size/2+size, p.Y-size/2+size).Intersect(bounds)
		draw.Draw(result, r, image.NewUniform(c), image.Point{}, draw.Src)
	}

	return result, nil
}

// AnnotateEncoded runs Annotate and encodes the overlay.
func AnnotateEncoded(img image.Image, ov Overlay, style OverlayStyle, format Format) (*AnnotateResult, error) {
	out, err := Annotate(img, ov, style)
	if err != nil {
		return nil, err
	}
	encoded, err := EncodeBase64(out, format)
	if err != nil {
		return nil, fmt.Errorf("failed to encode overlay: %w", err)
	}

	clusters := 0
	for _, l := range ov.Labels {
		clusters = max(clusters, l+1)
	}

	return &AnnotateResult{
		Width:       out.Bounds().Dx(),
		Height:      out.Bounds().Dy(),
		ImageBase64: encoded,
		MimeType:    format.MimeType(),
		Clusters:    clusters,
	}, nil
}

// tintMask blends c over dst wherever mask is non-zero.
func tintMask(dst *image.NRGBA, mask *image.Gray, c color.RGBA, opacity float64) {
	tint, _ := colorful.MakeColor(c)
	w := min(dst.Bounds().Dx(), mask.Bounds().Dx())
	h := min(dst.Bounds().Dy(), mask.Bounds().Dy())
	for y := 0; y < h; y++ {
		moff := mask.PixOffset(mask.Bounds().Min.X, mask.Bounds().Min.Y+y)
		for x := 0; x < w; x++ {
			if mask.Pix[moff+x] == 0 {
				continue
			}
			i := dst.PixOffset(x, y)
			base := colorful.Color{
				R: float64(dst.Pix[i]) / 255,
				G: float64(dst.Pix[i+1]) / 255,
				B: float64(dst.Pix[i+2]) / 255,
			}
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = base.BlendRgb(tint, opacity).Clamped().RGB255()
		}
	}
}

// clusterPalette returns n well separated opaque colors.
func clusterPalette(n int) []color.Color {
	if n == 0 {
		return nil
	}
	out := make([]color.Color, n)
	for i, c := range colorful.FastHappyPalette(n) {
		r, g, b := c.Clamped().RGB255()
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

// parseHexColor parses a hex color string like "#FF0000"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
