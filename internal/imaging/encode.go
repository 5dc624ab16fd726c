package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"github.com/chai2010/webp"
)

// Format is an output encoding for rasters returned to clients.
type Format string

const (
	// FormatPNG encodes lossless PNG. This is the default.
	FormatPNG Format = "png"

	// FormatWebP encodes lossless WebP, which is usually smaller for
	// binary masks and edge maps.
	FormatWebP Format = "webp"
)

// ParseFormat maps a user supplied name to a Format. The empty string maps
// to FormatPNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("unsupported output format: %q", s)
	}
}

// MimeType returns the media type for the format.
func (f Format) MimeType() string {
	if f == FormatWebP {
		return "image/webp"
	}
	return "image/png"
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	if f == FormatWebP {
		return ".webp"
	}
	return ".png"
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatWebP:
		return webp.Encode(w, img, &webp.Options{Lossless: true})
	case FormatPNG, "":
		return png.Encode(w, img)
	default:
		return fmt.Errorf("unsupported output format: %q", format)
	}
}

// EncodeBase64 encodes img and returns the standard base64 text.
func EncodeBase64(img image.Image, format Format) (string, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
