// Package imaging provides the raster primitives and image I/O used by the
// sheet detector.
//
// This package implements decoding with EXIF orientation, intensity
// conversion and smoothing, Canny edge extraction, Otsu thresholding,
// stroke and polygon rasterization, morphological dilation, cropping and
// annotated overlays. All operations work with standard Go image types and
// use a coordinate system where (0,0) is at the top-left corner, X increases
// rightward, and Y increases downward.
//
// # Rasters
//
// Intermediate rasters are *image.Gray anchored at (0,0). Binary rasters
// (edge maps, masks) hold only 0 and 255. Every function returns a new
// raster and leaves its inputs untouched.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. All other functions are
// stateless and can be called concurrently.
//
// # Error Handling
//
// Decoding errors wrap ErrInvalidImage or ErrDecodeFailure and can be
// tested with errors.Is. Other functions return errors for invalid inputs
// such as crop regions outside the image or malformed colors.
package imaging
