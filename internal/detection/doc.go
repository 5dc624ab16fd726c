// Package detection decides whether a photo shows an A4 sheet and whether a
// foot stands on it.
//
// The pipeline is rule based. It uses hand-tuned geometric thresholds and
// no trained models.
//
// # Pipeline
//
// The default strategy (StrategyLineCluster) runs these stages in order:
//
//  1. Preprocess: grayscale and 5x5 Gaussian smoothing
//  2. Edges: Canny with hysteresis thresholds 50/150
//  3. Segments: progressive Hough transform (vote threshold 100, minimum
//     length 100 px, gap 20 px). Fewer than 4 segments ends the run with a
//     negative verdict.
//  4. Corners: DBSCAN over the segment end points (radius 30 px, 2
//     samples). Three or more clusters mean a sheet was found.
//  5. Band mask: segments stroked 5 px wide and dilated twice with an
//     11x11 square
//  6. Blob: the smoothed image inside the band is binarized at its Otsu
//     level, edges are traced into contours, and any contour with
//     5000 < area < 200000 px² is reported as a foot
//
// StrategyQuad replaces stages 4 to 6: the largest convex four-sided
// contour of the edge map is the sheet, and the foot is searched for as a
// dark blob inside it.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//
// # Backends
//
// The pure Go backend is always available. Binaries built with
// -tags gocv can select BackendOpenCV, which runs the same stages through
// OpenCV. The two backends can disagree on borderline photos.
//
// # Concurrency
//
// A Detector is immutable and can be shared by any number of goroutines.
// Every call allocates its own working rasters.
package detection
