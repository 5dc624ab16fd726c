package detection

import (
	"errors"
	"fmt"
)

// Strategy selects how the sheet region is located.
type Strategy string

const (
	// StrategyLineCluster finds line segments, clusters their end points into
	// corners and searches for the foot in a band around the segments.
	StrategyLineCluster Strategy = "line-cluster"

	// StrategyQuad looks for the largest convex four-sided contour and
	// searches for the foot inside it.
	StrategyQuad Strategy = "quad"
)

// ParseStrategy maps a configuration value to a Strategy. The empty string
// selects StrategyLineCluster.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyLineCluster:
		return StrategyLineCluster, nil
	case StrategyQuad:
		return StrategyQuad, nil
	}
	return "", fmt.Errorf("unknown strategy %q (want %q or %q)", s, StrategyLineCluster, StrategyQuad)
}

// Backend selects the implementation of the raster primitives.
type Backend string

const (
	// BackendGo runs the pipeline in pure Go. Always available.
	BackendGo Backend = "go"

	// BackendOpenCV runs the pipeline through OpenCV. Available only in
	// binaries built with the gocv build tag.
	BackendOpenCV Backend = "opencv"
)

// ParseBackend maps a configuration value to a Backend. The empty string
// selects BackendGo.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case "", BackendGo:
		return BackendGo, nil
	case BackendOpenCV:
		return BackendOpenCV, nil
	}
	return "", fmt.Errorf("unknown backend %q (want %q or %q)", s, BackendGo, BackendOpenCV)
}

// Params holds every tunable threshold of the pipeline. The zero value is
// not usable; start from DefaultParams.
type Params struct {
	Backend  Backend  `json:"backend"`
	Strategy Strategy `json:"strategy"`

	// MaxDimension downscales the photo so neither side exceeds it before
	// detection. 0 disables downscaling. Result coordinates refer to the
	// downscaled image.
	MaxDimension int `json:"max_dimension"`

	// Edge extraction hysteresis thresholds on the 0-255 gradient scale.
	CannyLow  float64 `json:"canny_low"`
	CannyHigh float64 `json:"canny_high"`

	// HoughThreshold is the vote count a line must exceed.
	HoughThreshold int `json:"hough_threshold"`
	// MinLineLength is the shortest segment kept, in pixels.
	MinLineLength float64 `json:"min_line_length"`
	// MaxLineGap is the largest gap bridged inside one segment, in pixels.
	MaxLineGap float64 `json:"max_line_gap"`
	// MinSegments below which the pipeline stops with a negative result.
	MinSegments int `json:"min_segments"`

	// ClusterEps is the DBSCAN neighborhood radius (inclusive).
	ClusterEps float64 `json:"cluster_eps"`
	// ClusterMinSamples counts the point itself.
	ClusterMinSamples int `json:"cluster_min_samples"`
	// MinCorners is the corner count at which a sheet is reported.
	MinCorners int `json:"min_corners"`

	// BandThickness is the stroke width used to draw segments into the mask.
	BandThickness float64 `json:"band_thickness"`
	// DilateSize is the side of the square structuring element.
	DilateSize int `json:"dilate_size"`
	// DilateIterations is how many times the band is dilated.
	DilateIterations int `json:"dilate_iterations"`

	// A blob counts as a foot when MinBlobArea < area < MaxBlobArea.
	MinBlobArea float64 `json:"min_blob_area"`
	MaxBlobArea float64 `json:"max_blob_area"`

	// QuadEpsilon is the polygon simplification tolerance as a fraction of
	// the contour perimeter. Used by StrategyQuad only.
	QuadEpsilon float64 `json:"quad_epsilon"`
	// MinQuadArea is the smallest quadrilateral accepted as a sheet.
	MinQuadArea float64 `json:"min_quad_area"`
}

// DefaultParams returns the hand-tuned thresholds for phone photos of an
// A4 sheet on the floor.
func DefaultParams() Params {
	return Params{
		Backend:           BackendGo,
		Strategy:          StrategyLineCluster,
		MaxDimension:      1024,
		CannyLow:          50,
		CannyHigh:         150,
		HoughThreshold:    100,
		MinLineLength:     100,
		MaxLineGap:        20,
		MinSegments:       4,
		ClusterEps:        30,
		ClusterMinSamples: 2,
		MinCorners:        3,
		BandThickness:     5,
		DilateSize:        11,
		DilateIterations:  2,
		MinBlobArea:       5000,
		MaxBlobArea:       200000,
		QuadEpsilon:       0.02,
		MinQuadArea:       10000,
	}
}

// ErrInvalidParams is wrapped by every error returned from Params.Validate.
var ErrInvalidParams = errors.New("invalid detection parameters")

// Validate rejects parameter sets the pipeline cannot run with.
func (p Params) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	_, err := ParseBackend(string(p.Backend))
	check(err == nil, "backend %q is not supported", p.Backend)
	_, err = ParseStrategy(string(p.Strategy))
	check(err == nil, "strategy %q is not supported", p.Strategy)
	check(p.Backend != BackendOpenCV || p.Strategy != StrategyQuad, "strategy %q is not supported by the %q backend", p.Strategy, p.Backend)
	check(p.MaxDimension >= 0, "max_dimension must be >= 0, got %d", p.MaxDimension)
	check(p.CannyLow >= 0, "canny_low must be >= 0, got %v", p.CannyLow)
	check(p.CannyHigh >= p.CannyLow, "canny_high (%v) must be >= canny_low (%v)", p.CannyHigh, p.CannyLow)
	check(p.HoughThreshold > 0, "hough_threshold must be > 0, got %d", p.HoughThreshold)
	check(p.MinLineLength > 0, "min_line_length must be > 0, got %v", p.MinLineLength)
	check(p.MaxLineGap >= 0, "max_line_gap must be >= 0, got %v", p.MaxLineGap)
	check(p.MinSegments >= 0, "min_segments must be >= 0, got %d", p.MinSegments)
	check(p.ClusterEps > 0, "cluster_eps must be > 0, got %v", p.ClusterEps)
	check(p.ClusterMinSamples >= 1, "cluster_min_samples must be >= 1, got %d", p.ClusterMinSamples)
	check(p.MinCorners >= 1, "min_corners must be >= 1, got %d", p.MinCorners)
	check(p.BandThickness > 0, "band_thickness must be > 0, got %v", p.BandThickness)
	check(p.DilateSize >= 1, "dilate_size must be >= 1, got %d", p.DilateSize)
	check(p.DilateIterations >= 0, "dilate_iterations must be >= 0, got %d", p.DilateIterations)
	check(p.MinBlobArea >= 0, "min_blob_area must be >= 0, got %v", p.MinBlobArea)
	check(p.MaxBlobArea > p.MinBlobArea, "max_blob_area (%v) must be > min_blob_area (%v)", p.MaxBlobArea, p.MinBlobArea)
	check(p.QuadEpsilon > 0 && p.QuadEpsilon < 1, "quad_epsilon must be in (0, 1), got %v", p.QuadEpsilon)
	check(p.MinQuadArea >= 0, "min_quad_area must be >= 0, got %v", p.MinQuadArea)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidParams, errors.Join(errs...))
}

// ErrOpenCVUnavailable is returned when BackendOpenCV is selected in a
// binary built without the gocv build tag.
var ErrOpenCVUnavailable = errors.New("opencv backend not compiled in (build with -tags gocv)")
