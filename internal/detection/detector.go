package detection

import (
	"fmt"
	"image"
	"time"

	"github.com/ironsheep/sheet-detect/internal/imaging"
)

// Result is the verdict for one photo.
type Result struct {
	// A4Detected reports whether a rectangular sheet was found.
	A4Detected bool `json:"a4_detected"`

	// FootOnA4 reports whether a foot-sized object was found on the sheet.
	// Both flags are false after an early exit; otherwise they are computed
	// independently.
	FootOnA4 bool `json:"foot_on_a4"`
}

// Analysis is the full trace of one detection run.
//
// Rasters are excluded from JSON; they are kept for overlays and tests.
type Analysis struct {
	Result

	Strategy Strategy `json:"strategy"`
	Width    int      `json:"width"`
	Height   int      `json:"height"`

	// Scale is the factor applied to the photo before detection (1 when
	// no downscaling happened). All coordinates below are in the
	// downscaled frame.
	Scale float64 `json:"scale"`

	Segments []Segment `json:"segments"`

	// EarlyExit is true when fewer than MinSegments segments were found and
	// the remaining stages were skipped.
	EarlyExit bool `json:"early_exit"`

	// Points are the segment end points and Labels their cluster labels.
	Points      []Point `json:"points,omitempty"`
	Labels      []int   `json:"labels,omitempty"`
	CornerCount int     `json:"corner_count"`

	// Quad is the sheet outline found by StrategyQuad.
	Quad []Point `json:"quad,omitempty"`

	// Blob is the foot search. Nil when the search did not run.
	Blob *BlobSearch `json:"blob,omitempty"`

	Elapsed time.Duration `json:"elapsed_ns"`

	// Source is the photo the pipeline ran on, after downscaling.
	Source image.Image `json:"-"`
	Gray   *image.Gray `json:"-"`
	Edges  *image.Gray `json:"-"`
	Mask   *image.Gray `json:"-"`
}

// Detector runs the sheet and foot pipeline with a fixed parameter set.
//
// A Detector holds no mutable state and is safe for concurrent use.
type Detector struct {
	params Params
}

// New validates p and returns a Detector. Selecting BackendOpenCV in a
// binary built without OpenCV support fails with ErrOpenCVUnavailable.
func New(p Params) (*Detector, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Backend == BackendOpenCV && !OpenCVAvailable {
		return nil, ErrOpenCVUnavailable
	}
	return &Detector{params: p}, nil
}

// Params returns the detector's parameters.
func (d *Detector) Params() Params {
	return d.params
}

// Detect runs the pipeline with the configured backend and returns only
// the verdict.
func (d *Detector) Detect(img image.Image) (Result, error) {
	if img == nil || img.Bounds().Empty() {
		return Result{}, nil
	}
	if d.params.Backend == BackendOpenCV {
		res, err := DetectOpenCV(imaging.Fit(img, d.params.MaxDimension), d.params)
		if err != nil {
			return Result{}, fmt.Errorf("opencv backend: %w", err)
		}
		return res, nil
	}
	return d.Analyze(img).Result, nil
}

// Analyze runs the pure Go pipeline and returns every intermediate result.
//
// An empty image yields a negative verdict.
func (d *Detector) Analyze(img image.Image) *Analysis {
	start := time.Now()
	p := d.params

	a := &Analysis{Strategy: p.Strategy, Scale: 1}
	if img == nil || img.Bounds().Empty() {
		a.EarlyExit = true
		return a
	}

	src := imaging.Fit(img, p.MaxDimension)
	a.Source = src
	if src.Bounds().Dx() != img.Bounds().Dx() {
		a.Scale = float64(src.Bounds().Dx()) / float64(img.Bounds().Dx())
	}

	a.Gray = imaging.Preprocess(src)
	a.Width, a.Height = a.Gray.Bounds().Dx(), a.Gray.Bounds().Dy()
	a.Edges = imaging.Canny(a.Gray, p.CannyLow, p.CannyHigh)

	a.Segments = DetectSegments(a.Edges, p)
	if len(a.Segments) < p.MinSegments {
		a.EarlyExit = true
		a.Elapsed = time.Since(start)
		return a
	}

	switch p.Strategy {
	case StrategyQuad:
		d.analyzeQuad(a)
	default:
		d.analyzeLineCluster(a)
	}

	a.Elapsed = time.Since(start)
	return a
}

func (d *Detector) analyzeLineCluster(a *Analysis) {
	p := d.params

	a.Points = Endpoints(a.Segments)
	a.Labels = ClusterPoints(a.Points, p.ClusterEps, p.ClusterMinSamples)
	a.CornerCount = CornerCount(a.Labels)
	a.A4Detected = a.CornerCount >= p.MinCorners

	a.Mask = BuildBandMask(a.Width, a.Height, a.Segments, p)
	blob := FindBlob(a.Gray, a.Mask, p)
	a.Blob = &blob
	a.FootOnA4 = blob.Found
}

func (d *Detector) analyzeQuad(a *Analysis) {
	p := d.params

	a.Quad = FindQuad(a.Edges, p)
	if a.Quad == nil {
		return
	}
	a.A4Detected = true
	a.CornerCount = len(a.Quad)

	a.Mask = BuildQuadMask(a.Width, a.Height, a.Quad, p)
	blob := findDarkBlob(a.Gray, a.Mask, p)
	a.Blob = &blob
	a.FootOnA4 = blob.Found
}

// Overlay converts the analysis into drawing instructions for
// imaging.Annotate. Coordinates are in the analyzed (possibly downscaled)
// frame.
func (a *Analysis) Overlay() imaging.Overlay {
	ov := imaging.Overlay{
		Mask:     a.Mask,
		Segments: imageSegments(a.Segments),
		Points:   imagePoints(a.Points),
		Labels:   a.Labels,
		Quad:     imagePoints(a.Quad),
	}
	if a.Blob != nil && a.Blob.Contour != nil {
		ov.Contours = [][]image.Point{imagePoints(a.Blob.Contour.Points)}
	}
	return ov
}
