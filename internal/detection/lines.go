package detection

import (
	"image"
	"math"
	"sort"
	"sync"
)

const (
	// houghThetaSteps is the number of 1° angle bins over [0°, 180°).
	houghThetaSteps = 180

	// lineTolerance is the perpendicular distance in pixels within which an
	// edge pixel supports a line.
	lineTolerance = 1.5
)

var houghCos, houghSin = func() (c, s [houghThetaSteps]float64) {
	for t := 0; t < houghThetaSteps; t++ {
		angle := float64(t) * math.Pi / 180.0
		c[t] = math.Cos(angle)
		s[t] = math.Sin(angle)
	}
	return c, s
}()

// accumulatorPool recycles Hough vote buffers across calls. A buffer is
// cleared on checkout.
var accumulatorPool = sync.Pool{
	New: func() any { return new([]int32) },
}

// houghSpace is the per-call state of DetectSegments.
type houghSpace struct {
	width, height int
	diag          int
	votes         []int32
	// alive marks edge pixels that have not been assigned to a segment.
	alive []bool
}

func (h *houghSpace) rhoIndex(x, y, t int) int {
	return int(math.Round(float64(x)*houghCos[t]+float64(y)*houghSin[t])) + h.diag
}

// vote adds (delta = 1) or withdraws (delta = -1) the votes of one pixel.
func (h *houghSpace) vote(x, y int, delta int32) {
	for t := 0; t < houghThetaSteps; t++ {
		h.votes[h.rhoIndex(x, y, t)*houghThetaSteps+t] += delta
	}
}

// support returns the alive edge pixels within lineTolerance of the line
// x*cos(t) + y*sin(t) = rho, walking along its dominant axis.
func (h *houghSpace) support(rho float64, t int) []Point {
	cos, sin := houghCos[t], houghSin[t]
	pts := make([]Point, 0, 256)

	if math.Abs(sin) >= math.Abs(cos) {
		span := lineTolerance / math.Abs(sin)
		for x := 0; x < h.width; x++ {
			yc := (rho - float64(x)*cos) / sin
			y0 := max(0, int(math.Ceil(yc-span)))
			y1 := min(h.height-1, int(math.Floor(yc+span)))
			for y := y0; y <= y1; y++ {
				if h.alive[y*h.width+x] {
					pts = append(pts, Point{X: x, Y: y})
				}
			}
		}
		return pts
	}

	span := lineTolerance / math.Abs(cos)
	for y := 0; y < h.height; y++ {
		xc := (rho - float64(y)*sin) / cos
		x0 := max(0, int(math.Ceil(xc-span)))
		x1 := min(h.width-1, int(math.Floor(xc+span)))
		for x := x0; x <= x1; x++ {
			if h.alive[y*h.width+x] {
				pts = append(pts, Point{X: x, Y: y})
			}
		}
	}
	return pts
}

// DetectSegments finds straight line segments in a binary edge map using a
// deterministic progressive Hough transform.
//
// Parameters (from p):
//   - HoughThreshold: a line is considered only when its accumulator cell
//     has more votes than this
//   - MinLineLength: shortest segment kept, in pixels
//   - MaxLineGap: largest gap between consecutive pixels of one segment
//
// Returns the segments in the order they were found. The result is empty,
// not nil, when nothing qualifies.
//
// # Algorithm
//
//  1. Voting: every edge pixel votes for all (rho, theta) cells of the lines
//     through it (rho resolution 1 px, theta resolution 1°)
//  2. Candidates: cells above the threshold, visited in descending vote
//     order, ties broken by cell index
//  3. Extraction: for each candidate whose current votes still exceed the
//     threshold, the unassigned edge pixels near the line are sorted along
//     it and split into runs at gaps larger than MaxLineGap
//  4. Withdrawal: every run at least MinLineLength long becomes a segment
//     from its first to its last pixel, and its pixels withdraw their votes
//     so the same support cannot produce a second segment
func DetectSegments(edges *image.Gray, p Params) []Segment {
	width, height := edges.Bounds().Dx(), edges.Bounds().Dy()
	segments := make([]Segment, 0)
	if width == 0 || height == 0 {
		return segments
	}

	diag := int(math.Ceil(math.Hypot(float64(width), float64(height))))
	numRho := 2*diag + 1

	buf := accumulatorPool.Get().(*[]int32)
	defer accumulatorPool.Put(buf)
	if n := numRho * houghThetaSteps; cap(*buf) < n {
		*buf = make([]int32, n)
	} else {
		*buf = (*buf)[:n]
		clear(*buf)
	}

	h := &houghSpace{
		width:  width,
		height: height,
		diag:   diag,
		votes:  *buf,
		alive:  make([]bool, width*height),
	}

	minX, minY := edges.Bounds().Min.X, edges.Bounds().Min.Y
	for y := 0; y < height; y++ {
		off := edges.PixOffset(minX, minY+y)
		for x := 0; x < width; x++ {
			if edges.Pix[off+x] != 0 {
				h.alive[y*width+x] = true
				h.vote(x, y, 1)
			}
		}
	}

	threshold := int32(p.HoughThreshold)
	candidates := make([]int, 0)
	for cell, v := range h.votes {
		if v > threshold {
			candidates = append(candidates, cell)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		vi, vj := h.votes[candidates[i]], h.votes[candidates[j]]
		if vi != vj {
			return vi > vj
		}
		return candidates[i] < candidates[j]
	})

	for _, cell := range candidates {
		if h.votes[cell] <= threshold {
			continue
		}
		rIdx, t := cell/houghThetaSteps, cell%houghThetaSteps
		rho := float64(rIdx - diag)

		pts := h.support(rho, t)
		if len(pts) < 2 {
			continue
		}

		// position along the line direction (-sin, cos)
		along := func(q Point) float64 {
			return -float64(q.X)*houghSin[t] + float64(q.Y)*houghCos[t]
		}
		sort.Slice(pts, func(i, j int) bool {
			ai, aj := along(pts[i]), along(pts[j])
			if ai != aj {
				return ai < aj
			}
			if pts[i].Y != pts[j].Y {
				return pts[i].Y < pts[j].Y
			}
			return pts[i].X < pts[j].X
		})

		start := 0
		for i := 1; i <= len(pts); i++ {
			if i < len(pts) && along(pts[i])-along(pts[i-1]) <= p.MaxLineGap {
				continue
			}
			run := pts[start:i]
			start = i
			if len(run) < 2 {
				continue
			}
			seg := Segment{P1: run[0], P2: run[len(run)-1]}
			if seg.Length() < p.MinLineLength {
				continue
			}
			for _, q := range run {
				h.alive[q.Y*width+q.X] = false
				h.vote(q.X, q.Y, -1)
			}
			segments = append(segments, Segment{
				P1: Point{X: seg.P1.X + minX, Y: seg.P1.Y + minY},
				P2: Point{X: seg.P2.X + minX, Y: seg.P2.Y + minY},
			})
		}
	}

	return segments
}
