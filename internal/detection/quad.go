package detection

import (
	"image"
	"math"
)

// FindQuad returns the largest convex quadrilateral formed by simplifying
// the contours of an edge map, or nil when none is at least p.MinQuadArea.
//
// Each contour is simplified with Douglas-Peucker at a tolerance of
// p.QuadEpsilon times its perimeter. Only simplifications with exactly four
// vertices are considered.
func FindQuad(edges *image.Gray, p Params) []Point {
	var best []Point
	bestArea := p.MinQuadArea

	for _, c := range FindContours(edges) {
		if len(c.Points) < 4 {
			continue
		}
		approx := approxPolygon(c.Points, p.QuadEpsilon*c.Perimeter())
		if len(approx) != 4 || !isConvex(approx) {
			continue
		}
		if area := polygonArea(approx); area >= bestArea {
			best = approx
			bestArea = area
		}
	}
	return best
}

// approxPolygon simplifies the closed curve pts with Douglas-Peucker.
//
// The curve is cut at its first point and the point farthest from it, and
// both halves are simplified as open polylines.
func approxPolygon(pts []Point, epsilon float64) []Point {
	n := len(pts)
	if n < 3 {
		return append([]Point(nil), pts...)
	}

	far, farDist := 0, -1.0
	for i, q := range pts {
		if d := dist2(pts[0], q); d > farDist {
			far, farDist = i, d
		}
	}
	if far == 0 {
		return []Point{pts[0]}
	}

	first := simplifyOpen(pts[:far+1], epsilon)
	loop := append(append([]Point(nil), pts[far:]...), pts[0])
	second := simplifyOpen(loop, epsilon)

	// first ends at pts[far], second starts there and ends at pts[0]
	out := append(first, second[1:len(second)-1]...)
	return out
}

// simplifyOpen is Douglas-Peucker on an open polyline. The end points are
// always kept.
func simplifyOpen(pts []Point, epsilon float64) []Point {
	if len(pts) < 3 {
		return append([]Point(nil), pts...)
	}

	keep := make([]bool, len(pts))
	keep[0], keep[len(pts)-1] = true, true

	type span struct{ lo, hi int }
	stack := []span{{0, len(pts) - 1}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		idx, maxD := -1, epsilon
		for i := s.lo + 1; i < s.hi; i++ {
			if d := segmentDistance(pts[i], pts[s.lo], pts[s.hi]); d > maxD {
				idx, maxD = i, d
			}
		}
		if idx < 0 {
			continue
		}
		keep[idx] = true
		stack = append(stack, span{s.lo, idx}, span{idx, s.hi})
	}

	out := make([]Point, 0, 8)
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

// segmentDistance returns the distance from p to the segment a-b.
func segmentDistance(p, a, b Point) float64 {
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Sqrt(dist2(p, a))
	}
	t := (float64(p.X-a.X)*dx + float64(p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	px, py := float64(a.X)+t*dx, float64(a.Y)+t*dy
	return math.Hypot(float64(p.X)-px, float64(p.Y)-py)
}

func dist2(a, b Point) float64 {
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	return dx*dx + dy*dy
}
