package detection

import (
	"image"
	"math"
)

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// Bounds represents a rectangular bounding box in pixel coordinates.
//
// (X1, Y1) is the top-left corner and (X2, Y2) the bottom-right corner,
// both inclusive.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Segment is a detected straight line segment between two end points.
// The order of the end points carries no meaning.
type Segment struct {
	P1 Point `json:"p1"`
	P2 Point `json:"p2"`
}

// Length returns the Euclidean distance between the end points.
func (s Segment) Length() float64 {
	return math.Hypot(float64(s.P2.X-s.P1.X), float64(s.P2.Y-s.P1.Y))
}

// Endpoints flattens segments into the point list used for corner
// clustering: P1 and P2 of segment i are points 2i and 2i+1.
func Endpoints(segments []Segment) []Point {
	pts := make([]Point, 0, 2*len(segments))
	for _, s := range segments {
		pts = append(pts, s.P1, s.P2)
	}
	return pts
}

func (p Point) image() image.Point {
	return image.Point{X: p.X, Y: p.Y}
}

func imagePoints(pts []Point) []image.Point {
	out := make([]image.Point, len(pts))
	for i, p := range pts {
		out[i] = p.image()
	}
	return out
}

func imageSegments(segments []Segment) [][2]image.Point {
	out := make([][2]image.Point, len(segments))
	for i, s := range segments {
		out[i] = [2]image.Point{s.P1.image(), s.P2.image()}
	}
	return out
}

// polygonArea returns the absolute shoelace area of the closed polygon pts.
func polygonArea(pts []Point) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	var sum int64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += int64(pts[i].X)*int64(pts[j].Y) - int64(pts[j].X)*int64(pts[i].Y)
	}
	return math.Abs(float64(sum)) / 2
}

// polygonPerimeter returns the length of the closed polygon pts.
func polygonPerimeter(pts []Point) float64 {
	n := len(pts)
	if n < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += math.Hypot(float64(pts[j].X-pts[i].X), float64(pts[j].Y-pts[i].Y))
	}
	return sum
}

// isConvex reports whether the closed polygon pts turns in one direction
// only. Collinear vertices are tolerated.
func isConvex(pts []Point) bool {
	n := len(pts)
	if n < 3 {
		return false
	}
	sign := 0
	for i := 0; i < n; i++ {
		a, b, c := pts[i], pts[(i+1)%n], pts[(i+2)%n]
		cross := (b.X-a.X)*(c.Y-b.Y) - (b.Y-a.Y)*(c.X-b.X)
		switch {
		case cross > 0:
			if sign < 0 {
				return false
			}
			sign = 1
		case cross < 0:
			if sign > 0 {
				return false
			}
			sign = -1
		}
	}
	return sign != 0
}
