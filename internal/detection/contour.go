package detection

import (
	"image"
)

// Contour is the closed outer border of one 8-connected group of
// foreground pixels, in tracing order (clockwise on screen).
type Contour struct {
	Points []Point `json:"points"`
}

// Area returns the area enclosed by the traced border in square pixels
// (shoelace formula over pixel centers). A one-pixel-wide open curve
// encloses nothing and has area 0.
func (c Contour) Area() float64 {
	return polygonArea(c.Points)
}

// Perimeter returns the length of the closed border in pixels.
func (c Contour) Perimeter() float64 {
	return polygonPerimeter(c.Points)
}

// Bounds returns the bounding box of the border points.
func (c Contour) Bounds() Bounds {
	if len(c.Points) == 0 {
		return Bounds{}
	}
	b := Bounds{X1: c.Points[0].X, Y1: c.Points[0].Y, X2: c.Points[0].X, Y2: c.Points[0].Y}
	for _, p := range c.Points[1:] {
		b.X1 = min(b.X1, p.X)
		b.Y1 = min(b.Y1, p.Y)
		b.X2 = max(b.X2, p.X)
		b.Y2 = max(b.Y2, p.Y)
	}
	return b
}

// mooreDirs lists the 8 neighbor offsets clockwise on screen, starting West.
var mooreDirs = [8]Point{
	{X: -1, Y: 0},  // W
	{X: -1, Y: -1}, // NW
	{X: 0, Y: -1},  // N
	{X: 1, Y: -1},  // NE
	{X: 1, Y: 0},   // E
	{X: 1, Y: 1},   // SE
	{X: 0, Y: 1},   // S
	{X: -1, Y: 1},  // SW
}

// FindContours traces the outer border of every 8-connected group of
// non-zero pixels in bin.
//
// Groups are reported in raster order of their topmost-leftmost pixel.
// Groups nested inside another group are reported too; holes are not.
//
// # Algorithm
//
//  1. Scan in raster order; the first unvisited foreground pixel is the
//     topmost-leftmost pixel of a new group
//  2. Flood-fill the group (8-connected) to mark it visited
//  3. Trace its border with Moore-neighbor tracing, starting from the
//     topmost-leftmost pixel with the backtrack to the West, and stop when
//     the tracer re-enters the start pixel heading to the second pixel
func FindContours(bin *image.Gray) []Contour {
	width, height := bin.Bounds().Dx(), bin.Bounds().Dy()
	minX, minY := bin.Bounds().Min.X, bin.Bounds().Min.Y

	fg := make([]bool, width*height)
	for y := 0; y < height; y++ {
		off := bin.PixOffset(minX, minY+y)
		for x := 0; x < width; x++ {
			fg[y*width+x] = bin.Pix[off+x] != 0
		}
	}
	isFG := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < width && y < height && fg[y*width+x]
	}

	visited := make([]bool, width*height)
	contours := make([]Contour, 0)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !fg[y*width+x] || visited[y*width+x] {
				continue
			}
			size := floodFill(fg, visited, x, y, width, height)
			pts := traceBorder(isFG, Point{X: x, Y: y}, 4*size+8)
			for i := range pts {
				pts[i].X += minX
				pts[i].Y += minY
			}
			contours = append(contours, Contour{Points: pts})
		}
	}

	return contours
}

// floodFill marks the 8-connected group containing (startX, startY) as
// visited and returns its pixel count.
func floodFill(fg, visited []bool, startX, startY, width, height int) int {
	stack := []Point{{X: startX, Y: startY}}
	visited[startY*width+startX] = true
	size := 0

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		size++

		// 8-connected neighbors
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := p.X+dx, p.Y+dy
				if nx < 0 || nx >= width || ny < 0 || ny >= height {
					continue
				}
				i := ny*width + nx
				if fg[i] && !visited[i] {
					visited[i] = true
					stack = append(stack, Point{X: nx, Y: ny})
				}
			}
		}
	}
	return size
}

// traceBorder follows the outer border of the group whose topmost-leftmost
// pixel is start. maxSteps bounds the walk.
func traceBorder(isFG func(x, y int) bool, start Point, maxSteps int) []Point {
	pts := []Point{start}

	// West of the topmost-leftmost pixel is background.
	back := 0
	cur := start
	var second Point

	for step := 0; step < maxSteps; step++ {
		d := -1
		for k := 1; k <= 8; k++ {
			c := (back + k) % 8
			if isFG(cur.X+mooreDirs[c].X, cur.Y+mooreDirs[c].Y) {
				d = c
				break
			}
		}
		if d < 0 {
			// isolated pixel
			return pts
		}

		next := Point{X: cur.X + mooreDirs[d].X, Y: cur.Y + mooreDirs[d].Y}
		if step == 0 {
			second = next
		} else if cur == start && next == second {
			break
		}

		// The last background neighbor checked, seen from next.
		if d%2 == 0 {
			back = (d + 6) % 8
		} else {
			back = (d + 5) % 8
		}
		cur = next
		pts = append(pts, cur)
	}

	if n := len(pts); n > 1 && pts[n-1] == start {
		pts = pts[:n-1]
	}
	return pts
}
